package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/HHHHao-s/Strategy/internal/strategyctl"
	"github.com/HHHHao-s/Strategy/internal/strategyd"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	args := os.Args[1:]
	if wantsVersion(args) {
		fmt.Println("strategy", Version)
		return
	}
	if shouldRouteToCtl(args) {
		os.Exit(strategyctl.Run(args))
	}
	os.Exit(strategyd.Run(args))
}

func shouldRouteToCtl(args []string) bool {
	for _, a := range args {
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		switch name {
		case "dca", "backtest", "scan", "rotate":
			return true
		}
	}
	return false
}

func wantsVersion(args []string) bool {
	for _, a := range args {
		if a == "-version" || a == "--version" {
			return true
		}
	}
	return false
}
