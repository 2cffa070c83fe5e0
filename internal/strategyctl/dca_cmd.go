package strategyctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/config"
	"github.com/HHHHao-s/Strategy/dca"
	"github.com/HHHHao-s/Strategy/internal/terminalui"
	"github.com/HHHHao-s/Strategy/trading"
)

type dcaOptions struct {
	ConfigPath string
	EnvPath    string
	OutDir     string
	Tickers    string
	Start      string
	End        string
	Interval   string
	Amount     float64
	AmountSet  bool
	NoCSV      bool
	JSON       bool
}

func loadDCAConfig(opts dcaOptions) (config.DCAConfig, error) {
	if opts.EnvPath != "" {
		config.LoadEnv(opts.EnvPath)
	}
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	d := config.GetConfig(path).DCA

	// 命令行参数优先级最高
	if opts.Tickers != "" {
		d.Tickers = strings.Split(opts.Tickers, ",")
	}
	if opts.Start != "" {
		t, err := time.Parse("2006-01-02", opts.Start)
		if err != nil {
			return d, fmt.Errorf("invalid -start: %w", err)
		}
		d.Start = t
	}
	if opts.End != "" {
		t, err := time.Parse("2006-01-02", opts.End)
		if err != nil {
			return d, fmt.Errorf("invalid -end: %w", err)
		}
		d.End = t
	}
	if opts.Interval != "" {
		iv, err := trading.ParseInterval(opts.Interval)
		if err != nil {
			return d, err
		}
		d.Interval = iv
	}
	if opts.AmountSet || opts.Amount != 0 {
		if !(opts.Amount > 0) || math.IsInf(opts.Amount, 0) {
			return d, fmt.Errorf("invalid -amount: %w: got %v", dca.ErrInvalidAmount, opts.Amount)
		}
		d.Amount = opts.Amount
	}
	if opts.OutDir != "" {
		d.OutDir = opts.OutDir
	}
	if opts.NoCSV {
		d.ExportCSV = false
	}
	return d, nil
}

func runDCA(opts dcaOptions, stdout io.Writer) error {
	d, err := loadDCAConfig(opts)
	if err != nil {
		return err
	}
	src, err := d.NewSource()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	plan := d.Plan()
	log.Printf("[DCA] %d tickers, %s ~ %s, interval=%s, amount=%.2f, source=%s\n",
		len(plan.Tickers), plan.Start.Format("2006-01-02"), plan.End.Format("2006-01-02"), plan.Interval, plan.Amount, d.Source)

	rep, err := dca.NewRunner(src).Run(ctx, plan)
	if err != nil {
		return err
	}
	for _, e := range rep.Errors {
		log.Printf("[WARN] %s\n", e)
	}

	if d.OutDir != "" {
		paths, err := dca.Export(rep, d.OutDir, d.ExportCSV)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, p := range paths {
			log.Printf("[DCA] wrote %s\n", p)
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		terminalui.RenderDCA(stdout, rep, terminalui.Options{Color: isTerminal(stdout)})
	}

	if len(rep.OK()) == 0 {
		return fmt.Errorf("all tickers failed")
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}
