package strategyctl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/internal/terminalui"
)

func loadRunner(btConfigPath string) (backtest.RunConfig, *backtest.Runner, error) {
	cfg, err := backtest.LoadRunConfig(btConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	src, err := cfg.NewSource()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, backtest.NewRunner(src), nil
}

func runBacktest(btConfigPath, outPath, tradesPath, chartDir string, stdout io.Writer) error {
	cfg, runner, err := loadRunner(btConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Printf("[BT] strategy=%s instruments=%d interval=%s source=%s\n", cfg.StrategyType, len(cfg.Instruments), cfg.Interval, cfg.Source)
	results, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if strings.TrimSpace(tradesPath) != "" {
		if err := writeTradesCSV(tradesPath, results); err != nil {
			return fmt.Errorf("write trades: %w", err)
		}
	}
	if strings.TrimSpace(chartDir) != "" {
		writeEquityCharts(chartDir, results)
	}

	if strings.TrimSpace(outPath) != "" {
		return writeJSON(outPath, results)
	}
	terminalui.RenderBacktest(stdout, results, terminalui.Options{Color: isTerminal(stdout)})
	return nil
}

func writeEquityCharts(dir string, results []backtest.Result) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[WARN] chart dir: %v\n", err)
		return
	}
	for _, r := range results {
		if len(r.Errors) > 0 {
			continue
		}
		svg, err := backtest.RenderEquityChart(r.Symbol+" "+r.Strategy, r.EquityCurve)
		if err != nil {
			log.Printf("[WARN] equity chart %s: %v\n", r.Symbol, err)
			continue
		}
		p := filepath.Join(dir, sanitizeFilename(r.Symbol)+"_equity.svg")
		if err := os.WriteFile(p, svg, 0o644); err != nil {
			log.Printf("[WARN] write %s: %v\n", p, err)
		}
	}
}

func writeTradesCSV(path string, results []backtest.Result) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{
		"symbol", "strategy", "side",
		"entry_time", "entry_price",
		"exit_time", "exit_price",
		"qty", "gross_pnl", "net_pnl", "return_pct",
		"reason_entry", "reason_exit",
	})

	for _, r := range results {
		for _, t := range r.Trades {
			_ = w.Write([]string{
				t.Symbol,
				r.Strategy,
				string(t.Side),
				t.EntryTime,
				fmt.Sprintf("%.2f", t.EntryPrice),
				t.ExitTime,
				fmt.Sprintf("%.2f", t.ExitPrice),
				fmt.Sprintf("%.4f", t.Qty),
				fmt.Sprintf("%.2f", t.GrossPnL),
				fmt.Sprintf("%.2f", t.NetPnL),
				fmt.Sprintf("%.2f", t.ReturnPct),
				t.ReasonEntry,
				t.ReasonExit,
			})
		}
	}

	w.Flush()
	return w.Error()
}

func runRotate(btConfigPath, outPath string, stdout io.Writer) error {
	cfg, runner, err := loadRunner(btConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Printf("[BT] rotation primary=%s fallback=%s\n", cfg.Rotation.Primary, cfg.Rotation.Fallback)
	res, err := runner.RunRotation(ctx, cfg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(outPath) != "" {
		return writeJSON(outPath, res)
	}
	terminalui.RenderRotation(stdout, res, terminalui.Options{Color: isTerminal(stdout)})
	return nil
}
