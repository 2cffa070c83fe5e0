package strategyctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/HHHHao-s/Strategy/backtest"
	"github.com/HHHHao-s/Strategy/internal/terminalui"
)

func runScan(btConfigPath, outPath string, jsonOut bool, onlySignal bool, scanDays int, scanChart bool, scanChartDir string, scanChartBars int) error {
	cfg, runner, err := loadRunner(btConfigPath)
	if err != nil {
		return err
	}
	window := applyScanDays(&cfg, scanDays, time.Now())
	cfg.ScanChart = scanChart
	cfg.ScanChartDir = scanChartDir
	cfg.ScanChartBars = scanChartBars

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	results, err := runner.Scan(ctx, cfg)
	if err != nil {
		return err
	}
	if onlySignal {
		results = filterSignals(results)
	}

	var w io.Writer = os.Stdout
	var f *os.File
	if strings.TrimSpace(outPath) != "" {
		if err := ensureParentDir(outPath); err != nil {
			return fmt.Errorf("prepare output dir: %w", err)
		}
		f, err = os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if window != "" {
		fmt.Fprintln(w, window)
	}
	terminalui.RenderScan(w, results, terminalui.Options{Color: isTerminal(w)})
	for _, r := range results {
		if strings.TrimSpace(r.ChartPath) != "" {
			fmt.Fprintf(w, "  %s chart: %s\n", r.Symbol, r.ChartPath)
		}
	}
	return nil
}

func filterSignals(results []backtest.ScanResult) []backtest.ScanResult {
	filtered := make([]backtest.ScanResult, 0, len(results))
	for _, r := range results {
		if len(r.Errors) > 0 || r.NextAction != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// applyScanDays mutates cfg to use a rolling window of the last N calendar days ending today.
// Returns a human-readable description for text outputs.
func applyScanDays(cfg *backtest.RunConfig, scanDays int, now time.Time) string {
	if cfg == nil || scanDays <= 0 {
		return ""
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -scanDays)

	cfg.Start = start
	// End is exclusive
	cfg.End = today.AddDate(0, 0, 1)
	cfg.Days = 0

	return fmt.Sprintf("[SCAN] window: %s ~ %s (last %d days, close-confirm -> next open exec)", start.Format("2006-01-02"), today.Format("2006-01-02"), scanDays)
}
