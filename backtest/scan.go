package backtest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/HHHHao-s/Strategy/chart"
)

type ScanResult struct {
	Symbol    string  `json:"symbol"`
	Strategy  string  `json:"strategy"`
	LastDate  string  `json:"last_date"`
	LastClose float64 `json:"last_close"`

	PositionSide Side    `json:"position_side"`
	PositionQty  float64 `json:"position_qty"`
	EntryDate    string  `json:"entry_date,omitempty"`
	EntryPrice   float64 `json:"entry_price,omitempty"`
	// Stop 当前生效的跟踪止损
	Stop float64 `json:"stop,omitempty"`

	NextAction SignalAction `json:"next_action,omitempty"`
	Reason     string       `json:"reason,omitempty"`

	ChartPath string `json:"chart_path,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// ScanBars 跑完整段 K 线，报告最新持仓、止损以及最后一根收盘给出的下一步动作
func ScanBars(inst Instrument, bars []Bar, cfg RunConfig) ScanResult {
	if len(bars) == 0 {
		return ScanResult{Symbol: inst.Symbol, Strategy: cfg.StrategyType, Errors: []string{"no bars"}}
	}
	strategy := cfg.Strategy.Clone()
	led := newLedger(inst, cfg, nil)

	var pending *Signal
	var lastSignal *Signal
	for i := 0; i < len(bars); i++ {
		if pending != nil && i >= 1 && bars[i-1].Time.Equal(pending.Time) {
			led.execute(pending, bars[i].Time, bars[i].Open)
			pending = nil
		}

		sig := strategy.OnBar(i, bars, led.pos)
		if sig != nil {
			lastSignal = sig
			if i+1 < len(bars) {
				pending = sig
			}
		}
	}

	last := bars[len(bars)-1]
	out := ScanResult{
		Symbol:       inst.Symbol,
		Strategy:     cfg.StrategyType,
		LastDate:     last.Time.Format("2006-01-02"),
		LastClose:    round2(last.Close),
		PositionSide: led.pos.Side,
		PositionQty:  round2(led.pos.Qty),
	}
	if led.pos.Side != SideFlat {
		out.EntryDate = led.pos.EntryTime.Format("2006-01-02")
		out.EntryPrice = round2(led.pos.EntryPrice)
	}
	if sr, ok := strategy.(stopReporter); ok && sr.ActiveStop() > 0 {
		out.Stop = round2(sr.ActiveStop())
	}
	// only care about latest bar's signal (next open execution)
	if lastSignal != nil && lastSignal.Time.Equal(last.Time) {
		out.NextAction = lastSignal.Action
		out.Reason = lastSignal.Reason
		if out.Stop == 0 && lastSignal.Stop > 0 {
			out.Stop = round2(lastSignal.Stop)
		}
	}
	return out
}

func (r *Runner) Scan(ctx context.Context, cfg RunConfig) ([]ScanResult, error) {
	if len(cfg.Instruments) == 0 {
		return nil, nil
	}

	var out []ScanResult
	chartDir := strings.TrimSpace(cfg.ScanChartDir)
	if cfg.ScanChart && chartDir == "" {
		chartDir = "scan_charts"
	}
	chartBars := cfg.ScanChartBars
	if chartBars <= 0 {
		chartBars = 220
	}

	for _, inst := range cfg.Instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := r.loadBars(ctx, inst.Symbol, cfg)
		if err != nil {
			out = append(out, ScanResult{
				Symbol:   inst.Symbol,
				Strategy: cfg.StrategyType,
				Errors:   []string{err.Error()},
			})
			continue
		}
		if len(bars) == 0 {
			out = append(out, ScanResult{
				Symbol:   inst.Symbol,
				Strategy: cfg.StrategyType,
				Errors:   []string{"no bars"},
			})
			continue
		}

		res := ScanBars(inst, bars, cfg)
		if cfg.ScanChart {
			_ = os.MkdirAll(chartDir, 0o755)

			view := bars
			if len(view) > chartBars {
				view = bars[len(bars)-chartBars:]
			}
			svg, err := RenderScanChart(res, view)
			if err == nil && len(svg) > 0 {
				p := filepath.Join(chartDir, sanitizeChartFilename(inst.Symbol)+".svg")
				if werr := os.WriteFile(p, svg, 0o644); werr == nil {
					res.ChartPath = p
				}
			}
		}

		out = append(out, res)
	}
	return out, nil
}

// RenderScanChart 蜡烛图叠加入场价、止损与下一步动作
func RenderScanChart(res ScanResult, bars []Bar) ([]byte, error) {
	candles := make([]chart.Candle, len(bars))
	for i, b := range bars {
		candles[i] = chart.Candle{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}

	var levels []chart.Level
	if res.Stop > 0 {
		levels = append(levels, chart.Level{Price: res.Stop, Label: "Stop", Color: "rgba(148,163,184,0.85)", Dash: true})
	}
	if res.EntryPrice > 0 {
		levels = append(levels, chart.Level{Price: res.EntryPrice, Label: "Entry", Color: "rgba(245,158,11,0.85)", Dash: true})
	}

	var markers []chart.Marker
	if res.NextAction != "" && len(bars) > 0 {
		last := bars[len(bars)-1]
		markers = append(markers, chart.Marker{
			Time:  last.Time,
			Price: last.Close,
			Label: string(res.NextAction),
			Color: "#a78bfa",
		})
	}
	return chart.RenderCandlesSVG(res.Symbol, candles, levels, markers, chart.Options{})
}

func sanitizeChartFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// RenderEquityChart 资金曲线
func RenderEquityChart(title string, curve []Point) ([]byte, error) {
	pts := make([]chart.Point, 0, len(curve))
	for _, p := range curve {
		t, err := parseDay(p.Time)
		if err != nil {
			continue
		}
		pts = append(pts, chart.Point{Time: t, Value: p.Equity})
	}
	return chart.RenderLinesSVG(title, []chart.Series{{Label: "Equity", Points: pts}}, chart.Options{})
}
