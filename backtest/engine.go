package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/HHHHao-s/Strategy/fetcher"
)

type Strategy interface {
	OnBar(i int, bars []Bar, pos Position) *Signal
	Clone() Strategy
}

// stopReporter 由跟踪止损类策略实现，返回当前生效的止损价
type stopReporter interface {
	ActiveStop() float64
}

type Result struct {
	Symbol    string `json:"symbol"`
	Strategy  string `json:"strategy"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Bars      int    `json:"bars"`
	Stats
	Trades      []Trade  `json:"trades"`
	EquityCurve []Point  `json:"equity_curve"`
	Errors      []string `json:"errors,omitempty"`
}

type Runner struct {
	source fetcher.Source
}

func NewRunner(src fetcher.Source) *Runner {
	return &Runner{source: src}
}

func (r *Runner) Run(ctx context.Context, cfg RunConfig) ([]Result, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("no instruments configured")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("no strategy configured")
	}

	var out []Result
	for _, inst := range cfg.Instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := r.loadBars(ctx, inst.Symbol, cfg)
		if err != nil {
			out = append(out, Result{
				Symbol:   inst.Symbol,
				Strategy: cfg.StrategyType,
				Errors:   []string{err.Error()},
			})
			continue
		}
		res := RunBars(inst, bars, cfg)
		out = append(out, res)
	}
	return out, nil
}

func (r *Runner) loadBars(ctx context.Context, symbol string, cfg RunConfig) ([]Bar, error) {
	if r.source == nil {
		return nil, fmt.Errorf("no data source")
	}
	kl, err := r.source.FetchKLines(ctx, symbol, fetcher.Query{
		Start:    cfg.Start,
		End:      cfg.End,
		Interval: cfg.Interval,
	})
	if err != nil {
		return nil, err
	}
	kl = fetcher.Resample(kl, cfg.Interval)
	if cfg.Days > 0 && len(kl) > cfg.Days {
		kl = kl[len(kl)-cfg.Days:]
	}

	bars := make([]Bar, 0, len(kl))
	for _, k := range kl {
		bars = append(bars, Bar{
			Time:   k.Time,
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		})
	}
	if len(bars) < cfg.MinBars {
		return nil, fmt.Errorf("not enough bars: %d", len(bars))
	}
	return bars, nil
}

// RunBars 在给定 K 线上回测：收盘确认信号，下一根开盘成交，结束时按最后收盘价强制平仓
func RunBars(inst Instrument, bars []Bar, cfg RunConfig) Result {
	strategy := cfg.Strategy.Clone()
	led := newLedger(inst, cfg, nil)
	eq := newEquityTracker(cfg.InitialCash, len(bars))

	var pending *Signal
	for i := 0; i < len(bars); i++ {
		bar := bars[i]

		if pending != nil && i >= 1 && bars[i-1].Time.Equal(pending.Time) {
			led.execute(pending, bar.Time, bar.Open)
			pending = nil
		}

		sig := strategy.OnBar(i, bars, led.pos)
		if sig != nil && i+1 < len(bars) {
			pending = sig
		}

		eq.add(bar, led.equity(bar.Close))
	}

	if led.pos.Side != SideFlat && len(bars) > 0 {
		last := bars[len(bars)-1]
		led.close(last.Time, last.Close, "force_close_end")
	}

	res := Result{
		Symbol:      inst.Symbol,
		Strategy:    cfg.StrategyType,
		Bars:        len(bars),
		Stats:       eq.stats(cfg.InitialCash, led.trades, cfg.Interval),
		Trades:      led.trades,
		EquityCurve: eq.curve,
	}
	if len(bars) > 0 {
		res.StartDate = bars[0].Time.Format("2006-01-02")
		res.EndDate = bars[len(bars)-1].Time.Format("2006-01-02")
		// 强制平仓的手续费计入最终权益
		res.FinalEquity = round2(led.Cash())
		if cfg.InitialCash > 0 {
			res.TotalReturnPct = round2((led.Cash() - cfg.InitialCash) / cfg.InitialCash * 100)
		}
	}
	return res
}

func WriteResultsJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
