package backtest

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RotationConfig 双标的 KDJ 轮动：默认持有 Fallback，Primary 的 J 值超卖时切换到 Primary，
// 超买时切回 Fallback
type RotationConfig struct {
	Primary  string    `yaml:"primary" json:"primary"`
	Fallback string    `yaml:"fallback" json:"fallback"`
	Params   KDJParams `yaml:"params" json:"params"`
}

// Switch 一次换仓
type Switch struct {
	Time   string   `json:"time"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to"`
	J      *float64 `json:"j,omitempty"`
	Reason string   `json:"reason"`
}

type RotationResult struct {
	Primary   string `json:"primary"`
	Fallback  string `json:"fallback"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Bars      int    `json:"bars"`
	Holding   string `json:"holding,omitempty"`
	Stats
	Switches    []Switch `json:"switches"`
	Trades      []Trade  `json:"trades"`
	EquityCurve []Point  `json:"equity_curve"`
}

func (r *Runner) RunRotation(ctx context.Context, cfg RunConfig) (*RotationResult, error) {
	rc := cfg.Rotation
	if rc.Primary == "" || rc.Fallback == "" {
		return nil, fmt.Errorf("rotation requires primary and fallback")
	}
	primary, err := r.loadBars(ctx, rc.Primary, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rc.Primary, err)
	}
	fallback, err := r.loadBars(ctx, rc.Fallback, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rc.Fallback, err)
	}
	return Rotate(primary, fallback, cfg)
}

// Rotate 在两条 K 线的共同交易日上运行轮动。信号按收盘确认、下一根开盘成交。
func Rotate(primary, fallback []Bar, cfg RunConfig) (*RotationResult, error) {
	rc := cfg.Rotation
	if rc.Primary == "" || rc.Fallback == "" || rc.Primary == rc.Fallback {
		return nil, fmt.Errorf("rotation requires two distinct symbols")
	}
	p := rc.Params.withDefaults()
	pb, fb := alignBars(primary, fallback)
	if len(pb) < 2 {
		return nil, fmt.Errorf("not enough common bars: %d", len(pb))
	}
	j := kdjSeries(pb, p)

	legs := map[string][]Bar{rc.Primary: pb, rc.Fallback: fb}
	acct := newAccount(cfg.InitialCash)
	ledgers := map[string]*ledger{}
	for sym := range legs {
		ledgers[sym] = newLedger(Instrument{Symbol: sym, LotSize: cfg.LotSize}, cfg, acct)
	}

	out := &RotationResult{Primary: rc.Primary, Fallback: rc.Fallback, Bars: len(pb)}
	eq := newEquityTracker(cfg.InitialCash, len(pb))

	holding := ""
	var pending *Switch
	for i := range pb {
		if pending != nil {
			// 先卖后买
			if holding != "" {
				ledgers[holding].execute(&Signal{Action: SignalSell, Reason: pending.Reason}, pb[i].Time, legs[holding][i].Open)
			}
			led := ledgers[pending.To]
			led.execute(&Signal{Action: SignalBuy, Reason: pending.Reason}, pb[i].Time, legs[pending.To][i].Open)
			if led.pos.Side == SideLong {
				holding = pending.To
				out.Switches = append(out.Switches, *pending)
			} else {
				holding = ""
			}
			pending = nil
		}

		if i+1 < len(pb) {
			pending = rotationDecision(holding, j[i], rc, p)
			if pending != nil {
				pending.Time = pb[i+1].Time.Format("2006-01-02")
				pending.From = holding
			}
		}

		equity := acct.Cash()
		if holding != "" {
			equity = ledgers[holding].equity(legs[holding][i].Close)
		}
		eq.add(pb[i], equity)
	}

	if holding != "" {
		last := legs[holding][len(pb)-1]
		ledgers[holding].close(last.Time, last.Close, "force_close_end")
	}

	var trades []Trade
	for _, sym := range []string{rc.Primary, rc.Fallback} {
		trades = append(trades, ledgers[sym].trades...)
	}
	out.Trades = trades
	out.Holding = holding
	out.EquityCurve = eq.curve
	out.Stats = eq.stats(cfg.InitialCash, trades, cfg.Interval)
	out.FinalEquity = round2(acct.Cash())
	if cfg.InitialCash > 0 {
		out.TotalReturnPct = round2((acct.Cash() - cfg.InitialCash) / cfg.InitialCash * 100)
	}
	out.StartDate = pb[0].Time.Format("2006-01-02")
	out.EndDate = pb[len(pb)-1].Time.Format("2006-01-02")
	return out, nil
}

func rotationDecision(holding string, j float64, rc RotationConfig, p KDJParams) *Switch {
	if holding == "" {
		return &Switch{To: rc.Fallback, J: jValue(j), Reason: "initial_fallback"}
	}
	if math.IsNaN(j) {
		return nil
	}
	switch {
	case j < p.BuyBelow && holding != rc.Primary:
		return &Switch{To: rc.Primary, J: jValue(j), Reason: "primary_oversold"}
	case j >= p.SellAbove && holding == rc.Primary:
		return &Switch{To: rc.Fallback, J: jValue(j), Reason: "primary_overbought"}
	}
	return nil
}

// alignBars 取两条序列的共同交易日（按日期），保持时间顺序
func alignBars(a, b []Bar) ([]Bar, []Bar) {
	idx := make(map[string]int, len(b))
	for i, x := range b {
		idx[dayKey(x.Time)] = i
	}
	var outA, outB []Bar
	for _, x := range a {
		if k, ok := idx[dayKey(x.Time)]; ok {
			outA = append(outA, x)
			outB = append(outB, b[k])
		}
	}
	return outA, outB
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func parseDay(s string) (time.Time, error) { return time.Parse("2006-01-02", s) }

// jValue 预热期 J 为 NaN，不写入 JSON
func jValue(j float64) *float64 {
	if math.IsNaN(j) || math.IsInf(j, 0) {
		return nil
	}
	v := round2(j)
	return &v
}
