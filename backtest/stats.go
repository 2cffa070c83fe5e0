package backtest

import (
	"math"

	"github.com/HHHHao-s/Strategy/trading"
)

// equityTracker 逐根记录权益并维护最大回撤
type equityTracker struct {
	curve  []Point
	values []float64
	peak   float64
	maxDD  float64
}

func newEquityTracker(initial float64, n int) *equityTracker {
	return &equityTracker{
		curve:  make([]Point, 0, n),
		values: make([]float64, 0, n),
		peak:   initial,
	}
}

func (e *equityTracker) add(b Bar, equity float64) {
	e.curve = append(e.curve, Point{Time: b.Time.Format("2006-01-02"), Equity: round2(equity)})
	e.values = append(e.values, equity)
	if equity > e.peak {
		e.peak = equity
	}
	if e.peak > 0 {
		if dd := (e.peak - equity) / e.peak; dd > e.maxDD {
			e.maxDD = dd
		}
	}
}

func (e *equityTracker) stats(initial float64, trades []Trade, iv trading.Interval) Stats {
	final := initial
	if len(e.values) > 0 {
		final = e.values[len(e.values)-1]
	}
	win := 0
	for _, t := range trades {
		if t.NetPnL > 0 {
			win++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(win) / float64(len(trades)) * 100
	}
	ret := 0.0
	if initial > 0 {
		ret = (final - initial) / initial * 100
	}
	return Stats{
		InitialCash:    round2(initial),
		FinalEquity:    round2(final),
		TotalReturnPct: round2(ret),
		MaxDDPct:       round2(e.maxDD * 100),
		WinRatePct:     round2(winRate),
		TotalTrades:    len(trades),
		Sharpe:         round2(SharpeRatio(e.values, PeriodsPerYear(iv))),
	}
}

// PeriodsPerYear 年化用的周期数
func PeriodsPerYear(iv trading.Interval) float64 {
	switch iv {
	case trading.Weekly:
		return 52
	case trading.Monthly:
		return 12
	default:
		return 252
	}
}

// SharpeRatio 由逐期权益计算年化夏普（无风险利率按 0，样本标准差）
func SharpeRatio(equity []float64, periodsPerYear float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	v := 0.0
	for _, r := range rets {
		v += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(v / float64(len(rets)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(periodsPerYear)
}
