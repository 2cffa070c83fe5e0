package backtest

import (
	"math"

	"github.com/HHHHao-s/Strategy/indicators"
)

// KDJParams K=EMA(RSV,k), D=EMA(K,d), J=3K-2D；J 低于 BuyBelow 买入，不低于 SellAbove 卖出
type KDJParams struct {
	StocPeriod int     `yaml:"stoc_period" json:"stoc_period"`
	KPeriod    int     `yaml:"k_period" json:"k_period"`
	DPeriod    int     `yaml:"d_period" json:"d_period"`
	BuyBelow   float64 `yaml:"buy_below" json:"buy_below"`
	SellAbove  float64 `yaml:"sell_above" json:"sell_above"`
}

func (p KDJParams) withDefaults() KDJParams {
	if p.StocPeriod <= 0 {
		p.StocPeriod = 60
	}
	if p.KPeriod <= 0 {
		p.KPeriod = 20
	}
	if p.DPeriod <= 0 {
		p.DPeriod = 20
	}
	if p.SellAbove <= 0 {
		p.SellAbove = 100
	}
	return p
}

// kdjSeries 计算整段 K 线的 J 值
func kdjSeries(bars []Bar, p KDJParams) []float64 {
	n := len(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	_, _, j := indicators.KDJ(highs, lows, closes, p.StocPeriod, p.KPeriod, p.DPeriod)
	return j
}

type KDJStrategy struct {
	p KDJParams

	first *Bar
	n     int
	j     []float64
}

func NewKDJStrategy(p KDJParams) *KDJStrategy {
	return &KDJStrategy{p: p.withDefaults()}
}

func (s *KDJStrategy) Clone() Strategy { return NewKDJStrategy(s.p) }

func (s *KDJStrategy) Params() KDJParams { return s.p }

func (s *KDJStrategy) OnBar(i int, bars []Bar, pos Position) *Signal {
	if i < 0 || i >= len(bars) {
		return nil
	}
	if s.n != len(bars) || s.first != &bars[0] {
		s.j = kdjSeries(bars, s.p)
		s.first, s.n = &bars[0], len(bars)
	}
	j := s.j[i]
	if math.IsNaN(j) {
		return nil
	}
	b := bars[i]
	switch pos.Side {
	case SideFlat:
		if j < s.p.BuyBelow {
			return &Signal{Time: b.Time, Action: SignalBuy, Reason: "kdj_j_oversold"}
		}
	case SideLong:
		if j >= s.p.SellAbove {
			return &Signal{Time: b.Time, Action: SignalSell, Reason: "kdj_j_overbought"}
		}
	}
	return nil
}
