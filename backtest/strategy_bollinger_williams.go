package backtest

import (
	"math"

	"github.com/HHHHao-s/Strategy/indicators"
	"github.com/HHHHao-s/Strategy/swing"
)

// BollingerWilliamsParams 布林带收缩 + 威廉指标起爆点，拐点跟踪止损
type BollingerWilliamsParams struct {
	BollPeriod           int     `yaml:"boll_period" json:"boll_period"`
	BollDev              float64 `yaml:"boll_dev" json:"boll_dev"`
	WillPeriod           int     `yaml:"will_period" json:"will_period"`
	ContractionThreshold float64 `yaml:"contraction_threshold" json:"contraction_threshold"`
	SwingLookback        int     `yaml:"swing_lookback" json:"swing_lookback"`
	SwingRadius          int     `yaml:"swing_radius" json:"swing_radius"`
	SwingRecency         int     `yaml:"swing_recency" json:"swing_recency"`
	Midline              float64 `yaml:"midline" json:"midline"`
}

func (p BollingerWilliamsParams) withDefaults() BollingerWilliamsParams {
	if p.BollPeriod <= 1 {
		p.BollPeriod = 20
	}
	if p.BollDev <= 0 {
		p.BollDev = 2
	}
	if p.WillPeriod <= 0 {
		p.WillPeriod = 14
	}
	if p.ContractionThreshold <= 0 {
		p.ContractionThreshold = 0.1
	}
	if p.SwingLookback <= 0 {
		p.SwingLookback = 5
	}
	if p.SwingRadius <= 0 {
		p.SwingRadius = 2
	}
	if p.SwingRecency <= 0 {
		p.SwingRecency = 3
	}
	if p.Midline == 0 || p.Midline < -100 || p.Midline > 0 {
		p.Midline = -50
	}
	return p
}

func (p BollingerWilliamsParams) swingParams() swing.Params {
	return swing.Params{
		Window:  p.SwingLookback,
		Radius:  p.SwingRadius,
		Recency: p.SwingRecency,
		Midline: p.Midline,
	}
}

type BollingerWilliamsStrategy struct {
	p BollingerWilliamsParams

	tracker *swing.Tracker
	// armed 布林带收缩状态：宽度低于阈值且继续收窄时开启，宽度回到阈值以上时关闭
	armed bool

	// 指标缓存（整段 K 线一次计算，talib 只用到当前及之前的数据）
	first *Bar
	n     int
	bands indicators.Bands
	wr    []float64
}

func NewBollingerWilliamsStrategy(p BollingerWilliamsParams) *BollingerWilliamsStrategy {
	p = p.withDefaults()
	return &BollingerWilliamsStrategy{p: p, tracker: swing.NewTracker(p.swingParams())}
}

func (s *BollingerWilliamsStrategy) Clone() Strategy {
	return NewBollingerWilliamsStrategy(s.p)
}

func (s *BollingerWilliamsStrategy) Params() BollingerWilliamsParams { return s.p }

// ActiveStop 当前跟踪止损（空仓时为 0）
func (s *BollingerWilliamsStrategy) ActiveStop() float64 { return s.tracker.State().Stop }

// Armed 收缩状态是否开启
func (s *BollingerWilliamsStrategy) Armed() bool { return s.armed }

func (s *BollingerWilliamsStrategy) prepare(bars []Bar) {
	if len(bars) == 0 || (s.n == len(bars) && s.first == &bars[0]) {
		return
	}
	n := len(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	s.bands = indicators.Bollinger(closes, s.p.BollPeriod, s.p.BollDev)
	s.wr = indicators.WilliamsR(highs, lows, closes, s.p.WillPeriod)
	s.first, s.n = &bars[0], n
}

func (s *BollingerWilliamsStrategy) OnBar(i int, bars []Bar, pos Position) *Signal {
	if i < 0 || i >= len(bars) {
		return nil
	}
	s.prepare(bars)
	b := bars[i]

	st := s.tracker.State()
	switch {
	case pos.Side == SideFlat && !st.IsFlat():
		// 入场单未成交（如标的不允许做空），放弃跟踪
		s.tracker.Close(b.Open)
	case pos.Side == SideLong && st.Direction != swing.Long:
		return &Signal{Time: b.Time, Action: SignalSell, Reason: "untracked_position"}
	case pos.Side == SideShort && st.Direction != swing.Short:
		return &Signal{Time: b.Time, Action: SignalCover, Reason: "untracked_position"}
	}

	s.updateContraction(i)

	sig := swing.Signals{
		PrevOsc:   indicators.At(s.wr, i-1),
		Osc:       indicators.At(s.wr, i),
		Center:    indicators.At(s.bands.Middle, i),
		PrevLower: indicators.At(s.bands.Lower, i-1),
		PrevUpper: indicators.At(s.bands.Upper, i-1),
		Armed:     s.armed && i >= max(s.p.BollPeriod, s.p.WillPeriod),
	}
	ev := s.tracker.Update(swing.HL{High: b.High, Low: b.Low}, b.Close, sig)

	switch ev.Kind {
	case swing.EnterLong:
		return &Signal{Time: b.Time, Action: SignalBuy, Reason: "williams_cross_up", Stop: ev.Stop}
	case swing.EnterShort:
		return &Signal{Time: b.Time, Action: SignalShort, Reason: "williams_cross_down", Stop: ev.Stop}
	case swing.ExitLong:
		return &Signal{Time: b.Time, Action: SignalSell, Reason: ev.Reason, Stop: ev.Stop}
	case swing.ExitShort:
		return &Signal{Time: b.Time, Action: SignalCover, Reason: ev.Reason, Stop: ev.Stop}
	}
	return nil
}

func (s *BollingerWilliamsStrategy) updateContraction(i int) {
	w := s.bands.Width(i)
	pw := s.bands.Width(i - 1)
	if math.IsNaN(w) {
		return
	}
	if w < s.p.ContractionThreshold && !math.IsNaN(pw) && w < pw {
		s.armed = true
	} else if s.armed && w > s.p.ContractionThreshold {
		s.armed = false
	}
}
