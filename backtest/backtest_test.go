package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/HHHHao-s/Strategy/fetcher"
	"github.com/HHHHao-s/Strategy/indicators"
	"github.com/HHHHao-s/Strategy/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flatBars 每根 K 线开高低收相同
func flatBars(prices ...float64) []Bar {
	bars := make([]Bar, len(prices))
	for i, p := range prices {
		bars[i] = Bar{Time: day0.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 100}
	}
	return bars
}

type scripted struct {
	actions map[int]SignalAction
}

func (s *scripted) OnBar(i int, bars []Bar, _ Position) *Signal {
	if a, ok := s.actions[i]; ok {
		return &Signal{Time: bars[i].Time, Action: a, Reason: string(a)}
	}
	return nil
}

func (s *scripted) Clone() Strategy { return &scripted{actions: s.actions} }

func testConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.InitialCash = 10000
	cfg.CommissionBps = 10
	cfg.SlippageBps = 0
	cfg.MinBars = 1
	return cfg
}

func TestRunBarsNextOpenExecution(t *testing.T) {
	bars := flatBars(100, 100, 105, 110, 110)
	cfg := testConfig()
	cfg.Strategy = &scripted{actions: map[int]SignalAction{0: SignalBuy, 2: SignalSell}}

	res := RunBars(Instrument{Symbol: "TEST", LotSize: 1}, bars, cfg)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, SideLong, tr.Side)
	assert.Equal(t, "2024-01-02", tr.EntryTime)
	assert.Equal(t, "2024-01-04", tr.ExitTime)
	assert.Equal(t, 99.0, tr.Qty)
	assert.Equal(t, 990.0, tr.GrossPnL)
	assert.Equal(t, 969.21, tr.NetPnL)
	assert.Equal(t, 10969.21, res.FinalEquity)
	assert.Equal(t, 9.69, res.TotalReturnPct)
	assert.Equal(t, 100.0, res.WinRatePct)
	assert.Len(t, res.EquityCurve, len(bars))
}

func TestRunBarsForceCloseAndShortGate(t *testing.T) {
	bars := flatBars(100, 100, 90, 80)
	cfg := testConfig()
	cfg.CommissionBps = 0
	cfg.Strategy = &scripted{actions: map[int]SignalAction{0: SignalShort}}

	res := RunBars(Instrument{Symbol: "NOSHORT"}, bars, cfg)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 10000.0, res.FinalEquity)

	res = RunBars(Instrument{Symbol: "SHORT", AllowShort: true}, bars, cfg)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, SideShort, res.Trades[0].Side)
	assert.Equal(t, "force_close_end", res.Trades[0].ReasonExit)
	assert.Equal(t, 2000.0, res.Trades[0].GrossPnL)
	assert.Equal(t, 12000.0, res.FinalEquity)
}

func TestEquityTrackerDrawdown(t *testing.T) {
	eq := newEquityTracker(100, 4)
	for i, v := range []float64{100, 120, 90, 130} {
		eq.add(Bar{Time: day0.AddDate(0, 0, i)}, v)
	}
	st := eq.stats(100, nil, trading.Daily)
	assert.Equal(t, 25.0, st.MaxDDPct)
	assert.Equal(t, 30.0, st.TotalReturnPct)
	assert.Equal(t, 130.0, st.FinalEquity)
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio([]float64{100, 100, 100}, 252))
	assert.Equal(t, 0.0, SharpeRatio([]float64{100}, 252))

	got := SharpeRatio([]float64{100, 101, 103.02}, 12)
	mean := 0.015
	sd := math.Sqrt(2 * 0.005 * 0.005)
	assert.InDelta(t, mean/sd*math.Sqrt(12), got, 1e-6)
	assert.Equal(t, 52.0, PeriodsPerYear(trading.Weekly))
}

// 手工注入指标，验证收缩开启、威廉上穿入场与跌破止损出场
func newInjectedBW(bars []Bar) *BollingerWilliamsStrategy {
	s := NewBollingerWilliamsStrategy(BollingerWilliamsParams{BollPeriod: 2, WillPeriod: 2})
	n := len(bars)
	up, mid, lo := make([]float64, n), make([]float64, n), make([]float64, n)
	wr := make([]float64, n)
	for i := range bars {
		half := 3 - 0.1*float64(i)
		up[i], mid[i], lo[i] = 100+half, 100, 100-half
		wr[i] = math.NaN()
	}
	wr[4], wr[5] = -60, -40
	s.bands = indicators.Bands{Upper: up, Middle: mid, Lower: lo}
	s.wr = wr
	s.first, s.n = &bars[0], n
	return s
}

func bwBars() []Bar {
	bars := make([]Bar, 0, 7)
	for i := 0; i < 5; i++ {
		bars = append(bars, Bar{Time: day0.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100})
	}
	bars = append(bars,
		Bar{Time: day0.AddDate(0, 0, 5), Open: 100, High: 102, Low: 100, Close: 101},
		Bar{Time: day0.AddDate(0, 0, 6), Open: 100, High: 101, Low: 95, Close: 96},
	)
	return bars
}

func TestBollingerWilliamsEntryAndStopExit(t *testing.T) {
	bars := bwBars()
	s := newInjectedBW(bars)

	flat := Position{Side: SideFlat}
	for i := 0; i < 5; i++ {
		assert.Nil(t, s.OnBar(i, bars, flat), "bar %d", i)
	}
	assert.True(t, s.Armed())

	sig := s.OnBar(5, bars, flat)
	require.NotNil(t, sig)
	assert.Equal(t, SignalBuy, sig.Action)
	assert.InDelta(t, 97.4, sig.Stop, 1e-9)
	assert.InDelta(t, 97.4, s.ActiveStop(), 1e-9)

	sig = s.OnBar(6, bars, Position{Side: SideLong, Qty: 1, EntryPrice: 100})
	require.NotNil(t, sig)
	assert.Equal(t, SignalSell, sig.Action)
	assert.Equal(t, "stop_breach", sig.Reason)
	assert.Zero(t, s.ActiveStop())
}

func TestBollingerWilliamsDropsUnfilledEntry(t *testing.T) {
	bars := bwBars()
	s := newInjectedBW(bars)
	flat := Position{Side: SideFlat}
	for i := 0; i < 5; i++ {
		s.OnBar(i, bars, flat)
	}
	require.NotNil(t, s.OnBar(5, bars, flat))

	// 入场单没有成交：下一根仍是空仓
	assert.Nil(t, s.OnBar(6, bars, flat))
	assert.Zero(t, s.ActiveStop())
}

func TestBollingerWilliamsContractionDisarms(t *testing.T) {
	bars := bwBars()
	s := newInjectedBW(bars)
	s.updateContraction(1)
	assert.True(t, s.armed)

	s.bands.Upper[2], s.bands.Lower[2] = 110, 90
	s.updateContraction(2)
	assert.False(t, s.armed)
}

func TestBollingerWilliamsOnRealIndicators(t *testing.T) {
	// 平稳震荡后的单边上涨：仅验证不会 panic 且信号与持仓一致
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = 100 + 0.3*math.Sin(float64(i)/3)
		if i > 120 {
			prices[i] += float64(i-120) * 0.8
		}
	}
	bars := make([]Bar, len(prices))
	for i, p := range prices {
		bars[i] = Bar{Time: day0.AddDate(0, 0, i), Open: p, High: p + 0.5, Low: p - 0.5, Close: p}
	}
	cfg := testConfig()
	cfg.Strategy = NewBollingerWilliamsStrategy(BollingerWilliamsParams{})
	res := RunBars(Instrument{Symbol: "SYN"}, bars, cfg)
	assert.Len(t, res.EquityCurve, len(bars))
	for _, tr := range res.Trades {
		assert.Equal(t, SideLong, tr.Side)
	}
}

func rotationPrimary() []Bar {
	return flatBars(10, 10, 10, 9, 9.5, 11, 11, 11)
}

func TestKDJStrategySignals(t *testing.T) {
	bars := rotationPrimary()
	s := NewKDJStrategy(KDJParams{StocPeriod: 3, KPeriod: 1, DPeriod: 1, BuyBelow: 10})

	assert.Nil(t, s.OnBar(2, bars, Position{Side: SideFlat}))
	sig := s.OnBar(3, bars, Position{Side: SideFlat})
	require.NotNil(t, sig)
	assert.Equal(t, SignalBuy, sig.Action)

	assert.Nil(t, s.OnBar(4, bars, Position{Side: SideLong}))
	sig = s.OnBar(5, bars, Position{Side: SideLong})
	require.NotNil(t, sig)
	assert.Equal(t, SignalSell, sig.Action)
}

func TestRotate(t *testing.T) {
	primary := rotationPrimary()
	fallback := flatBars(1, 1, 1, 1, 1, 1, 1, 1)
	// 只存在于 fallback 的交易日会被对齐丢弃
	fallback = append(fallback, Bar{Time: day0.AddDate(0, 0, 30), Open: 5, High: 5, Low: 5, Close: 5})

	cfg := testConfig()
	cfg.InitialCash = 1000
	cfg.CommissionBps = 0
	cfg.Rotation = RotationConfig{
		Primary:  "CSI300",
		Fallback: "DIV",
		Params:   KDJParams{StocPeriod: 3, KPeriod: 1, DPeriod: 1, BuyBelow: 10},
	}

	res, err := Rotate(primary, fallback, cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Bars)

	require.Len(t, res.Switches, 3)
	assert.Equal(t, "DIV", res.Switches[0].To)
	assert.Equal(t, "initial_fallback", res.Switches[0].Reason)
	assert.Equal(t, "2024-01-02", res.Switches[0].Time)
	assert.Equal(t, "CSI300", res.Switches[1].To)
	assert.Equal(t, "2024-01-05", res.Switches[1].Time)
	require.NotNil(t, res.Switches[1].J)
	assert.Less(t, *res.Switches[1].J, 10.0)
	assert.Equal(t, "DIV", res.Switches[2].To)
	assert.Equal(t, "primary_overbought", res.Switches[2].Reason)

	assert.Len(t, res.Trades, 3)
	assert.Equal(t, "DIV", res.Holding)
	assert.Equal(t, 1157.5, res.FinalEquity)
	assert.Equal(t, 15.75, res.TotalReturnPct)
}

func TestRotateDefaultParamsMarshalJSON(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	fallback := make([]float64, 100)
	for i := range fallback {
		fallback[i] = 10
	}

	cfg := DefaultRunConfig()
	cfg.Rotation = RotationConfig{Primary: "A", Fallback: "B"}
	res, err := Rotate(flatBars(closes...), flatBars(fallback...), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Switches)
	assert.Equal(t, "initial_fallback", res.Switches[0].Reason)
	assert.Nil(t, res.Switches[0].J)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reason":"initial_fallback"`)

	var buf bytes.Buffer
	require.NoError(t, WriteResultsJSON(&buf, res))
}

func TestRotateRejectsSameSymbol(t *testing.T) {
	cfg := testConfig()
	cfg.Rotation = RotationConfig{Primary: "A", Fallback: "A"}
	_, err := Rotate(flatBars(1, 2), flatBars(1, 2), cfg)
	assert.Error(t, err)
}

type stubSource map[string][]fetcher.KLine

func (s stubSource) FetchKLines(_ context.Context, symbol string, _ fetcher.Query) ([]fetcher.KLine, error) {
	k, ok := s[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return k, nil
}

func toKLines(bars []Bar) []fetcher.KLine {
	out := make([]fetcher.KLine, len(bars))
	for i, b := range bars {
		out[i] = fetcher.KLine{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	return out
}

func TestRunnerCollectsErrorsAndScans(t *testing.T) {
	src := stubSource{"CSI300": toKLines(rotationPrimary())}
	cfg := testConfig()
	cfg.StrategyType = StrategyKDJ
	cfg.Strategy = NewKDJStrategy(KDJParams{StocPeriod: 3, KPeriod: 1, DPeriod: 1, BuyBelow: 10})
	cfg.Instruments = []Instrument{{Symbol: "CSI300"}, {Symbol: "MISSING"}}

	r := NewRunner(src)
	results, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Errors)
	assert.Equal(t, 1, results[0].TotalTrades)
	assert.Equal(t, []string{"unknown symbol"}, results[1].Errors)

	cfg.ScanChart = true
	cfg.ScanChartDir = t.TempDir()
	scans, err := r.Scan(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, SideFlat, scans[0].PositionSide)
	assert.Equal(t, "2024-01-08", scans[0].LastDate)
	assert.NotEmpty(t, scans[0].ChartPath)
	assert.NotEmpty(t, scans[1].Errors)
}

func TestScanBarsEmpty(t *testing.T) {
	cfg := testConfig()
	var res ScanResult
	require.NotPanics(t, func() {
		res = ScanBars(Instrument{Symbol: "EMPTY"}, nil, cfg)
	})
	assert.Equal(t, "EMPTY", res.Symbol)
	assert.NotEmpty(t, res.Errors)
	assert.Empty(t, res.LastDate)
}

func TestParseRunConfig(t *testing.T) {
	raw := []byte(`
backtest:
  source: csv
  csv_dir: data
  csv_encoding: gbk
  interval: weekly
  start: "2020-01-01"
  commission_bps: 0
  allow_short: true
  instruments: ["AAPL", " "]
strategy:
  type: bollinger_williams
  params:
    boll_period: 30
    contraction_threshold: 0.05
rotation:
  primary: "000300perf"
  fallback: "H30269perf"
  params:
    stoc_period: 9
`)
	cfg, err := ParseRunConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Source)
	assert.Equal(t, "data", cfg.CSVDir)
	assert.Equal(t, fetcher.DefaultCSVDateLayout, cfg.CSVDateFormat)
	assert.Equal(t, trading.Weekly, cfg.Interval)
	assert.Equal(t, 0.0, cfg.CommissionBps)
	require.Len(t, cfg.Instruments, 1)
	assert.True(t, cfg.Instruments[0].AllowShort)

	bw, ok := cfg.Strategy.(*BollingerWilliamsStrategy)
	require.True(t, ok)
	assert.Equal(t, 30, bw.Params().BollPeriod)
	assert.Equal(t, 0.05, bw.Params().ContractionThreshold)
	assert.Equal(t, 14, bw.Params().WillPeriod)

	assert.Equal(t, 9, cfg.Rotation.Params.StocPeriod)
	assert.Equal(t, 20, cfg.Rotation.Params.KPeriod)

	src, err := cfg.NewSource()
	require.NoError(t, err)
	assert.IsType(t, &fetcher.CSVSource{}, src)
}

func TestParseRunConfigErrors(t *testing.T) {
	_, err := ParseRunConfig([]byte("strategy:\n  type: nope\n"))
	assert.Error(t, err)
	_, err = ParseRunConfig([]byte("backtest:\n  interval: 5m\n"))
	assert.Error(t, err)
	_, err = ParseRunConfig([]byte("backtest:\n  start: 2020/01/01\n"))
	assert.Error(t, err)
}
