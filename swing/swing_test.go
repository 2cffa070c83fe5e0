package swing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExtremaClampedNeighborhood(t *testing.T) {
	window := []HL{{10, 5}, {11, 6}, {12, 7}, {13, 8}, {14, 9}}

	assert.Equal(t, []Extremum{{Offset: 0, Price: 14}}, LocalHighs(window, 2))
	assert.Equal(t, []Extremum{{Offset: -4, Price: 5}}, LocalLows(window, 2))
}

func TestLocalLowsPlateauKeepsAllCandidates(t *testing.T) {
	window := []HL{{110, 100}, {109, 98}, {108, 98}, {111, 99}, {112, 101}}

	lows := LocalLows(window, 2)
	require.Len(t, lows, 2)
	assert.Equal(t, -3, lows[0].Offset)
	assert.Equal(t, -2, lows[1].Offset)

	got, ok := mostRecent(lows)
	require.True(t, ok)
	assert.Equal(t, -2, got.Offset)
}

func TestTrailingStopEndToEnd(t *testing.T) {
	start := State{Direction: Long, EntryPrice: 100, Stop: 95}
	bars := []Bar{
		{HL: HL{104, 99}, Close: 103},
		{HL: HL{103, 100}, Close: 102},
		{HL: HL{101, 98}, Close: 100},
		{HL: HL{106, 101}, Close: 104},
		{HL: HL{107, 103}, Close: 105},
		{HL: HL{105, 96}, Close: 97},
	}

	states, events := Replay(DefaultParams(), start, bars)
	require.Len(t, states, 6)

	for i := 0; i < 4; i++ {
		assert.Equal(t, 95.0, states[i].Stop, "bar %d", i)
	}
	assert.Equal(t, RaiseStop, events[4].Kind)
	assert.Equal(t, 98.0, states[4].Stop)

	assert.Equal(t, ExitLong, events[5].Kind)
	assert.Equal(t, 98.0, events[5].Stop)
	assert.Equal(t, State{}, states[5])
}

func TestLongRatchetRequiresProfit(t *testing.T) {
	p := DefaultParams()
	st := State{Direction: Long, EntryPrice: 110, Stop: 95}
	window := []HL{{104, 99}, {103, 100}, {101, 98}, {106, 101}, {107, 103}}

	got, ev := Step(p, st, Input{Window: window, Close: 105})
	assert.Equal(t, None, ev.Kind)
	assert.Equal(t, st, got)
}

func TestLongRatchetIgnoresStaleSwingLow(t *testing.T) {
	p := DefaultParams()
	st := State{Direction: Long, EntryPrice: 100, Stop: 95}
	// the only swing low sits 3 bars back, outside the recency limit
	window := []HL{{104, 99}, {101, 97}, {106, 101}, {107, 102}, {108, 103}}

	got, ev := Step(p, st, Input{Window: window, Close: 107})
	assert.Equal(t, None, ev.Kind)
	assert.Equal(t, 95.0, got.Stop)
}

func TestLongStopNeverLoosens(t *testing.T) {
	p := DefaultParams()
	st := State{Direction: Long, EntryPrice: 100, Stop: 99}
	window := []HL{{104, 99}, {103, 100}, {101, 98}, {106, 101}, {107, 103}}

	got, ev := Step(p, st, Input{Window: window, Close: 105})
	assert.Equal(t, None, ev.Kind)
	assert.Equal(t, 99.0, got.Stop)
}

func TestShortTrailingStop(t *testing.T) {
	start := State{Direction: Short, EntryPrice: 100, Stop: 105}
	bars := []Bar{
		{HL: HL{99, 95}, Close: 96},
		{HL: HL{98, 94}, Close: 95},
		{HL: HL{102, 96}, Close: 97},
		{HL: HL{97, 92}, Close: 93},
		{HL: HL{95, 90}, Close: 94},
		{HL: HL{104, 95}, Close: 103},
	}

	states, events := Replay(DefaultParams(), start, bars)
	assert.Equal(t, LowerStop, events[4].Kind)
	assert.Equal(t, 102.0, states[4].Stop)
	assert.Equal(t, ExitShort, events[5].Kind)
	assert.True(t, states[5].IsFlat())
}

func fullWindow() []HL {
	return []HL{{10, 9}, {10, 9}, {10, 9}, {10, 9}, {10, 9}}
}

func TestEntryLong(t *testing.T) {
	in := Input{
		Window: fullWindow(),
		Close:  10,
		Signals: Signals{
			PrevOsc: -55, Osc: -45, Center: 9.5,
			PrevLower: 9, PrevUpper: 11, Armed: true,
		},
	}
	st, ev := Step(DefaultParams(), State{}, in)
	assert.Equal(t, EnterLong, ev.Kind)
	assert.Equal(t, State{Direction: Long, EntryPrice: 10, Stop: 9}, st)
}

func TestEntryShort(t *testing.T) {
	in := Input{
		Window: fullWindow(),
		Close:  9,
		Signals: Signals{
			PrevOsc: -45, Osc: -55, Center: 9.5,
			PrevLower: 8, PrevUpper: 10.5, Armed: true,
		},
	}
	st, ev := Step(DefaultParams(), State{}, in)
	assert.Equal(t, EnterShort, ev.Kind)
	assert.Equal(t, State{Direction: Short, EntryPrice: 9, Stop: 10.5}, st)
}

func TestNoEntryWhenGatedOrWarmingUp(t *testing.T) {
	sig := Signals{PrevOsc: -55, Osc: -45, Center: 9.5, PrevLower: 9, PrevUpper: 11}

	st, ev := Step(DefaultParams(), State{}, Input{Window: fullWindow(), Close: 10, Signals: sig})
	assert.Equal(t, None, ev.Kind, "not armed")
	assert.True(t, st.IsFlat())

	sig.Armed = true
	st, ev = Step(DefaultParams(), State{}, Input{Window: fullWindow()[:3], Close: 10, Signals: sig})
	assert.Equal(t, None, ev.Kind, "window not full")
	assert.True(t, st.IsFlat())

	// price below the central band blocks a long entry
	st, ev = Step(DefaultParams(), State{}, Input{Window: fullWindow(), Close: 9.4, Signals: sig})
	assert.Equal(t, None, ev.Kind)
	assert.True(t, st.IsFlat())
}

func TestTrackerExplicitClose(t *testing.T) {
	tr := NewTracker(DefaultParams())
	assert.Equal(t, None, tr.Close(10).Kind)

	tr.st = State{Direction: Long, EntryPrice: 10, Stop: 9}
	ev := tr.Close(11)
	assert.Equal(t, ExitLong, ev.Kind)
	assert.True(t, ev.IsExit())
	assert.True(t, tr.State().IsFlat())
}

func TestTrackerWindowRolls(t *testing.T) {
	tr := NewTracker(Params{Window: 3})
	for i := 0; i < 5; i++ {
		tr.Update(HL{High: float64(i + 1), Low: float64(i)}, float64(i), Signals{})
	}
	assert.True(t, tr.Ready())
	assert.Equal(t, []HL{{3, 2}, {4, 3}, {5, 4}}, tr.Window())
}

func TestLongStopMonotoneRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := DefaultParams()

	for run := 0; run < 50; run++ {
		tr := NewTracker(p)
		tr.st = State{Direction: Long, EntryPrice: 100, Stop: 90}
		price := 100.0
		prevStop := tr.State().Stop
		for i := 0; i < 200 && !tr.State().IsFlat(); i++ {
			price += rng.Float64()*4 - 1.8
			hi := price + rng.Float64()*2
			lo := price - rng.Float64()*2
			ev := tr.Update(HL{High: hi, Low: lo}, price, Signals{})
			st := tr.State()
			if ev.IsExit() {
				assert.LessOrEqual(t, price, prevStop)
				assert.Equal(t, State{}, st)
				break
			}
			require.GreaterOrEqual(t, st.Stop, prevStop, "run %d bar %d", run, i)
			prevStop = st.Stop
		}
	}
}

func TestCrossings(t *testing.T) {
	assert.True(t, crossedAbove(-60, -40, -50))
	assert.True(t, crossedAbove(-50, -49, -50))
	assert.False(t, crossedAbove(-40, -30, -50))
	assert.False(t, crossedAbove(math.NaN(), -30, -50))

	assert.True(t, crossedBelow(-40, -60, -50))
	assert.True(t, crossedBelow(-50, -51, -50))
	assert.False(t, crossedBelow(-60, -70, -50))
	assert.False(t, crossedBelow(-40, math.Inf(-1), -50))
}
