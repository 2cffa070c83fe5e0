// Package swing tracks a single directional position with a trailing stop that
// ratchets to recent swing points.
//
// The state machine is exposed as the pure function Step; Tracker keeps the
// rolling high/low window for callers that feed bars one at a time.
package swing

import "math"

type Direction int8

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// HL is the high/low pair of one bar.
type HL struct {
	High float64
	Low  float64
}

// Extremum is a swing point. Offset is relative to the newest bar of the
// window: 0 is the newest bar, -1 the one before it, and so on.
type Extremum struct {
	Offset int
	Price  float64
}

type Params struct {
	// Window is the number of bars scanned for swing points.
	Window int
	// Radius is the neighborhood on each side a swing point must dominate.
	Radius int
	// Recency limits stop updates to swing points among the newest Recency bars.
	Recency int
	// Midline is the oscillator level whose crossing opens a position.
	Midline float64
}

// DefaultParams matches a Williams %R entry: 5-bar window, ±2 neighborhood,
// swing point within the last 3 bars, midline -50.
func DefaultParams() Params {
	return Params{Window: 5, Radius: 2, Recency: 3, Midline: -50}
}

func (p Params) withDefaults() Params {
	if p.Window <= 0 {
		p.Window = 5
	}
	if p.Radius <= 0 {
		p.Radius = 2
	}
	if p.Recency <= 0 {
		p.Recency = 3
	}
	return p
}

// State is the position being tracked. EntryPrice and Stop are zero while flat.
type State struct {
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	Stop       float64   `json:"stop,omitempty"`
}

func (s State) IsFlat() bool { return s.Direction == Flat }

// Close returns the flat state and the event describing the explicit close.
func (s State) Close(price float64) (State, Event) {
	switch s.Direction {
	case Long:
		return State{}, Event{Kind: ExitLong, Price: price, Stop: s.Stop, Reason: "close"}
	case Short:
		return State{}, Event{Kind: ExitShort, Price: price, Stop: s.Stop, Reason: "close"}
	}
	return State{}, Event{}
}

// Signals carries the per-bar indicator readings that drive entries.
type Signals struct {
	PrevOsc float64
	Osc     float64
	// Center is the central reference band (Bollinger middle).
	Center float64
	// PrevLower and PrevUpper are the volatility bands of the preceding bar;
	// they seed the initial stop.
	PrevLower float64
	PrevUpper float64
	// Armed gates entries; exits and stop updates are never gated.
	Armed bool
}

type Input struct {
	// Window holds the most recent bars, oldest first; the last one is current.
	Window []HL
	Close  float64
	Signals
}

type EventKind string

const (
	None       EventKind = ""
	EnterLong  EventKind = "enter_long"
	EnterShort EventKind = "enter_short"
	RaiseStop  EventKind = "raise_stop"
	LowerStop  EventKind = "lower_stop"
	ExitLong   EventKind = "exit_long"
	ExitShort  EventKind = "exit_short"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Price  float64   `json:"price"`
	Stop   float64   `json:"stop"`
	Reason string    `json:"reason,omitempty"`
}

// IsExit reports whether the event closes a position.
func (e Event) IsExit() bool { return e.Kind == ExitLong || e.Kind == ExitShort }

// Step advances the state machine by one bar.
//
// A stop breach is checked against the stop in force when the bar opens; only
// a position that survives the bar may tighten its stop. While the window is
// not yet full a flat tracker evaluates nothing.
func Step(p Params, st State, in Input) (State, Event) {
	p = p.withDefaults()
	full := len(in.Window) >= p.Window
	window := in.Window
	if full {
		window = window[len(window)-p.Window:]
	}

	switch st.Direction {
	case Long:
		if in.Close <= st.Stop {
			return State{}, Event{Kind: ExitLong, Price: in.Close, Stop: st.Stop, Reason: "stop_breach"}
		}
		if !full || in.Close <= st.EntryPrice {
			return st, Event{}
		}
		low, ok := mostRecent(LocalLows(window, p.Radius))
		if ok && low.Offset > -p.Recency && low.Price > st.Stop {
			st.Stop = low.Price
			return st, Event{Kind: RaiseStop, Price: in.Close, Stop: st.Stop, Reason: "swing_low"}
		}
		return st, Event{}

	case Short:
		if in.Close >= st.Stop {
			return State{}, Event{Kind: ExitShort, Price: in.Close, Stop: st.Stop, Reason: "stop_breach"}
		}
		if !full || in.Close >= st.EntryPrice {
			return st, Event{}
		}
		high, ok := mostRecent(LocalHighs(window, p.Radius))
		if ok && high.Offset > -p.Recency && high.Price < st.Stop {
			st.Stop = high.Price
			return st, Event{Kind: LowerStop, Price: in.Close, Stop: st.Stop, Reason: "swing_high"}
		}
		return st, Event{}
	}

	if !full || !in.Armed || !finite(in.Close) {
		return st, Event{}
	}
	sig := in.Signals
	if crossedAbove(sig.PrevOsc, sig.Osc, p.Midline) && in.Close > sig.Center && finite(sig.PrevLower) && sig.PrevLower > 0 {
		st = State{Direction: Long, EntryPrice: in.Close, Stop: sig.PrevLower}
		return st, Event{Kind: EnterLong, Price: in.Close, Stop: st.Stop, Reason: "osc_cross_up"}
	}
	if crossedBelow(sig.PrevOsc, sig.Osc, p.Midline) && in.Close < sig.Center && finite(sig.PrevUpper) && sig.PrevUpper > 0 {
		st = State{Direction: Short, EntryPrice: in.Close, Stop: sig.PrevUpper}
		return st, Event{Kind: EnterShort, Price: in.Close, Stop: st.Stop, Reason: "osc_cross_down"}
	}
	return st, Event{}
}

// LocalHighs returns every bar whose high is not exceeded by any neighbor
// within radius positions. The neighborhood is clamped to the window on both
// sides. Equal highs do not disqualify each other.
func LocalHighs(window []HL, radius int) []Extremum {
	return extrema(window, radius, func(h HL) float64 { return h.High }, func(a, b float64) bool { return a > b })
}

// LocalLows is the mirror of LocalHighs.
func LocalLows(window []HL, radius int) []Extremum {
	return extrema(window, radius, func(h HL) float64 { return h.Low }, func(a, b float64) bool { return a < b })
}

func extrema(window []HL, radius int, val func(HL) float64, beats func(a, b float64) bool) []Extremum {
	n := len(window)
	var out []Extremum
	for i := 0; i < n; i++ {
		x := val(window[i])
		lo := max(0, i-radius)
		hi := min(n-1, i+radius)
		ok := true
		for j := lo; j <= hi; j++ {
			if j != i && beats(val(window[j]), x) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, Extremum{Offset: i - (n - 1), Price: x})
		}
	}
	return out
}

// mostRecent picks the newest extremum; on plateaus this is the last bar.
func mostRecent(xs []Extremum) (Extremum, bool) {
	if len(xs) == 0 {
		return Extremum{}, false
	}
	return xs[len(xs)-1], true
}

func crossedAbove(prev, cur, level float64) bool {
	return finite(prev) && finite(cur) && prev <= level && cur > level
}

func crossedBelow(prev, cur, level float64) bool {
	return finite(prev) && finite(cur) && prev >= level && cur < level
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
