package swing

// Tracker feeds bars into Step while keeping the last Params.Window high/low
// pairs.
type Tracker struct {
	p   Params
	st  State
	buf []HL
}

func NewTracker(p Params) *Tracker {
	p = p.withDefaults()
	return &Tracker{p: p, buf: make([]HL, 0, p.Window)}
}

func (t *Tracker) Params() Params { return t.p }

func (t *Tracker) State() State { return t.st }

// Ready reports whether the window holds enough bars to evaluate signals.
func (t *Tracker) Ready() bool { return len(t.buf) >= t.p.Window }

// Window returns a copy of the buffered bars, oldest first.
func (t *Tracker) Window() []HL {
	return append([]HL(nil), t.buf...)
}

// Update pushes one bar and advances the state machine.
func (t *Tracker) Update(bar HL, closePrice float64, sig Signals) Event {
	t.buf = append(t.buf, bar)
	if len(t.buf) > t.p.Window {
		t.buf = t.buf[len(t.buf)-t.p.Window:]
	}
	var ev Event
	t.st, ev = Step(t.p, t.st, Input{Window: t.buf, Close: closePrice, Signals: sig})
	return ev
}

// Close exits any open position at price.
func (t *Tracker) Close(price float64) Event {
	var ev Event
	t.st, ev = t.st.Close(price)
	return ev
}

// Bar is one step of a replay.
type Bar struct {
	HL
	Close float64
	Signals
}

// Replay runs a fresh tracker over bars starting from st and returns the state
// after every bar together with the event it produced.
func Replay(p Params, st State, bars []Bar) ([]State, []Event) {
	t := NewTracker(p)
	t.st = st
	states := make([]State, 0, len(bars))
	events := make([]Event, 0, len(bars))
	for _, b := range bars {
		events = append(events, t.Update(b.HL, b.Close, b.Signals))
		states = append(states, t.st)
	}
	return states, events
}
