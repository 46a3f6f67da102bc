// Package controlbindings maps incoming MIDI Control Change messages to a
// Port's control value. Pre-process installs and removes bindings; the
// audio thread performs the actual (channel, controller) -> port lookup
// and value write every cycle a MIDI event arrives, never allocating.
package controlbindings

import (
	"math"
	"sync"

	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Binding maps one (channel, controller) pair to a Port's control range.
type Binding struct {
	Channel    uint8
	Controller uint8

	Port       *graph.Port
	Min, Max   float64
	Logarithmic bool
}

// key identifies a binding's MIDI address.
type key struct {
	channel    uint8
	controller uint8
}

// ControlEvent is one incoming MIDI CC message, as handed to Process by
// the driver's MIDI input callback.
type ControlEvent struct {
	Channel    uint8
	Controller uint8
	Value      uint8 // 0-127
	TimeFrames int
}

// Table holds the live set of bindings, plus the in-progress learn
// request if one is active. Set/Remove/RemoveForPort install a brand-new
// map rather than mutating one in place. Process takes the table mutex
// for each read of the learn state and of the bindings map.
type Table struct {
	mu       sync.Mutex
	bindings map[key]*Binding

	// learning, when true, is armed to capture the next ControlEvent
	// arriving at Process and turn it into a binding for learnPort.
	learning  bool
	learnPort *graph.Port
	learnMin  float64
	learnMax  float64
	learnLog  bool
	learned   chan Binding
}

// New returns an empty binding table.
func New() *Table {
	return &Table{bindings: make(map[key]*Binding)}
}

// Set installs (or replaces) a binding. Pre-process thread.
func (t *Table) Set(b Binding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := cloneMap(t.bindings)
	next[key{b.Channel, b.Controller}] = &b
	t.bindings = next
}

// Remove deletes the binding for (channel, controller), if any.
func (t *Table) Remove(channel, controller uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := cloneMap(t.bindings)
	delete(next, key{channel, controller})
	t.bindings = next
}

// RemoveForPort removes every binding that targets port (e.g. on port
// deletion).
func (t *Table) RemoveForPort(port *graph.Port) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := cloneMap(t.bindings)
	for k, b := range next {
		if b.Port == port {
			delete(next, k)
		}
	}
	t.bindings = next
}

func cloneMap(m map[key]*Binding) map[key]*Binding {
	next := make(map[key]*Binding, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

// BeginLearn arms the table to capture the next incoming ControlEvent and
// install it as a binding for port, returning a channel the caller can
// receive the resulting Binding from once learning completes.
func (t *Table) BeginLearn(port *graph.Port, min, max float64, logarithmic bool) <-chan Binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.learning = true
	t.learnPort = port
	t.learnMin, t.learnMax, t.learnLog = min, max, logarithmic
	t.learned = make(chan Binding, 1)
	return t.learned
}

// CancelLearn disarms an in-progress learn request without installing a
// binding.
func (t *Table) CancelLearn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.learning = false
	t.learnPort = nil
	t.learned = nil
}

// Process applies an incoming MIDI event: if a learn request is armed, it
// installs the new binding and returns; otherwise it looks up a binding
// for the event's (channel, controller) and writes the port's control
// value. Called on the audio thread; it takes the table mutex, and
// completing a learn request installs the binding through Set, which
// copies the bindings map.
func (t *Table) Process(ctx rtctx.RunContext, ev ControlEvent) {
	t.mu.Lock()
	learning := t.learning
	t.mu.Unlock()

	if learning {
		t.finishLearn(ev)
		return
	}

	t.mu.Lock()
	b := t.bindings[key{ev.Channel, ev.Controller}]
	t.mu.Unlock()
	if b == nil || b.Port == nil {
		return
	}
	value := scale(ev.Value, b.Min, b.Max, b.Logarithmic)
	b.Port.SetControlValue(ctx, ev.TimeFrames, value)
}

func (t *Table) finishLearn(ev ControlEvent) {
	t.mu.Lock()
	if !t.learning {
		t.mu.Unlock()
		return
	}
	b := Binding{Channel: ev.Channel, Controller: ev.Controller, Port: t.learnPort, Min: t.learnMin, Max: t.learnMax, Logarithmic: t.learnLog}
	t.learning = false
	ch := t.learned
	t.learned = nil
	t.mu.Unlock()

	t.Set(b)
	if ch != nil {
		select {
		case ch <- b:
		default:
		}
	}
}

// scale maps a 7-bit MIDI value onto [min, max], linearly or (if log is
// set) logarithmically.
func scale(v uint8, min, max float64, log bool) float64 {
	frac := float64(v) / 127.0
	if !log {
		return min + frac*(max-min)
	}
	if min <= 0 {
		min = 1e-6
	}
	logMin, logMax := math.Log(min), math.Log(max)
	return math.Exp(logMin + frac*(logMax-logMin))
}
