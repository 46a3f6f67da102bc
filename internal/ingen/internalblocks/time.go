package internalblocks

import (
	"encoding/binary"
	"math"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Time emits a notify event whenever the transport's speed or tempo
// changes; SetTransport is called by the driver/engine when it observes
// such a change, and the next Run flushes it as a SEQUENCE event on
// "notify".
type Time struct {
	notify *graph.Port

	pending bool
	speed   float64
	bpm     float64
}

func timePorts() []*graph.Port {
	return []*graph.Port{
		port("notify", graph.PortAtom, graph.DirOutput),
	}
}

// SetTransport records a speed/tempo change to be notified on the next
// Run call. Pre-process thread.
func (t *Time) SetTransport(speed, bpm float64) {
	t.speed, t.bpm = speed, bpm
	t.pending = true
}

func (t *Time) Activate(f *buffer.Factory) error { return nil }
func (t *Time) Deactivate()                      {}

func (t *Time) Run(ctx rtctx.RunContext, ports []*graph.Port) {
	for _, p := range ports {
		if p.Symbol == "notify" {
			t.notify = p
		}
	}
	if !t.pending || t.notify == nil {
		return
	}
	t.pending = false
	buf := portBuf(t.notify)
	if buf == nil {
		return
	}
	buf.AppendEvent(0, buf.TypeURID, encodeTransport(t.speed, t.bpm))
}

// encodeTransport packs speed and bpm as two little-endian float64s; the
// driver-side transport-state client decodes this, there being no shared
// LV2 atom forge in this port of the engine.
func encodeTransport(speed, bpm float64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:8], math.Float64bits(speed))
	binary.LittleEndian.PutUint64(out[8:16], math.Float64bits(bpm))
	return out
}
