package internalblocks

import (
	"math"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Controller is the MIDI CC scaling block: it watches an incoming MIDI
// stream for Control Change messages matching its "controller" parameter
// and writes the scaled result to "output", optionally forwarding the
// triggering event on "event". Always monophonic.
type Controller struct {
	midiIn, midiOut, param, logarithmic, min, max, output *graph.Port
}

func controllerPorts() []*graph.Port {
	maximum := port("maximum", graph.PortControl, graph.DirInput)
	maximum.Value = 1.0
	return []*graph.Port{
		port("input", graph.PortAtom, graph.DirInput),
		port("event", graph.PortAtom, graph.DirOutput),
		port("controller", graph.PortControl, graph.DirInput),
		port("logarithmic", graph.PortControl, graph.DirInput),
		port("minimum", graph.PortControl, graph.DirInput),
		maximum,
		port("output", graph.PortControl, graph.DirOutput),
	}
}

func (c *Controller) Activate(f *buffer.Factory) error { return nil }
func (c *Controller) Deactivate()                      {}

func (c *Controller) Run(ctx rtctx.RunContext, ports []*graph.Port) {
	for _, p := range ports {
		switch p.Symbol {
		case "input":
			c.midiIn = p
		case "event":
			c.midiOut = p
		case "controller":
			c.param = p
		case "logarithmic":
			c.logarithmic = p
		case "minimum":
			c.min = p
		case "maximum":
			c.max = p
		case "output":
			c.output = p
		}
	}
	if c.midiIn == nil || c.output == nil {
		return
	}
	in := portBuf(c.midiIn)
	if in == nil {
		return
	}
	for _, ev := range in.Events {
		status, d1, d2, ok := midiEventAt(ev)
		if !ok || status&0xF0 != midiController {
			continue
		}
		time := ctx.SubStart + ev.FrameOffset
		if c.control(ctx, d1, d2, time) {
			if out := portBuf(c.midiOut); out != nil {
				out.AppendEvent(ev.FrameOffset, ev.TypeURID, ev.Body)
			}
		}
	}
}

// control applies one CC message, returning true if it matched this
// block's bound controller number and "output" was updated.
func (c *Controller) control(ctx rtctx.RunContext, controlNum, val byte, time int) bool {
	if float64(controlNum) != c.param.Value {
		return false
	}
	nval := float64(val) / 127.0

	scaled := 0.0
	if c.logarithmic != nil && c.logarithmic.Value > 0 {
		offset := 0.0
		if c.min.Value < 0 {
			offset = -c.min.Value
		}
		lmin := math.Log(c.min.Value + 1 + offset)
		lmax := math.Log(c.max.Value + 1 + offset)
		scaled = math.Exp(nval*(lmax-lmin)+lmin) - 1 - offset
	} else {
		scaled = nval*(c.max.Value-c.min.Value) + c.min.Value
	}
	c.output.SetControlValue(ctx, time, scaled)
	return true
}
