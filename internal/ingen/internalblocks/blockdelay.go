package internalblocks

import (
	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// BlockDelay is the one-cycle feedback break: "out" carries the previous
// cycle's "in", and "in" is copied into the held buffer for next cycle.
// compile.go exempts arcs from a BlockDelay's output from its feedback
// check for exactly this reason: the value it supplies is always stale by
// one cycle, so it can never participate in a same-cycle dependency.
type BlockDelay struct {
	held *buffer.Buffer
}

func blockDelayPorts() []*graph.Port {
	return []*graph.Port{
		port("in", graph.PortAudio, graph.DirInput),
		port("out", graph.PortAudio, graph.DirOutput),
	}
}

func (d *BlockDelay) Activate(f *buffer.Factory) error {
	d.held = f.Get(buffer.KindAudio, 0, 0)
	return nil
}

func (d *BlockDelay) Deactivate() {
	if d.held != nil {
		d.held.Release()
		d.held = nil
	}
}

func (d *BlockDelay) Run(ctx rtctx.RunContext, ports []*graph.Port) {
	var in, out *graph.Port
	for _, p := range ports {
		switch p.Symbol {
		case "in":
			in = p
		case "out":
			out = p
		}
	}
	if in == nil || out == nil || d.held == nil {
		return
	}
	if outB := portBuf(out); outB != nil {
		outB.Copy(ctx.Range(), d.held)
	}
	if inB := portBuf(in); inB != nil {
		d.held.Copy(ctx.Range(), inB)
	}
}
