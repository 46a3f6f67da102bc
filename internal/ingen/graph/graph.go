package graph

import (
	"sync"
	"sync/atomic"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

// Compiled is the opaque type a Graph's compiled task tree is stored as.
// It is defined here (rather than imported from the compile package) to
// avoid a graph<->compile import cycle: compile.CompiledGraph implements
// this interface trivially, and Graph only ever stores/swaps it and
// executes it by calling its Run method.
type Compiled interface {
	// Run executes the compiled task tree for ctx.
	Run(ctx rtctx.RunContext)
}

// MaxPolyphony bounds internal_poly per the engine's INVALID_POLY rule.
const MaxPolyphony = 128

// Graph is a Block whose body is a sub-graph of Blocks and Arcs. It embeds
// *Block so every Graph is itself addressable and runnable as a Block.
type Graph struct {
	*Block

	mu     sync.Mutex // guards Blocks/Arcs during pre-process mutation
	Blocks map[types.Path]*Block
	Arcs   []*Arc

	InputPorts  []*Port
	OutputPorts []*Port

	InternalPoly        int
	InternalPolyProcess int

	compiled atomic.Pointer[Compiled]
}

// NewGraph constructs an empty Graph block at path, polyphony 1.
func NewGraph(path types.Path) *Graph {
	g := &Graph{
		Blocks:              make(map[types.Path]*Block),
		InternalPoly:        1,
		InternalPolyProcess: 1,
	}
	block := NewBlock(path, KindSubGraph, "", nil, nil)
	block.subGraph = g
	block.Body = &subGraphBody{g: g}
	g.Block = block
	return g
}

// subGraphBody implements Body by delegating to the Graph's own Process
// (which in turn runs its CompiledGraph); it ties the Block<->Graph knot
// created in NewGraph. A parent's task tree runs a sub-graph through
// Block.Process, which reaches Graph.Process via this Run.
type subGraphBody struct{ g *Graph }

func (s *subGraphBody) Activate(f *buffer.Factory) error { return nil }

func (s *subGraphBody) Deactivate() {}

func (s *subGraphBody) Run(ctx rtctx.RunContext, ports []*Port) {
	s.g.Process(ctx)
}

// AddBlock inserts a child Block, setting its parent. Pre-process only.
func (g *Graph) AddBlock(b *Block) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.Blocks[b.Path]; exists {
		return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryConflict).
			Context("path", string(b.Path)).Build()
	}
	b.Parent = g
	g.Blocks[b.Path] = b
	return nil
}

// RemoveBlock removes a child Block, first removing every incident Arc.
// The block must already be out of the live CompiledGraph (the compile
// discipline's removal rule); callers are responsible for sequencing that.
func (g *Graph) RemoveBlock(b *Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeArcsTouchingLocked(b)
	delete(g.Blocks, b.Path)
}

func (g *Graph) removeArcsTouchingLocked(b *Block) {
	kept := g.Arcs[:0]
	for _, a := range g.Arcs {
		if a.Tail.block == b || a.Head.block == b {
			detachIncoming(a)
			continue
		}
		kept = append(kept, a)
	}
	g.Arcs = kept
}

func detachIncoming(a *Arc) {
	in := a.Head.IncomingArcs[:0]
	for _, x := range a.Head.IncomingArcs {
		if x != a {
			in = append(in, x)
		}
	}
	a.Head.IncomingArcs = in
}

// AddArc validates and installs an Arc. Pre-process only.
func (g *Graph) AddArc(a *Arc) error {
	if err := Validate(a.Tail, a.Head); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Arcs = append(g.Arcs, a)
	a.Head.IncomingArcs = append(a.Head.IncomingArcs, a)
	return nil
}

// RemoveArc removes the Arc between tail and head, if present.
func (g *Graph) RemoveArc(tail, head *Port) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.Arcs[:0]
	for _, a := range g.Arcs {
		if a.Tail == tail && a.Head == head {
			detachIncoming(a)
			continue
		}
		kept = append(kept, a)
	}
	g.Arcs = kept
}

// SwapCompiledGraph atomically installs next, returning the previous value
// for pre-process-thread disposal. Audio thread.
func (g *Graph) SwapCompiledGraph(next Compiled) Compiled {
	old := g.compiled.Swap(&next)
	if old == nil {
		var zero Compiled
		return zero
	}
	return *old
}

// CompiledGraph returns the graph's current compiled task tree, or nil.
func (g *Graph) CompiledGraph() Compiled {
	p := g.compiled.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Process runs the graph for ctx: if enabled, prepares its own port
// buffers and runs the current CompiledGraph; if disabled, clears its
// output port buffers so the containing context hears silence.
func (g *Graph) Process(ctx rtctx.RunContext) {
	for _, p := range g.OutputPorts {
		p.ConnectBuffers()
	}
	if !g.Enabled {
		for _, p := range g.OutputPorts {
			for _, v := range p.Voices() {
				if v.Buffer != nil {
					v.Buffer.Clear(ctx.Range())
				}
			}
		}
		return
	}
	for _, p := range g.InputPorts {
		p.ConnectBuffers()
		p.PreRun(ctx)
	}
	for _, p := range g.OutputPorts {
		p.PrepareBuffers(ctx)
	}
	if cg := g.CompiledGraph(); cg != nil {
		cg.Run(ctx)
	}
}

// PrepareInternalPoly and ApplyInternalPoly implement the two-phase
// polyphony change: phase 1 (pre-process) is a validation/allocation hook
// callers (the polyphony-change Event) drive by calling Factory.Get for
// every port that needs new voices; phase 2 (audio thread) is the atomic
// pointer swap already implemented by Port.ConnectBuffers. This function
// only validates the requested count and clamps nested polyphony to the
// parent's value (never multiplies), per the engine's resolved semantics.
func (g *Graph) PrepareInternalPoly(poly int) (int, error) {
	if poly < 1 || poly > MaxPolyphony {
		return 0, ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryPoly).
			Context("requested_poly", poly).Build()
	}
	if g.Parent != nil && g.Parent.InternalPoly > 1 {
		if poly > g.Parent.InternalPoly {
			poly = g.Parent.InternalPoly
		}
	}
	return poly, nil
}

// ApplyInternalPoly installs the new polyphony count for the audio-thread
// view; called once every port/block's voice arrays have been swapped.
func (g *Graph) ApplyInternalPoly(poly int) {
	g.InternalPoly = poly
	g.InternalPolyProcess = poly
}
