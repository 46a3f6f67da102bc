package graph

import (
	"sync/atomic"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// BlockKind tags which variant of the Block union a value is, replacing
// the source's virtual-method dispatch over LV2/Internal/Graph with a
// tagged enum plus a Body implementation per kind.
type BlockKind int

const (
	KindLV2 BlockKind = iota
	KindInternal
	KindSubGraph
)

// Body is the subtype-specific behavior a Block dispatches to: LV2 blocks
// delegate to a hosted plugin instance, internal blocks implement DSP
// directly, and sub-graph blocks run their child CompiledGraph.
type Body interface {
	Activate(f *buffer.Factory) error
	Deactivate()
	Run(ctx rtctx.RunContext, ports []*Port)
}

// Block is a processing unit: a fixed-length Ports array plus a Body that
// supplies the actual per-kind behavior.
type Block struct {
	Node

	Kind      BlockKind
	PluginURI types.URI
	Body      Body

	Enabled bool

	ports atomic.Pointer[[]*Port]

	activated bool
	poly      int

	subGraph *Graph // set only when Kind == KindSubGraph
}

// NewBlock constructs a Block with the given initial ports; ports are
// indexed by their position in the slice.
func NewBlock(path types.Path, kind BlockKind, pluginURI types.URI, body Body, ports []*Port) *Block {
	b := &Block{
		Node:      Node{Path: path},
		Kind:      kind,
		PluginURI: pluginURI,
		Body:      body,
		Enabled:   true,
		poly:      1,
	}
	for i, p := range ports {
		p.Index = i
		p.block = b
	}
	b.ports.Store(&ports)
	return b
}

// Ports returns the block's current port array.
func (b *Block) Ports() []*Port {
	p := b.ports.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ReplacePorts installs a new port array (audio-thread atomic swap) and
// returns the old one for maid disposal. Used for graph port add/remove.
func (b *Block) ReplacePorts(next []*Port) []*Port {
	for i, p := range next {
		p.Index = i
		p.block = b
	}
	old := b.ports.Swap(&next)
	if old == nil {
		return nil
	}
	return *old
}

// Port returns the port at symbol, or nil.
func (b *Block) Port(symbol string) *Port {
	for _, p := range b.Ports() {
		if p.Symbol == symbol {
			return p
		}
	}
	return nil
}

// AsGraph returns the Graph this Block implements, or nil if Kind is not
// KindSubGraph. A Graph embeds *Block so every Graph already satisfies
// Body's callers transparently; this accessor is only needed by code
// (e.g. Arc validation) that holds a *Block and must test the tag.
func (b *Block) AsGraph() *Graph {
	return b.subGraph
}

// Activate allocates per-instance state; must happen before the block
// enters any CompiledGraph.
func (b *Block) Activate(f *buffer.Factory) error {
	if b.activated {
		return nil
	}
	if b.Body != nil {
		if err := b.Body.Activate(f); err != nil {
			return err
		}
	}
	b.activated = true
	return nil
}

// Deactivate releases per-instance state; only valid once the block is out
// of every CompiledGraph.
func (b *Block) Deactivate() {
	if !b.activated {
		return
	}
	if b.Body != nil {
		b.Body.Deactivate()
	}
	b.activated = false
}

// Process runs the block for ctx's active range: PrepareBuffers each
// output, mix each input (PreRun), dispatch to Body.Run honoring the
// enabled bypass (copy same-typed inputs to outputs of matching index,
// zero-fill the rest).
func (b *Block) Process(ctx rtctx.RunContext) {
	ports := b.Ports()
	for _, p := range ports {
		p.ConnectBuffers()
		p.PrepareBuffers(ctx)
	}
	for _, p := range ports {
		p.PreRun(ctx)
	}
	if !b.Enabled {
		b.bypass(ctx, ports)
		return
	}
	if b.Body != nil {
		b.Body.Run(ctx, ports)
	}
}

// bypass copies inputs to same-typed outputs of matching index and
// zero-fills the rest, per the disabled-block contract.
func (b *Block) bypass(ctx rtctx.RunContext, ports []*Port) {
	var ins, outs []*Port
	for _, p := range ports {
		if p.Direction == DirInput {
			ins = append(ins, p)
		} else {
			outs = append(outs, p)
		}
	}
	for i, out := range outs {
		matched := false
		if i < len(ins) && ins[i].Type == out.Type {
			for vi, slot := range out.Voices() {
				inVoices := ins[i].Voices()
				if vi < len(inVoices) && slot.Buffer != nil && inVoices[vi].Buffer != nil {
					slot.Buffer.Copy(ctx.Range(), inVoices[vi].Buffer)
				}
			}
			matched = true
		}
		if !matched {
			for _, slot := range out.Voices() {
				if slot.Buffer != nil {
					slot.Buffer.Clear(ctx.Range())
				}
			}
		}
	}
}

// PreparePoly sets the block's polyphony count (pre-process thread); it
// allocates no per-voice state. Only blocks whose parent graph's internal_poly matches may be
// polyphonic; others are forced to poly = 1.
func (b *Block) PreparePoly(f *buffer.Factory, poly int) {
	if b.Parent == nil || poly != b.Parent.InternalPoly {
		poly = 1
	}
	b.poly = poly
}

// Poly returns the block's current polyphony.
func (b *Block) Poly() int { return b.poly }
