package event

import (
	"github.com/ingen-audio/ingen/internal/ingen/compile"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

// MarkKind distinguishes the two boundary markers a client bundle uses.
type MarkKind int

const (
	BundleBegin MarkKind = iota
	BundleEnd
)

// Mark opens or closes a client bundle. Opening nests the undo stack's
// bundle depth; closing compiles every Graph that went dirty during the
// bundle exactly once and installs the replacements atomically at the next
// cycle boundary — this is what makes a multi-event bundle appear to the
// audio thread as a single atomic update.
type Mark struct {
	base
	MarkKind MarkKind

	compiled     map[*graph.Graph]*compile.CompiledGraph
	prevCompiled map[*graph.Graph]graph.Compiled
}

// NewMark constructs a Mark event for the given boundary kind. BUNDLE_END
// is always flagged Atomic, since its execute must install every dirty
// graph's new CompiledGraph in the same cycle boundary.
func NewMark(hdr Header, kind MarkKind) *Mark {
	return &Mark{base: base{hdr: hdr, atomic: kind == BundleEnd}, MarkKind: kind}
}

func (m *Mark) Kind() Kind { return KindMark }

func (m *Mark) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	switch m.MarkKind {
	case BundleBegin:
		ctx.BundleDepth++
		ctx.Undo.BeginBundle()
		return ingenerr.StatusSuccess

	case BundleEnd:
		if ctx.BundleDepth == 0 {
			return ingenerr.StatusFailure
		}
		ctx.BundleDepth--
		ctx.Undo.EndBundle()

		m.compiled = make(map[*graph.Graph]*compile.CompiledGraph, len(ctx.Dirty))
		for g := range ctx.Dirty {
			cg, err := compile.Compile(g)
			if err != nil {
				return ingenerr.StatusOf(err)
			}
			m.compiled[g] = cg
		}
		ctx.Dirty = nil
		return ingenerr.StatusSuccess
	}
	return ingenerr.StatusInternalError
}

// Execute installs every prepared CompiledGraph. Audio thread.
func (m *Mark) Execute(ctx rtctx.RunContext) {
	if m.MarkKind != BundleEnd || len(m.compiled) == 0 {
		return
	}
	m.prevCompiled = make(map[*graph.Graph]graph.Compiled, len(m.compiled))
	for g, cg := range m.compiled {
		m.prevCompiled[g] = g.SwapCompiledGraph(cg)
	}
}

func (m *Mark) PostProcess(ctx *PostProcessContext) {
	for range m.prevCompiled {
		// The old CompiledGraph tree is plain Go memory: GC reclaims it once
		// unreferenced, so disposal here is just dropping the map. Buffers
		// and voice arrays the individual structural events swapped out are
		// disposed by those events' own PostProcess, not by Mark's.
	}
	m.prevCompiled = nil
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindMark, Status: ingenerr.StatusSuccess})
	}
	ctx.RunDisposers()
}

// Undo re-marks the opposite boundary, so replaying an undone bundle's
// event list re-opens (or re-closes) the same grouping.
func (m *Mark) Undo(target Target, mode Mode) {
	inverse := BundleBegin
	if m.MarkKind == BundleBegin {
		inverse = BundleEnd
	}
	target.Submit(NewMark(Header{ClientID: m.hdr.ClientID, Mode: mode}, inverse))
}
