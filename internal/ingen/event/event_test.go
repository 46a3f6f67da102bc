package event

import (
	"testing"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/store"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingen/undo"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

type fakeNotifier struct{ notes []Notification }

func (f *fakeNotifier) Notify(n Notification) { f.notes = append(f.notes, n) }

type fakeTarget struct{ submitted []Event }

func (f *fakeTarget) Submit(e Event) { f.submitted = append(f.submitted, e) }

func testPreCtx(root *graph.Graph) (*PreProcessContext, *store.Store) {
	s := store.New(root)
	f := buffer.NewFactory(buffer.Config{SmallSamples: 64, MediumSamples: 256, LargeSamples: 1024, SequenceCap: 16, MaxPerTier: 8}, 64, nil)
	return &PreProcessContext{
		Store:   s,
		Buffers: f,
		Undo:    undo.NewStack[Event](),
		Redo:    undo.NewStack[Event](),
	}, s
}

func runCtx() rtctx.RunContext {
	return rtctx.RunContext{SubStart: 0, SubEnd: 64}
}

func TestPutThenUndoRestoresProperties(t *testing.T) {
	root := graph.NewGraph(types.Root)
	ctx, s := testPreCtx(root)

	blockPath := types.Root.Child("osc")
	b := graph.NewBlock(blockPath, graph.KindInternal, "", nil, nil)
	if err := root.AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := s.Put(blockPath, b, false); err != nil {
		t.Fatalf("store.Put: %v", err)
	}

	put := NewPut(Header{}, blockPath, []types.Property{{Key: "ingen:freq", Value: types.FloatAtom(440)}})
	if status := put.PreProcess(ctx); status != ingenerr.StatusSuccess {
		t.Fatalf("PreProcess status = %v", status)
	}
	put.Execute(runCtx())
	pctx := &PostProcessContext{}
	put.PostProcess(pctx)

	if v, ok := b.Get("ingen:freq", types.ContextDefault); !ok || v.Float != 440 {
		t.Fatalf("expected freq=440 after Put, got %v %v", v, ok)
	}

	target := &fakeTarget{}
	put.Undo(target, ModeUndo)
	if len(target.submitted) != 1 {
		t.Fatalf("expected one inverse event submitted, got %d", len(target.submitted))
	}
	inverse := target.submitted[0].(*Put)
	if status := inverse.PreProcess(ctx); status != ingenerr.StatusSuccess {
		t.Fatalf("inverse PreProcess status = %v", status)
	}
	if _, ok := b.Get("ingen:freq", types.ContextDefault); ok {
		t.Fatal("expected freq property removed after undoing Put")
	}
}

func TestDeltaRemoveAllClearsEveryValue(t *testing.T) {
	root := graph.NewGraph(types.Root)
	ctx, s := testPreCtx(root)
	blockPath := types.Root.Child("osc")
	b := graph.NewBlock(blockPath, graph.KindInternal, "", nil, nil)
	root.AddBlock(b)
	s.Put(blockPath, b, false)

	b.AddProperty("ingen:tag", types.StringAtom("a"), types.ContextDefault)
	b.AddProperty("ingen:tag", types.StringAtom("b"), types.ContextDefault)

	delta := NewDelta(Header{}, blockPath, []DeltaChange{{Op: DeltaRemoveAll, Key: "ingen:tag", Ctx: types.ContextDefault}})
	if status := delta.PreProcess(ctx); status != ingenerr.StatusSuccess {
		t.Fatalf("PreProcess status = %v", status)
	}
	for _, p := range b.Properties() {
		if p.Key == "ingen:tag" {
			t.Fatal("expected all ingen:tag values removed")
		}
	}
	if len(delta.inverse) != 2 {
		t.Fatalf("expected 2 inverse adds restoring both values, got %d", len(delta.inverse))
	}
}

func TestConnectOutsideBundleCompilesImmediatelyAndIsAtomic(t *testing.T) {
	root := graph.NewGraph(types.Root)
	ctx, s := testPreCtx(root)

	outPort := &graph.Port{Symbol: "out", Type: graph.PortAudio, Direction: graph.DirOutput, Polyphony: 1}
	a := graph.NewBlock(types.Root.Child("a"), graph.KindInternal, "", nil, []*graph.Port{outPort})
	outPort.SetPath(a.Path.Child("out"))
	root.AddBlock(a)
	s.Put(a.Path, a, false)
	s.Put(outPort.Path, outPort, false)

	inPort := &graph.Port{Symbol: "in", Type: graph.PortAudio, Direction: graph.DirInput, Polyphony: 1}
	bb := graph.NewBlock(types.Root.Child("b"), graph.KindInternal, "", nil, []*graph.Port{inPort})
	inPort.SetPath(bb.Path.Child("in"))
	root.AddBlock(bb)
	s.Put(bb.Path, bb, false)
	s.Put(inPort.Path, inPort, false)

	conn := NewConnect(Header{}, outPort.Path, inPort.Path)
	status := conn.PreProcess(ctx)
	if status != ingenerr.StatusSuccess {
		t.Fatalf("Connect PreProcess status = %v", status)
	}
	if !conn.Atomic() {
		t.Fatal("expected standalone Connect (outside a bundle) to be atomic")
	}
	conn.Execute(runCtx())
	if root.CompiledGraph() == nil {
		t.Fatal("expected CompiledGraph to be installed after standalone Connect")
	}
}

func TestBundleDefersCompilationToMarkEnd(t *testing.T) {
	root := graph.NewGraph(types.Root)
	ctx, _ := testPreCtx(root)

	begin := NewMark(Header{}, BundleBegin)
	if status := begin.PreProcess(ctx); status != ingenerr.StatusSuccess {
		t.Fatalf("begin PreProcess: %v", status)
	}
	if !ctx.InBundle() {
		t.Fatal("expected bundle open after BundleBegin")
	}

	ctx.MarkDirty(root)

	end := NewMark(Header{}, BundleEnd)
	if status := end.PreProcess(ctx); status != ingenerr.StatusSuccess {
		t.Fatalf("end PreProcess: %v", status)
	}
	if ctx.InBundle() {
		t.Fatal("expected bundle closed after BundleEnd")
	}
	end.Execute(runCtx())
	if root.CompiledGraph() == nil {
		t.Fatal("expected Mark(BUNDLE_END) to install the dirty graph's CompiledGraph")
	}
}
