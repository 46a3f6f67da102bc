package graph

import (
	"testing"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

func testFactory() *buffer.Factory {
	return buffer.NewFactory(buffer.Config{SmallSamples: 64, MediumSamples: 512, LargeSamples: 4096, SequenceCap: 16, MaxPerTier: 8}, 64, nil)
}

func newAudioPort(dir Direction, symbol string, poly int, f *buffer.Factory) *Port {
	p := &Port{Symbol: symbol, Type: PortAudio, Direction: dir, Polyphony: poly}
	voices := make([]VoiceSlot, poly)
	for i := range voices {
		voices[i] = VoiceSlot{Buffer: f.Get(buffer.KindAudio, 1, 1), Source: SourceOwned}
	}
	p.PrepareVoices(voices)
	p.ConnectBuffers()
	return p
}

func TestArcValidateTypeMismatch(t *testing.T) {
	t.Parallel()
	f := testFactory()
	out := newAudioPort(DirOutput, "out", 1, f)
	in := &Port{Symbol: "in", Type: PortControl, Direction: DirInput, Polyphony: 1}
	blk := NewBlock("/b", KindInternal, "", nil, []*Port{in})
	in.block = blk
	blk2 := NewBlock("/a", KindInternal, "", nil, []*Port{out})
	out.block = blk2
	if err := Validate(out, in); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestZeroCopySingleArcLaw(t *testing.T) {
	t.Parallel()
	f := testFactory()
	g := NewGraph("/")
	out := newAudioPort(DirOutput, "out", 1, f)
	in := &Port{Symbol: "in", Type: PortAudio, Direction: DirInput, Polyphony: 1}

	srcBlock := NewBlock("/src", KindInternal, "", nil, []*Port{out})
	dstBlock := NewBlock("/dst", KindInternal, "", nil, []*Port{in})
	_ = g.AddBlock(srcBlock)
	_ = g.AddBlock(dstBlock)

	arc := &Arc{Tail: out, Head: in}
	if err := g.AddArc(arc); err != nil {
		t.Fatalf("AddArc: %v", err)
	}

	voices := GetBuffers(f, in, []*Arc{arc}, 1)
	in.PrepareVoices(voices)
	in.ConnectBuffers()
	ResolveJoins(in.Voices())

	if in.Voices()[0].Buffer != out.Voices()[0].Buffer {
		t.Fatal("zero-copy single-arc law violated: buffers not reference-equal")
	}
}

func TestMonoToPolyFanOutJoin(t *testing.T) {
	t.Parallel()
	f := testFactory()
	g := NewGraph("/")

	out := newAudioPort(DirOutput, "out", 1, f)
	in := &Port{Symbol: "in", Type: PortAudio, Direction: DirInput, Polyphony: 4}

	srcBlock := NewBlock("/s", KindInternal, "", nil, []*Port{out})
	dstBlock := NewBlock("/p", KindInternal, "", nil, []*Port{in})
	_ = g.AddBlock(srcBlock)
	_ = g.AddBlock(dstBlock)

	arc := &Arc{Tail: out, Head: in}
	if err := g.AddArc(arc); err != nil {
		t.Fatalf("AddArc: %v", err)
	}

	voices := GetBuffers(f, in, []*Arc{arc}, 4)
	in.PrepareVoices(voices)
	in.ConnectBuffers()
	ResolveJoins(in.Voices())

	for i, v := range in.Voices() {
		if v.Buffer != out.Voices()[0].Buffer {
			t.Fatalf("voice %d: mono->poly fan-out not joined to source buffer", i)
		}
	}
}

func TestPolyToMonoSingleArcDownmix(t *testing.T) {
	t.Parallel()
	f := testFactory()
	g := NewGraph("/")

	const poly = 4
	const c = float32(3.0)

	out := &Port{Symbol: "out", Type: PortAudio, Direction: DirOutput, Polyphony: poly}
	outVoices := make([]VoiceSlot, poly)
	for i := range outVoices {
		buf := f.Get(buffer.KindAudio, 1, 1)
		for j := range buf.Data {
			buf.Data[j] = c
		}
		outVoices[i] = VoiceSlot{Buffer: buf, Source: SourceOwned}
	}
	out.PrepareVoices(outVoices)
	out.ConnectBuffers()

	in := &Port{Symbol: "in", Type: PortAudio, Direction: DirInput, Polyphony: 1}

	srcBlock := NewBlock("/src", KindInternal, "", nil, []*Port{out})
	dstBlock := NewBlock("/dst", KindInternal, "", nil, []*Port{in})
	_ = g.AddBlock(srcBlock)
	_ = g.AddBlock(dstBlock)

	arc := &Arc{Tail: out, Head: in}
	if err := g.AddArc(arc); err != nil {
		t.Fatalf("AddArc: %v", err)
	}

	voices := GetBuffers(f, in, []*Arc{arc}, 1) // poly(4) != poly(1): owned, mixed
	in.PrepareVoices(voices)
	in.ConnectBuffers()
	in.IncomingArcs = []*Arc{arc}

	ctx := rtctx.RunContext{SubStart: 0, SubEnd: 64}
	in.PreRun(ctx)

	for _, v := range in.Voices()[0].Buffer.Data {
		if v != c {
			t.Fatalf("poly->mono downmix scaling wrong: got %v, want %v", v, c)
		}
	}
}

func TestMixingConservationThroughPreRun(t *testing.T) {
	t.Parallel()
	f := testFactory()
	g := NewGraph("/")

	const n = 4
	const c = float32(2.0)

	in := &Port{Symbol: "in", Type: PortAudio, Direction: DirInput, Polyphony: 1}
	dstBlock := NewBlock("/dst", KindInternal, "", nil, []*Port{in})
	_ = g.AddBlock(dstBlock)
	voices := GetBuffers(f, in, make([]*Arc, n), 1) // forces "owned, mix" branch
	in.PrepareVoices(voices)
	in.ConnectBuffers()

	var arcs []*Arc
	for i := 0; i < n; i++ {
		out := newAudioPort(DirOutput, "out", 1, f)
		for j := range out.Voices()[0].Buffer.Data {
			out.Voices()[0].Buffer.Data[j] = c
		}
		srcBlock := NewBlock(types.Path("/src").Child(string(rune('a'+i))), KindInternal, "", nil, []*Port{out})
		_ = g.AddBlock(srcBlock)
		arc := &Arc{Tail: out, Head: in}
		if err := g.AddArc(arc); err != nil {
			t.Fatalf("AddArc: %v", err)
		}
		arcs = append(arcs, arc)
	}
	in.IncomingArcs = arcs

	ctx := rtctx.RunContext{SubStart: 0, SubEnd: 64}
	in.PreRun(ctx)

	for _, v := range in.Voices()[0].Buffer.Data {
		if v != c {
			t.Fatalf("mixing conservation violated via PreRun: got %v, want %v", v, c)
		}
	}
}

func TestNestedPolyphonyClampedToParent(t *testing.T) {
	t.Parallel()
	parent := NewGraph("/parent")
	parent.InternalPoly = 3
	child := NewGraph("/parent/child")
	child.Parent = parent

	poly, err := child.PrepareInternalPoly(8)
	if err != nil {
		t.Fatalf("PrepareInternalPoly: %v", err)
	}
	if poly != 3 {
		t.Fatalf("expected nested polyphony clamped to 3, got %d", poly)
	}
}

func TestPrepareInternalPolyRejectsOutOfRange(t *testing.T) {
	t.Parallel()
	g := NewGraph("/")
	if _, err := g.PrepareInternalPoly(0); err == nil {
		t.Fatal("expected error for poly=0")
	}
	if _, err := g.PrepareInternalPoly(MaxPolyphony + 1); err == nil {
		t.Fatal("expected error for poly > max")
	}
}

func TestRemoveBlockDetachesArcs(t *testing.T) {
	t.Parallel()
	f := testFactory()
	g := NewGraph("/")
	out := newAudioPort(DirOutput, "out", 1, f)
	in := &Port{Symbol: "in", Type: PortAudio, Direction: DirInput, Polyphony: 1}
	srcBlock := NewBlock("/src", KindInternal, "", nil, []*Port{out})
	dstBlock := NewBlock("/dst", KindInternal, "", nil, []*Port{in})
	_ = g.AddBlock(srcBlock)
	_ = g.AddBlock(dstBlock)
	arc := &Arc{Tail: out, Head: in}
	_ = g.AddArc(arc)

	g.RemoveBlock(srcBlock)
	if len(g.Arcs) != 0 {
		t.Fatalf("expected arc removed along with block, got %d arcs", len(g.Arcs))
	}
	if len(in.IncomingArcs) != 0 {
		t.Fatalf("expected incoming arc detached, got %d", len(in.IncomingArcs))
	}
}
