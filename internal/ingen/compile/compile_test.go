package compile

import (
	"testing"

	"github.com/ingen-audio/ingen/internal/ingen/graph"
)

func audioPort(dir graph.Direction, sym string, poly int) *graph.Port {
	return &graph.Port{Symbol: sym, Type: graph.PortAudio, Direction: dir, Polyphony: poly}
}

func mustAddBlock(t *testing.T, g *graph.Graph, b *graph.Block) {
	t.Helper()
	if err := g.AddBlock(b); err != nil {
		t.Fatalf("AddBlock(%s): %v", b.Path, err)
	}
}

func mustConnect(t *testing.T, g *graph.Graph, tail, head *graph.Port) error {
	t.Helper()
	return g.AddArc(&graph.Arc{Tail: tail, Head: head})
}

func TestCompileSimpleChain(t *testing.T) {
	t.Parallel()
	g := graph.NewGraph("/")

	aOut := audioPort(graph.DirOutput, "out", 1)
	a := graph.NewBlock("/a", graph.KindInternal, "", nil, []*graph.Port{aOut})
	mustAddBlock(t, g, a)

	bIn := audioPort(graph.DirInput, "in", 1)
	bOut := audioPort(graph.DirOutput, "out", 1)
	b := graph.NewBlock("/b", graph.KindInternal, "", nil, []*graph.Port{bIn, bOut})
	mustAddBlock(t, g, b)

	if err := mustConnect(t, g, aOut, bIn); err != nil {
		t.Fatalf("connect: %v", err)
	}

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Blocks) != 2 {
		t.Fatalf("expected 2 blocks in compiled graph, got %d", len(cg.Blocks))
	}
}

func TestFeedbackRefused(t *testing.T) {
	t.Parallel()
	g := graph.NewGraph("/")

	xOut := audioPort(graph.DirOutput, "out", 1)
	xIn := audioPort(graph.DirInput, "in", 1)
	x := graph.NewBlock("/x", graph.KindInternal, "", nil, []*graph.Port{xIn, xOut})
	mustAddBlock(t, g, x)

	yOut := audioPort(graph.DirOutput, "out", 1)
	yIn := audioPort(graph.DirInput, "in", 1)
	y := graph.NewBlock("/y", graph.KindInternal, "", nil, []*graph.Port{yIn, yOut})
	mustAddBlock(t, g, y)

	if err := mustConnect(t, g, xOut, yIn); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := mustConnect(t, g, yOut, xIn); err != nil {
		t.Fatalf("second connect should be accepted by AddArc (cycle caught at compile time): %v", err)
	}

	if _, err := Compile(g); err == nil {
		t.Fatal("expected COMPILATION_FAILED for feedback cycle")
	}
}

func TestBlockDelayBreaksFeedback(t *testing.T) {
	t.Parallel()
	g := graph.NewGraph("/")

	xOut := audioPort(graph.DirOutput, "out", 1)
	xIn := audioPort(graph.DirInput, "in", 1)
	x := graph.NewBlock("/x", graph.KindInternal, "", nil, []*graph.Port{xIn, xOut})
	mustAddBlock(t, g, x)

	dIn := audioPort(graph.DirInput, "in", 1)
	dOut := audioPort(graph.DirOutput, "out", 1)
	d := graph.NewBlock("/d", graph.KindInternal, "ingen:/internals/BlockDelay", nil, []*graph.Port{dIn, dOut})
	mustAddBlock(t, g, d)

	yIn := audioPort(graph.DirInput, "in", 1)
	yOut := audioPort(graph.DirOutput, "out", 1)
	y := graph.NewBlock("/y", graph.KindInternal, "", nil, []*graph.Port{yIn, yOut})
	mustAddBlock(t, g, y)

	if err := mustConnect(t, g, xOut, dIn); err != nil {
		t.Fatalf("x->d: %v", err)
	}
	if err := mustConnect(t, g, dOut, yIn); err != nil {
		t.Fatalf("d->y: %v", err)
	}
	if err := mustConnect(t, g, yOut, xIn); err != nil {
		t.Fatalf("y->x: %v", err)
	}

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("expected compile to succeed with BlockDelay breaking the cycle: %v", err)
	}
	if len(cg.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(cg.Blocks))
	}
}

func TestEachBlockAppearsExactlyOnce(t *testing.T) {
	t.Parallel()
	g := graph.NewGraph("/")

	// Diamond: a -> b, a -> c, b -> d, c -> d
	aOut := audioPort(graph.DirOutput, "out", 1)
	a := graph.NewBlock("/a", graph.KindInternal, "", nil, []*graph.Port{aOut})
	mustAddBlock(t, g, a)

	bIn, bOut := audioPort(graph.DirInput, "in", 1), audioPort(graph.DirOutput, "out", 1)
	b := graph.NewBlock("/b", graph.KindInternal, "", nil, []*graph.Port{bIn, bOut})
	mustAddBlock(t, g, b)

	cIn, cOut := audioPort(graph.DirInput, "in", 1), audioPort(graph.DirOutput, "out", 1)
	c := graph.NewBlock("/c", graph.KindInternal, "", nil, []*graph.Port{cIn, cOut})
	mustAddBlock(t, g, c)

	dIn1 := audioPort(graph.DirInput, "in1", 1)
	dIn2 := audioPort(graph.DirInput, "in2", 1)
	dd := graph.NewBlock("/d", graph.KindInternal, "", nil, []*graph.Port{dIn1, dIn2})
	mustAddBlock(t, g, dd)

	for _, err := range []error{
		mustConnect(t, g, aOut, bIn),
		mustConnect(t, g, aOut, cIn),
		mustConnect(t, g, bOut, dIn1),
		mustConnect(t, g, cOut, dIn2),
	} {
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	seen := map[string]int{}
	var countTask func(*Task)
	countTask = func(task *Task) {
		if task.Kind == TaskSingle {
			seen[string(task.Block.Path)]++
			return
		}
		for _, c := range task.Children {
			countTask(c)
		}
	}
	countTask(cg.Root)
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		if seen[p] != 1 {
			t.Errorf("block %s appears %d times in compiled tree, want 1", p, seen[p])
		}
	}
}
