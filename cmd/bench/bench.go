// Package bench implements "ingen bench compile": it runs the compiler
// against a synthetic chain-topology graph and reports the resulting task
// tree's shape, the way the teacher's benchmark command reports inference
// timings.
package bench

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ingen-audio/ingen/internal/ingen/compile"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/conf"
)

var blockCount int

// Command returns the "bench" command, whose only sub-command today is
// "compile".
func Command(settings *conf.Settings) *cobra.Command {
	root := &cobra.Command{
		Use:   "bench",
		Short: "Run Ingen micro-benchmarks",
	}
	root.AddCommand(compileCommand())
	return root
}

func compileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a synthetic chain graph and report task-tree shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileBench(blockCount)
		},
	}
	cmd.Flags().IntVarP(&blockCount, "blocks", "n", 64, "number of blocks in the synthetic chain")
	return cmd
}

func runCompileBench(n int) error {
	if n < 1 {
		return fmt.Errorf("blocks must be >= 1, got %d", n)
	}

	g := syntheticChain(n)

	start := time.Now()
	cg, err := compile.Compile(g)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	elapsed := time.Since(start)

	single, sequential, parallel := countTasks(cg.Root)
	fmt.Printf("Compiled %d blocks in %s\n", len(cg.Blocks), elapsed)
	fmt.Printf("Task tree: %d single, %d sequential, %d parallel nodes\n", single, sequential, parallel)
	return nil
}

// syntheticChain builds a Graph of n internal blocks, each block i's
// single output arc-connected to block i+1's single input, so the
// compiler sees one strictly sequential dependency chain.
func syntheticChain(n int) *graph.Graph {
	g := graph.NewGraph(types.Root)

	blocks := make([]*graph.Block, n)
	for i := 0; i < n; i++ {
		path := types.Root.Child(fmt.Sprintf("b%d", i))
		in := &graph.Port{Symbol: "in", Type: graph.PortAudio, Direction: graph.DirInput, Polyphony: 1}
		out := &graph.Port{Symbol: "out", Type: graph.PortAudio, Direction: graph.DirOutput, Polyphony: 1}
		in.SetPath(path.Child("in"))
		out.SetPath(path.Child("out"))
		b := graph.NewBlock(path, graph.KindInternal, "", nil, []*graph.Port{in, out})
		if err := g.AddBlock(b); err != nil {
			panic(err)
		}
		blocks[i] = b
	}

	for i := 0; i < n-1; i++ {
		tail := blocks[i].Ports()[1]
		head := blocks[i+1].Ports()[0]
		if err := g.AddArc(&graph.Arc{Tail: tail, Head: head}); err != nil {
			panic(err)
		}
	}

	return g
}

func countTasks(t *compile.Task) (single, sequential, parallel int) {
	if t == nil {
		return 0, 0, 0
	}
	switch t.Kind {
	case compile.TaskSingle:
		single++
	case compile.TaskSequential:
		sequential++
	case compile.TaskParallel:
		parallel++
	}
	for _, c := range t.Children {
		s, seq, p := countTasks(c)
		single += s
		sequential += seq
		parallel += p
	}
	return single, sequential, parallel
}
