package compile

import (
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

// CompiledGraph is the immutable (per version) task tree derived from a
// Graph's current topology. It implements graph.Compiled so a *Graph can
// hold one without creating a graph<->compile import cycle.
type CompiledGraph struct {
	Root   *Task
	Blocks []*graph.Block // every block of the source Graph, exactly once
}

// Run executes the compiled tree for ctx.
func (cg *CompiledGraph) Run(ctx rtctx.RunContext) {
	if cg == nil || cg.Root == nil {
		return
	}
	cg.Root.Run(ctx)
}

type markState int

const (
	unvisited markState = iota
	visiting
	visited
)

// blockDelayKind is the BlockKind of the BlockDelay internal block, whose
// outgoing arcs are skipped for dependency purposes since they supply the
// previous cycle's value (the feedback-breaking exception in §4.6).
const blockDelayKind = graph.KindInternal

func isBlockDelay(b *graph.Block) bool {
	return b.Kind == blockDelayKind && b.PluginURI == "ingen:/internals/BlockDelay"
}

// edges computes, for every block, its providers (blocks it reads from
// via an input arc) and dependants (blocks that read from it), skipping
// BlockDelay provider edges for the purpose of the dependants count.
type edgeInfo struct {
	providers  map[*graph.Block][]*graph.Block
	dependants map[*graph.Block][]*graph.Block
}

func buildEdges(blocks []*graph.Block, arcs []*graph.Arc) edgeInfo {
	ei := edgeInfo{providers: map[*graph.Block][]*graph.Block{}, dependants: map[*graph.Block][]*graph.Block{}}
	for _, b := range blocks {
		ei.providers[b] = nil
		ei.dependants[b] = nil
	}
	for _, a := range arcs {
		tailBlock, headBlock := a.Tail.Block(), a.Head.Block()
		if tailBlock == nil || headBlock == nil || tailBlock == headBlock {
			continue
		}
		if isBlockDelay(tailBlock) {
			continue
		}
		ei.providers[headBlock] = append(ei.providers[headBlock], tailBlock)
		ei.dependants[tailBlock] = append(ei.dependants[tailBlock], headBlock)
	}
	return ei
}

// isSink reports whether every output of b either has no outgoing arc or
// only arcs to the containing graph's own output ports.
func isSink(b *graph.Block, ei edgeInfo) bool {
	return len(ei.dependants[b]) == 0
}

// Compile walks g's block DAG and produces a maximally-parallel Task tree,
// per the phased compilation algorithm in §4.6. Returns COMPILATION_FAILED
// (as an *ingenerr.EnhancedError carrying the offending pair in context) if
// a feedback cycle is found that isn't broken by a BlockDelay.
func Compile(g *graph.Graph) (*CompiledGraph, error) {
	var blocks []*graph.Block
	for _, b := range g.Blocks {
		blocks = append(blocks, b)
	}
	ei := buildEdges(blocks, g.Arcs)
	state := make(map[*graph.Block]markState, len(blocks))
	for _, b := range blocks {
		state[b] = unvisited
	}

	var working []*graph.Block
	for _, b := range blocks {
		if isSink(b, ei) {
			working = append(working, b)
		}
	}

	var phases []*Task // built in sink-first order; final order reversed
	visitedCount := 0

	for len(working) > 0 {
		phase, nextWorking, err := buildPhase(working, ei, state)
		if err != nil {
			return nil, err
		}
		phases = append(phases, phase)
		visitedCount += countSingles(phase)
		working = nextWorking
	}

	if visitedCount < len(blocks) {
		for _, b := range blocks {
			if state[b] != visited {
				return nil, ingenerr.New(nil).Component("compile").Category(ingenerr.CategoryCompilation).
					Context("reason", "feedback cycle with no BlockDelay break").
					Context("block", string(b.Path)).Build()
			}
		}
	}

	// Earliest phase first in the master Sequential; phases were appended
	// sink-first (last-executed-first), so reverse.
	master := &Task{Kind: TaskSequential}
	for i := len(phases) - 1; i >= 0; i-- {
		master.Children = append(master.Children, phases[i])
	}

	root := Simplify(master)
	return &CompiledGraph{Root: root, Blocks: blocks}, nil
}

// sequentialDepth is 2 if any provider of b has >=2 dependants, else
// 2 + min(sequentialDepth(provider)) recursively, per the phase_depth rule.
func sequentialDepth(b *graph.Block, ei edgeInfo, memo map[*graph.Block]int) int {
	if d, ok := memo[b]; ok {
		return d
	}
	providers := ei.providers[b]
	best := -1
	for _, p := range providers {
		if len(ei.dependants[p]) >= 2 {
			continue
		}
		d := sequentialDepth(p, ei, memo)
		if best == -1 || d < best {
			best = d
		}
	}
	var depth int
	if best == -1 {
		depth = 2
	} else {
		depth = 2 + best
	}
	memo[b] = depth
	return depth
}

func buildPhase(working []*graph.Block, ei edgeInfo, state map[*graph.Block]markState) (*Task, []*graph.Block, error) {
	memo := make(map[*graph.Block]int)
	phaseDepth := -1
	for _, b := range working {
		d := sequentialDepth(b, ei, memo)
		if phaseDepth == -1 || d < phaseDepth {
			phaseDepth = d
		}
	}

	parallel := &Task{Kind: TaskParallel}
	var nextWorking []*graph.Block
	seenNext := map[*graph.Block]bool{}

	for _, b := range working {
		seq, next, err := walkChain(b, ei, state, phaseDepth)
		if err != nil {
			return nil, nil, err
		}
		parallel.Children = append(parallel.Children, seq)
		for _, n := range next {
			if !seenNext[n] {
				seenNext[n] = true
				nextWorking = append(nextWorking, n)
			}
		}
	}
	// Keep only providers whose dependants have all run; the walk that
	// visits a provider's last dependant queues it again.
	ready := nextWorking[:0]
	for _, n := range nextWorking {
		ok := state[n] != visited
		for _, d := range ei.dependants[n] {
			ok = ok && state[d] == visited
		}
		if ok {
			ready = append(ready, n)
		}
	}
	return parallel, ready, nil
}

// walkChain builds a Sequential starting at b and walking its providers up
// to depth steps; a provider with multiple dependants is not walked into
// and is instead returned in nextWorking for the following phase.
func walkChain(b *graph.Block, ei edgeInfo, state map[*graph.Block]markState, depth int) (*Task, []*graph.Block, error) {
	seq := &Task{Kind: TaskSequential}
	var next []*graph.Block

	cur := b
	for step := 0; step < depth; step++ {
		if err := markVisiting(cur, ei, state); err != nil {
			return nil, nil, err
		}
		state[cur] = visited
		// Sequential order is providers-first (dependency before
		// dependant), so prepend.
		seq.Children = append([]*Task{{Kind: TaskSingle, Block: cur}}, seq.Children...)

		providers := ei.providers[cur]
		if len(providers) == 0 {
			cur = nil
			break
		}
		var chainProvider *graph.Block
		for _, p := range providers {
			if len(ei.dependants[p]) >= 2 {
				next = append(next, p)
				continue
			}
			if chainProvider == nil {
				chainProvider = p
				continue
			}
			// Another single-dependant provider: the chain can only
			// continue into one of them, so queue the rest for the
			// following phase instead of dropping them.
			next = append(next, p)
		}
		if chainProvider == nil {
			cur = nil
			break
		}
		cur = chainProvider
	}
	if cur != nil {
		next = append(next, cur)
	}
	return Simplify(seq), next, nil
}

func markVisiting(b *graph.Block, ei edgeInfo, state map[*graph.Block]markState) error {
	if state[b] == visiting {
		return ingenerr.New(nil).Component("compile").Category(ingenerr.CategoryCompilation).
			Context("block", string(b.Path)).Build()
	}
	state[b] = visiting
	return nil
}

func countSingles(t *Task) int {
	switch t.Kind {
	case TaskSingle:
		return 1
	default:
		n := 0
		for _, c := range t.Children {
			n += countSingles(c)
		}
		return n
	}
}
