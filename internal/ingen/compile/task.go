// Package compile turns a graph's block/arc topology into an immutable
// CompiledGraph: a tree of Tasks with maximum safe parallelism, replaced
// atomically whenever the topology changes.
package compile

import (
	"sync/atomic"

	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// TaskKind discriminates a Task node.
type TaskKind int

const (
	TaskSingle TaskKind = iota
	TaskSequential
	TaskParallel
)

// Task is one node of a CompiledGraph.
type Task struct {
	Kind     TaskKind
	Block    *graph.Block // set when Kind == TaskSingle
	Children []*Task      // set when Kind == TaskSequential or TaskParallel

	// claimed is the next-index counter Parallel children steal from; it
	// lives on the Task because Parallel nodes are immutable once built
	// but are re-run every cycle, so the counter resets each Run.
	claimed int32
	done    []int32 // 0/1 per child, so Run can drain via busy-wait
}

// Run executes the task on ctx. Single dispatches to the block; Sequential
// runs children left-to-right; Parallel claims one child itself and lets
// other pool workers steal the rest via ctx.StealPool, busy-waiting on the
// final drain (never blocking, per the audio thread's no-park rule).
func (t *Task) Run(ctx rtctx.RunContext) {
	switch t.Kind {
	case TaskSingle:
		if t.Block != nil {
			t.Block.Process(ctx)
		}
	case TaskSequential:
		for _, c := range t.Children {
			c.Run(ctx)
		}
	case TaskParallel:
		t.runParallel(ctx)
	}
}

func (t *Task) runParallel(ctx rtctx.RunContext) {
	n := len(t.Children)
	if n == 0 {
		return
	}
	atomic.StoreInt32(&t.claimed, 0)
	if len(t.done) != n {
		t.done = make([]int32, n)
	}
	for i := range t.done {
		atomic.StoreInt32(&t.done[i], 0)
	}

	// runOne atomically claims and runs the next unclaimed child; any
	// number of callers (this worker or a thief) may call it concurrently.
	runOne := func() bool {
		idx := int(atomic.AddInt32(&t.claimed, 1)) - 1
		if idx < 0 || idx >= n {
			return false
		}
		t.Children[idx].Run(ctx)
		atomic.StoreInt32(&t.done[idx], 1)
		return true
	}

	var token rtctx.ParallelToken
	if ctx.StealPool != nil {
		token = ctx.StealPool.EnterParallel(runOne)
		defer ctx.StealPool.ExitParallel(token)
	}

	// Current worker claims its own children first.
	for runOne() {
	}

	// Drain: once this frame is exhausted, help other registered frames
	// (an enclosing or sibling Parallel) until this node's children are
	// all done. Busy-wait only, per the audio thread's no-park rule.
	for !allDone(t.done) {
		if ctx.StealPool == nil || !ctx.StealPool.StealOne() {
			continue
		}
	}
}

func allDone(done []int32) bool {
	for _, d := range done {
		if atomic.LoadInt32(&d) == 0 {
			return false
		}
	}
	return true
}

// Simplify collapses single-child Sequential/Parallel nodes to their
// child, and merges nested Sequentials/Parallels of the same kind.
func Simplify(t *Task) *Task {
	if t == nil {
		return nil
	}
	if t.Kind == TaskSingle {
		return t
	}
	var flat []*Task
	for _, c := range t.Children {
		sc := Simplify(c)
		if sc.Kind == t.Kind {
			flat = append(flat, sc.Children...)
		} else {
			flat = append(flat, sc)
		}
	}
	t.Children = flat
	if len(t.Children) == 1 {
		return t.Children[0]
	}
	return t
}
