// Package rtctx defines the per-cycle execution context threaded through
// every audio-thread call. It has no dependency on the graph or compile
// packages so that both can depend on it without an import cycle.
package rtctx

import "github.com/ingen-audio/ingen/internal/ingen/buffer"

// ParallelToken identifies a Parallel frame registered with a StealPool,
// returned by EnterParallel and handed back to ExitParallel.
type ParallelToken any

// StealPool is the minimal interface a Parallel task needs from the
// work-stealing runtime. A Parallel registers itself as a frame other idle
// workers can steal from while it runs, and unregisters when its own
// children are all done.
type StealPool interface {
	// EnterParallel registers a frame whose tryRunOne claims and runs one
	// not-yet-claimed child, returning false once the frame is exhausted.
	// tryRunOne may be called concurrently by any worker.
	EnterParallel(tryRunOne func() bool) ParallelToken
	ExitParallel(token ParallelToken)

	// StealOne asks some other registered frame to run one more of its
	// children. Returns true if work was found and run.
	StealOne() bool
}

// RunContext carries the active sample range and worker identity for one
// audio-thread call. sub_start/sub_end narrow cycle_start/cycle_end when a
// mid-cycle event splits the cycle into sub-ranges.
type RunContext struct {
	CycleStartFrame int64
	CycleEndFrame   int64

	SubStart int
	SubEnd   int

	WorkerID  int
	StealPool StealPool
}

// Range returns the context's active sample range as a buffer.Range.
func (c RunContext) Range() buffer.Range {
	return buffer.Range{Start: c.SubStart, End: c.SubEnd}
}

// Frames returns the number of frames in the sub-range.
func (c RunContext) Frames() int {
	return c.SubEnd - c.SubStart
}

// WithSubRange returns a copy of c narrowed to [start, end).
func (c RunContext) WithSubRange(start, end int) RunContext {
	c.SubStart = start
	c.SubEnd = end
	return c
}
