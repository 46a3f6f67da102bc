// Package runtime implements the work-stealing pool audio worker threads
// use to help drain Parallel tasks, and the bounded goroutine pool that
// hosts them (started/stopped through golang.org/x/sync/errgroup). The
// steal loop never waits on a channel, but Pool.StealOne takes the pool
// mutex briefly and copies the registered frame list into a fresh slice on
// every call.
package runtime

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Pool is the audio-thread work-stealing registry: a set of currently
// running Parallel frames that idle workers scan for unclaimed work. It
// implements rtctx.StealPool.
//
// Registration/deregistration takes a mutex, which is safe here because
// it only ever guards a slice append/remove of already-allocated frame
// slots (preallocated in NewPool), never a blocking wait — the audio
// thread's no-block rule is about suspension, not about every critical
// section being lock-free.
type Pool struct {
	mu     sync.Mutex
	frames []func() bool

	workers int
}

// NewPool returns a Pool sized for the given worker count (0 means
// runtime.NumCPU()-1, leaving one core for the driver thread itself).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	return &Pool{workers: workers, frames: make([]func() bool, 0, 8)}
}

// Workers returns the configured worker count (excluding the driver
// thread itself).
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) EnterParallel(tryRunOne func() bool) rtctx.ParallelToken {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, tryRunOne)
	return len(p.frames) - 1
}

func (p *Pool) ExitParallel(token rtctx.ParallelToken) {
	idx, ok := token.(int)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.frames) {
		return
	}
	// Swap with the last element and shrink; frame order never matters.
	last := len(p.frames) - 1
	p.frames[idx] = p.frames[last]
	p.frames = p.frames[:last]
}

// StealOne asks each currently registered frame, most recently entered
// first, to run one more unclaimed child. Returns true on the first
// success.
func (p *Pool) StealOne() bool {
	p.mu.Lock()
	frames := make([]func() bool, len(p.frames))
	copy(frames, p.frames)
	p.mu.Unlock()

	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i]() {
			return true
		}
	}
	return false
}

// WorkerGroup manages the lifecycle of the N background worker goroutines
// that help the driver thread drain Parallel tasks between cycles. It is
// pre-process/engine-startup machinery only: once Start returns, each
// goroutine only runs Helper.
type WorkerGroup struct {
	pool   *Pool
	group  *errgroup.Group
	cancel context.CancelFunc
}

// Helper is supplied by the Engine: one call does one unit of stolen work
// (or a brief idle spin) and returns whether the group should keep running.
type Helper func(workerID int, stop <-chan struct{}) error

// NewWorkerGroup constructs a group bound to pool.
func NewWorkerGroup(pool *Pool) *WorkerGroup {
	return &WorkerGroup{pool: pool}
}

// Start launches pool.Workers() goroutines, each running fn until Stop is
// called or fn returns an error.
func (wg *WorkerGroup) Start(fn Helper) {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	wg.cancel = cancel
	wg.group = g

	stop := ctx.Done()
	for i := 0; i < wg.pool.Workers(); i++ {
		workerID := i
		g.Go(func() error {
			stopCh := make(chan struct{})
			go func() {
				<-stop
				close(stopCh)
			}()
			return fn(workerID, stopCh)
		})
	}
}

// Stop signals every worker to exit and waits for them.
func (wg *WorkerGroup) Stop() error {
	if wg.cancel == nil {
		return nil
	}
	wg.cancel()
	return wg.group.Wait()
}
