package runtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

func TestPoolImplementsStealPool(t *testing.T) {
	var _ rtctx.StealPool = (*Pool)(nil)
}

func TestStealOneRunsRegisteredFrame(t *testing.T) {
	p := NewPool(2)
	var claimed int32
	n := 4

	runOne := func() bool {
		idx := atomic.AddInt32(&claimed, 1) - 1
		return int(idx) < n
	}

	token := p.EnterParallel(runOne)
	defer p.ExitParallel(token)

	if !p.StealOne() {
		t.Fatal("expected StealOne to find and run the registered frame")
	}
	if atomic.LoadInt32(&claimed) != 1 {
		t.Fatalf("claimed = %d, want 1", claimed)
	}
}

func TestExitParallelRemovesFrame(t *testing.T) {
	p := NewPool(1)
	token := p.EnterParallel(func() bool { return true })
	p.ExitParallel(token)
	if p.StealOne() {
		t.Fatal("expected no frames left to steal from after ExitParallel")
	}
}

func TestStealOnePrefersMostRecentlyEntered(t *testing.T) {
	p := NewPool(1)
	var order []int

	outer := p.EnterParallel(func() bool { order = append(order, 1); return true })
	defer p.ExitParallel(outer)
	inner := p.EnterParallel(func() bool { order = append(order, 2); return true })
	defer p.ExitParallel(inner)

	p.StealOne()
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("expected innermost frame stolen from first, got %v", order)
	}
}

func TestWorkerGroupStartStop(t *testing.T) {
	pool := NewPool(3)
	wg := NewWorkerGroup(pool)

	var ran int32
	wg.Start(func(workerID int, stop <-chan struct{}) error {
		for {
			select {
			case <-stop:
				return nil
			default:
				atomic.AddInt32(&ran, 1)
				if !pool.StealOne() {
					time.Sleep(time.Millisecond)
				}
			}
		}
	})

	time.Sleep(10 * time.Millisecond)
	if err := wg.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if atomic.LoadInt32(&ran) == 0 {
		t.Fatal("expected workers to have run at least once")
	}
}
