// Package broadcast implements the engine's client notification fan-out:
// a non-blocking, worker-pool-backed publisher that post_process uses to
// tell connected clients about an event's effect without ever stalling
// the pre-process thread that drives it.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ingen-audio/ingen/internal/ingen/event"
	"github.com/ingen-audio/ingen/internal/logging"
)

// Client receives notifications; a websocket/HTTP-SSE client session
// implements this to relay them onward.
type Client interface {
	ID() string
	Deliver(n event.Notification)
}

// Config controls the broadcaster's internal queue and worker pool.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig mirrors the event-bus defaults this package is modeled on.
func DefaultConfig() Config {
	return Config{BufferSize: 10000, Workers: 4}
}

// Stats reports cumulative broadcaster counters.
type Stats struct {
	Received uint64
	Dropped  uint64
	Delivered uint64
	ClientErrors uint64
}

// Broadcaster fans a Notification out to every registered Client without
// blocking the publisher: TryPublish enqueues onto a bounded channel and
// drops (counting it) if workers can't keep up.
type Broadcaster struct {
	cfg Config

	queue chan event.Notification

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	running atomic.Bool

	mu      sync.Mutex
	clients []Client

	stats Stats

	logger *slog.Logger
}

// New constructs a Broadcaster using cfg (DefaultConfig() if zero-valued).
func New(cfg Config) *Broadcaster {
	if cfg.BufferSize == 0 {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		cfg:    cfg,
		queue:  make(chan event.Notification, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logging.ForService("broadcast"),
	}
	return b
}

// AddClient registers a client to receive future notifications, starting
// the worker pool on the first registration.
func (b *Broadcaster) AddClient(c Client) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.clients {
		if existing.ID() == c.ID() {
			return fmt.Errorf("client %s already registered", c.ID())
		}
	}
	b.clients = append(b.clients, c)
	if len(b.clients) == 1 && !b.running.Load() {
		b.start()
	}
	return nil
}

// RemoveClient unregisters a client by ID.
func (b *Broadcaster) RemoveClient(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.clients[:0]
	for _, c := range b.clients {
		if c.ID() != id {
			kept = append(kept, c)
		}
	}
	b.clients = kept
}

// Notify implements event.Notifier: it never blocks, dropping the
// notification (and counting it) if the queue is full.
func (b *Broadcaster) Notify(n event.Notification) {
	if b == nil || !b.running.Load() {
		return
	}
	select {
	case b.queue <- n:
		atomic.AddUint64(&b.stats.Received, 1)
	default:
		atomic.AddUint64(&b.stats.Dropped, 1)
		if b.logger != nil {
			b.logger.Debug("notification dropped, queue full", "kind", n.Kind)
		}
	}
}

func (b *Broadcaster) start() {
	if b.running.Swap(true) {
		return
	}
	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Broadcaster) worker(id int) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case n, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(n)
		}
	}
}

func (b *Broadcaster) deliver(n event.Notification) {
	b.mu.Lock()
	clients := make([]Client, len(b.clients))
	copy(clients, b.clients)
	b.mu.Unlock()

	for _, c := range clients {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ClientErrors, 1)
					if b.logger != nil {
						b.logger.Error("client notification panicked", "client", c.ID(), "panic", r)
					}
				}
			}()
			c.Deliver(n)
			atomic.AddUint64(&b.stats.Delivered, 1)
		}()
	}
}

// Shutdown stops accepting notifications and waits for in-flight delivery
// to finish, up to timeout.
func (b *Broadcaster) Shutdown(timeout time.Duration) error {
	if b == nil || !b.running.Load() {
		return nil
	}
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("broadcaster shutdown timeout exceeded")
	}
}

// GetStats returns a snapshot of cumulative counters.
func (b *Broadcaster) GetStats() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{
		Received:     atomic.LoadUint64(&b.stats.Received),
		Dropped:      atomic.LoadUint64(&b.stats.Dropped),
		Delivered:    atomic.LoadUint64(&b.stats.Delivered),
		ClientErrors: atomic.LoadUint64(&b.stats.ClientErrors),
	}
}
