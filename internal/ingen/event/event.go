// Package event implements the engine's client-mutation pipeline: every
// structural or property change a client requests becomes an Event that
// runs through pre_process (pre-process thread, may allocate/fail),
// execute (audio thread, must not allocate or block), and post_process
// (pre-process thread: notify clients, dispose replaced structures, push
// the inverse onto the undo/redo stack).
package event

import (
	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/store"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingen/undo"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

// Mode distinguishes a normal client edit from the replay of an inverse
// event during undo or redo, which controls which stack the resulting
// inverse is pushed onto.
type Mode int

const (
	ModeNormal Mode = iota
	ModeUndo
	ModeRedo
)

// Kind names an event for logging, metrics labels, and client
// notifications; it mirrors the taxonomy in the external interface
// contract.
type Kind string

const (
	KindPut           Kind = "put"
	KindDelta         Kind = "delta"
	KindSet           Kind = "set"
	KindConnect       Kind = "connect"
	KindDisconnect    Kind = "disconnect"
	KindDisconnectAll Kind = "disconnect_all"
	KindCreateBlock   Kind = "create_block"
	KindCreateGraph   Kind = "create_graph"
	KindCreatePort    Kind = "create_port"
	KindDelete        Kind = "delete"
	KindMove          Kind = "move"
	KindCopy          Kind = "copy"
	KindGet           Kind = "get"
	KindMark          Kind = "mark"
	KindSetPortValue  Kind = "set_port_value"
)

// Header carries the fields common to every Event.
type Header struct {
	ClientID          string
	SeqID             uint64
	RequestTimeFrames int64
	Mode              Mode
}

// Target is what Undo submits its inverse event against — normally the
// engine itself, with Mode == ModeUndo or ModeRedo.
type Target interface {
	Submit(e Event)
}

// Notification is what post_process hands to a Notifier once an event has
// taken effect.
type Notification struct {
	Kind    Kind
	Subject types.Path
	Status  ingenerr.Status
	Detail  any
}

// Notifier is the minimal interface post_process needs from the
// Broadcaster; kept here (rather than importing the broadcast package) so
// event has no dependency on it.
type Notifier interface {
	Notify(n Notification)
}

// Disposer releases a structure Execute swapped out of the live graph (an
// old port/voice array, a released buffer); it runs on the pre-process or
// post-process thread, modeling the source's Raul::Maid recycler.
type Disposer func()

// PreProcessContext is threaded through every Event's PreProcess call. It
// tracks the Store, the buffer factory, the undo/redo stacks, which Graphs
// have gone dirty during an open bundle, and the current bundle nesting
// depth; compilation of dirty graphs is deferred until Mark(BUNDLE_END).
type PreProcessContext struct {
	Store   *store.Store
	Buffers *buffer.Factory
	Undo    *undo.Stack[Event]
	Redo    *undo.Stack[Event]

	Dirty       map[*graph.Graph]bool
	BundleDepth int
}

// MarkDirty flags g as needing recompilation at the next Mark(BUNDLE_END).
func (c *PreProcessContext) MarkDirty(g *graph.Graph) {
	if c.Dirty == nil {
		c.Dirty = make(map[*graph.Graph]bool)
	}
	c.Dirty[g] = true
}

// InBundle reports whether a client bundle is currently open.
func (c *PreProcessContext) InBundle() bool { return c.BundleDepth > 0 }

// PostProcessContext is threaded through every Event's PostProcess call.
type PostProcessContext struct {
	Notifier  Notifier
	disposers []Disposer
}

// Dispose registers d to run once PostProcess for this event has emitted
// its notification; RunDisposers executes and clears the queue.
func (c *PostProcessContext) Dispose(d Disposer) {
	if d != nil {
		c.disposers = append(c.disposers, d)
	}
}

// RunDisposers runs and clears every registered Disposer.
func (c *PostProcessContext) RunDisposers() {
	for _, d := range c.disposers {
		d()
	}
	c.disposers = nil
}

// Event is the interface every client mutation implements, per the four
// phase pipeline in the engine's event-pipeline design.
type Event interface {
	Header() Header
	Kind() Kind

	// PreProcess runs on the pre-process thread, holding the Store mutex
	// when touching the path map; it prepares every structure Execute will
	// install and returns a terminal Status.
	PreProcess(ctx *PreProcessContext) ingenerr.Status

	// Execute runs on the audio thread: allocation-free, non-blocking,
	// installs prepared structures via atomic swap.
	Execute(ctx rtctx.RunContext)

	// PostProcess runs on the pre-process thread: notifies clients and
	// disposes of structures Execute swapped out.
	PostProcess(ctx *PostProcessContext)

	// Atomic reports whether this event must execute alone at a cycle
	// boundary (a Mark(BUNDLE_END) that closes a structurally-dirty
	// bundle, or a standalone polyphony change).
	Atomic() bool

	// Undo constructs this event's inverse and submits it against target
	// with the given mode (ModeUndo when popped from the undo stack,
	// ModeRedo when popped from the redo stack).
	Undo(target Target, mode Mode)
}

// base is embedded by every concrete Event to supply Header/Atomic.
type base struct {
	hdr    Header
	atomic bool
}

func (b base) Header() Header { return b.hdr }
func (b base) Atomic() bool   { return b.atomic }
