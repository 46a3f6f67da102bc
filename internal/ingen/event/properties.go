package event

import (
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

func nodeAt(ctx *PreProcessContext, path types.Path) (interface {
	Properties() []types.Property
	SetProperty(types.URI, types.Atom, types.PropertyContext)
	AddProperty(types.URI, types.Atom, types.PropertyContext)
	RemoveProperty(types.URI, types.Atom, bool)
}, ingenerr.Status) {
	n := ctx.Store.Get(path)
	if n == nil {
		return nil, ingenerr.StatusNotFound
	}
	switch v := n.(type) {
	case *graph.Block:
		return v, ingenerr.StatusSuccess
	case *graph.Port:
		return v, ingenerr.StatusSuccess
	case *graph.Graph:
		return v, ingenerr.StatusSuccess
	default:
		return nil, ingenerr.StatusBadObjectType
	}
}

// Put replaces the subject's entire property set, in every context, with
// the supplied properties, the way a full resource description does.
type Put struct {
	base
	Subject    types.Path
	Properties []types.Property

	previous []types.Property
}

func NewPut(hdr Header, subject types.Path, props []types.Property) *Put {
	return &Put{base: base{hdr: hdr}, Subject: subject, Properties: props}
}

func (e *Put) Kind() Kind { return KindPut }

func (e *Put) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	n, status := nodeAt(ctx, e.Subject)
	if status != ingenerr.StatusSuccess {
		return status
	}
	e.previous = n.Properties()
	for _, p := range e.previous {
		n.RemoveProperty(p.Key, types.Atom{}, false)
	}
	for _, p := range e.Properties {
		n.AddProperty(p.Key, p.Value, p.Context)
	}
	return ingenerr.StatusSuccess
}

func (e *Put) Execute(ctx rtctx.RunContext) {}

func (e *Put) PostProcess(ctx *PostProcessContext) {
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindPut, Subject: e.Subject, Status: ingenerr.StatusSuccess})
	}
	ctx.RunDisposers()
}

func (e *Put) Undo(target Target, mode Mode) {
	target.Submit(NewPut(Header{ClientID: e.hdr.ClientID, Mode: mode}, e.Subject, e.previous))
}

// DeltaOp discriminates one change within a Delta event.
type DeltaOp int

const (
	// DeltaAdd adds (key, value) without touching existing values for key.
	DeltaAdd DeltaOp = iota
	// DeltaRemove removes exactly the (key, value) pair given.
	DeltaRemove
	// DeltaRemoveAll removes every value under key regardless of value,
	// kept as its own DeltaOp (rather than a sentinel zero Atom meaning
	// "match anything") so a client can unambiguously clear a
	// multi-valued property in one change.
	DeltaRemoveAll
)

// DeltaChange is one add/remove/remove-all instruction within a Delta.
type DeltaChange struct {
	Op    DeltaOp
	Key   types.URI
	Value types.Atom
	Ctx   types.PropertyContext
}

// Delta patches a subject's properties with a list of additions and
// removals, rather than replacing the whole set as Put does.
type Delta struct {
	base
	Subject types.Path
	Changes []DeltaChange

	inverse []DeltaChange
}

func NewDelta(hdr Header, subject types.Path, changes []DeltaChange) *Delta {
	return &Delta{base: base{hdr: hdr}, Subject: subject, Changes: changes}
}

func (e *Delta) Kind() Kind { return KindDelta }

func (e *Delta) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	n, status := nodeAt(ctx, e.Subject)
	if status != ingenerr.StatusSuccess {
		return status
	}
	for _, c := range e.Changes {
		switch c.Op {
		case DeltaAdd:
			n.AddProperty(c.Key, c.Value, c.Ctx)
			e.inverse = append(e.inverse, DeltaChange{Op: DeltaRemove, Key: c.Key, Value: c.Value, Ctx: c.Ctx})
		case DeltaRemove:
			n.RemoveProperty(c.Key, c.Value, true)
			e.inverse = append(e.inverse, DeltaChange{Op: DeltaAdd, Key: c.Key, Value: c.Value, Ctx: c.Ctx})
		case DeltaRemoveAll:
			removed := n.Properties()
			n.RemoveProperty(c.Key, types.Atom{}, false)
			for _, p := range removed {
				if p.Key == c.Key && p.Context == c.Ctx {
					e.inverse = append(e.inverse, DeltaChange{Op: DeltaAdd, Key: p.Key, Value: p.Value, Ctx: p.Context})
				}
			}
		}
	}
	return ingenerr.StatusSuccess
}

func (e *Delta) Execute(ctx rtctx.RunContext) {}

func (e *Delta) PostProcess(ctx *PostProcessContext) {
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindDelta, Subject: e.Subject, Status: ingenerr.StatusSuccess})
	}
	ctx.RunDisposers()
}

func (e *Delta) Undo(target Target, mode Mode) {
	target.Submit(NewDelta(Header{ClientID: e.hdr.ClientID, Mode: mode}, e.Subject, e.inverse))
}

// Set replaces every value of a single property key with one new value.
type Set struct {
	base
	Subject types.Path
	Key     types.URI
	Value   types.Atom
	Ctx     types.PropertyContext

	previous []types.Atom
}

func NewSet(hdr Header, subject types.Path, key types.URI, value types.Atom, pctx types.PropertyContext) *Set {
	return &Set{base: base{hdr: hdr}, Subject: subject, Key: key, Value: value, Ctx: pctx}
}

func (e *Set) Kind() Kind { return KindSet }

func (e *Set) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	n, status := nodeAt(ctx, e.Subject)
	if status != ingenerr.StatusSuccess {
		return status
	}
	for _, p := range n.Properties() {
		if p.Key == e.Key && p.Context == e.Ctx {
			e.previous = append(e.previous, p.Value)
		}
	}
	n.SetProperty(e.Key, e.Value, e.Ctx)
	return ingenerr.StatusSuccess
}

func (e *Set) Execute(ctx rtctx.RunContext) {}

func (e *Set) PostProcess(ctx *PostProcessContext) {
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindSet, Subject: e.Subject, Status: ingenerr.StatusSuccess})
	}
	ctx.RunDisposers()
}

func (e *Set) Undo(target Target, mode Mode) {
	hdr := Header{ClientID: e.hdr.ClientID, Mode: mode}
	if len(e.previous) == 0 {
		target.Submit(NewDelta(hdr, e.Subject, []DeltaChange{{Op: DeltaRemoveAll, Key: e.Key, Ctx: e.Ctx}}))
		return
	}
	target.Submit(NewSet(hdr, e.Subject, e.Key, e.previous[0], e.Ctx))
}

// SetPortValue writes a Port's control value at a given time offset,
// mirroring the audio thread's per-sample control-rate linearization.
type SetPortValue struct {
	base
	PortPath   types.Path
	Value      float64
	TimeFrames int

	port     *graph.Port
	previous float64
}

func NewSetPortValue(hdr Header, portPath types.Path, value float64, timeFrames int) *SetPortValue {
	return &SetPortValue{base: base{hdr: hdr}, PortPath: portPath, Value: value, TimeFrames: timeFrames}
}

func (e *SetPortValue) Kind() Kind { return KindSetPortValue }

func (e *SetPortValue) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	p := ctx.Store.FindPort(e.PortPath)
	if p == nil {
		return ingenerr.StatusNotFound
	}
	if p.Type != graph.PortControl && p.Type != graph.PortCV {
		return ingenerr.StatusBadValueType
	}
	e.port = p
	e.previous = p.Value
	return ingenerr.StatusSuccess
}

// Execute runs on the audio thread: SetControlValue only touches already
// allocated buffers, never allocates.
func (e *SetPortValue) Execute(ctx rtctx.RunContext) {
	e.port.SetControlValue(ctx, e.TimeFrames, e.Value)
}

func (e *SetPortValue) PostProcess(ctx *PostProcessContext) {
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindSetPortValue, Subject: e.PortPath, Status: ingenerr.StatusSuccess})
	}
	ctx.RunDisposers()
}

func (e *SetPortValue) Undo(target Target, mode Mode) {
	target.Submit(NewSetPortValue(Header{ClientID: e.hdr.ClientID, Mode: mode}, e.PortPath, e.previous, e.TimeFrames))
}

// Get triggers a snapshot notification of the subject's own current
// properties; for a Graph it does not include the child blocks, ports or
// arcs. It never mutates anything and has no inverse.
type Get struct {
	base
	Subject types.Path

	snapshot []types.Property
}

func NewGet(hdr Header, subject types.Path) *Get {
	return &Get{base: base{hdr: hdr}, Subject: subject}
}

func (e *Get) Kind() Kind { return KindGet }

func (e *Get) PreProcess(ctx *PreProcessContext) ingenerr.Status {
	n, status := nodeAt(ctx, e.Subject)
	if status != ingenerr.StatusSuccess {
		return status
	}
	e.snapshot = n.Properties()
	return ingenerr.StatusSuccess
}

func (e *Get) Execute(ctx rtctx.RunContext) {}

func (e *Get) PostProcess(ctx *PostProcessContext) {
	if ctx.Notifier != nil {
		ctx.Notifier.Notify(Notification{Kind: KindGet, Subject: e.Subject, Status: ingenerr.StatusSuccess, Detail: e.snapshot})
	}
	ctx.RunDisposers()
}

func (e *Get) Undo(target Target, mode Mode) {}
