package graph

import (
	"sync/atomic"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// PortType is the data type carried by a Port.
type PortType int

const (
	PortAudio PortType = iota
	PortControl
	PortCV
	PortAtom
)

// Direction is whether a Port is an input or output.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
)

// VoiceSource discriminates whether a voice slot owns its buffer or is
// joined (aliased) to another port's voice, the zero-copy pass-through.
type VoiceSource int

const (
	SourceOwned VoiceSource = iota
	SourceJoined
)

// VoiceSlot is one of a port's polyphony independent buffer handles.
type VoiceSlot struct {
	Buffer      *buffer.Buffer
	Source      VoiceSource
	JoinedPort  *Port
	JoinedVoice int
}

// Port is one input or output on a Block.
type Port struct {
	Node

	Index          int
	Symbol         string
	Type           PortType
	Direction      Direction
	BufferTypeURID types.URID
	ValueTypeURID  types.URID
	Polyphony      int

	Value, Min, Max float64

	Monitoring bool

	block *Block

	voices  atomic.Pointer[[]VoiceSlot]
	pending atomic.Pointer[[]VoiceSlot]

	// IncomingArcs is maintained by the owning Graph; an INPUT port mixes
	// across these each pre_run.
	IncomingArcs []*Arc
}

// Block returns the Port's owning Block.
func (p *Port) Block() *Block { return p.block }

// Voices returns the port's current, audio-thread-visible voice array.
func (p *Port) Voices() []VoiceSlot {
	v := p.voices.Load()
	if v == nil {
		return nil
	}
	return *v
}

// PrepareVoices installs a replacement voice array to take effect on the
// next ConnectBuffers call (pre-process thread: allocate now, swap later).
func (p *Port) PrepareVoices(voices []VoiceSlot) {
	p.pending.Store(&voices)
}

// ConnectBuffers installs any pending voice-array replacement, returning
// the previous array for maid-style disposal on the pre-process thread.
// Audio thread, called once per cycle before PrepareBuffers.
func (p *Port) ConnectBuffers() []VoiceSlot {
	next := p.pending.Load()
	if next == nil {
		return nil
	}
	p.pending.Store(nil)
	old := p.voices.Swap(next)
	if old == nil {
		return nil
	}
	return *old
}

// PrepareBuffers clears each owned output voice buffer at the start of a
// cycle; JOINED voices and INPUT ports are untouched here.
func (p *Port) PrepareBuffers(ctx rtctx.RunContext) {
	if p.Direction != DirOutput {
		return
	}
	for _, v := range p.Voices() {
		if v.Source == SourceOwned && v.Buffer != nil {
			v.Buffer.Clear(ctx.Range())
		}
	}
}

// PreRun mixes incoming arcs into an INPUT port's voice buffers, applying
// the polyphonic fan-in/fan-out rule documented on GetBuffers.
func (p *Port) PreRun(ctx rtctx.RunContext) {
	if p.Direction != DirInput {
		return
	}
	voices := p.Voices()
	for vi := range voices {
		slot := &voices[vi]
		if slot.Source == SourceJoined || slot.Buffer == nil {
			continue
		}
		slot.Buffer.Clear(ctx.Range())
		contributors := 0
		for _, arc := range p.IncomingArcs {
			src := arc.Tail
			srcVoices := src.Voices()
			if len(srcVoices) == 0 {
				continue
			}
			switch {
			case len(srcVoices) == len(voices):
				// Equal polyphony: direct per-voice mapping.
				if vi >= len(srcVoices) {
					continue
				}
				srcBuf := srcVoices[vi].Buffer
				if srcBuf == nil {
					continue
				}
				slot.Buffer.Accumulate(ctx.Range(), srcBuf)
				contributors++
			case len(srcVoices) == 1:
				// Mono source feeding a polyphonic destination: replicate.
				srcBuf := srcVoices[0].Buffer
				if srcBuf == nil {
					continue
				}
				slot.Buffer.Accumulate(ctx.Range(), srcBuf)
				contributors++
			default:
				// Polyphonic source feeding a lower-polyphony destination
				// (poly->mono): sum every source voice, scaled 1/source_poly.
				n := 0
				for _, sv := range srcVoices {
					if sv.Buffer == nil {
						continue
					}
					slot.Buffer.Accumulate(ctx.Range(), sv.Buffer)
					n++
				}
				if n > 0 {
					slot.Buffer.Scale(ctx.Range(), 1.0/float32(n))
					contributors++
				}
			}
		}
		if contributors > 1 && (p.Type == PortAudio || p.Type == PortCV) {
			slot.Buffer.Scale(ctx.Range(), 1.0/float32(contributors))
		}
	}
}

// SetControlValue writes value into every voice at the given time offset
// and flags monitoring. CONTROL/CV only.
func (p *Port) SetControlValue(ctx rtctx.RunContext, timeFrames int, value float64) {
	if p.Type != PortControl && p.Type != PortCV {
		return
	}
	for _, v := range p.Voices() {
		if v.Buffer != nil {
			v.Buffer.SetControlValue(timeFrames, value)
		}
	}
	p.Value = value
	p.Monitoring = true
}

// GetBuffers fills a fresh voices array for this port per the polyphonic
// fan-in/fan-out rule, given the number of incoming arcs (0, 1, or many)
// and whether the single arc's source polyphony matches. Pre-process
// thread; the result is installed later via PrepareVoices/ConnectBuffers.
func GetBuffers(factory *buffer.Factory, p *Port, arcs []*Arc, poly int) []VoiceSlot {
	out := make([]VoiceSlot, poly)
	switch {
	case len(arcs) == 0:
		for i := range out {
			out[i] = VoiceSlot{Buffer: factory.Get(bufferKind(p.Type), p.BufferTypeURID, p.ValueTypeURID), Source: SourceOwned}
		}
	case len(arcs) == 1 && arcs[0].Tail.Polyphony == poly:
		src := arcs[0].Tail
		for i := range out {
			out[i] = VoiceSlot{Source: SourceJoined, JoinedPort: src, JoinedVoice: i}
		}
	case len(arcs) == 1 && arcs[0].Tail.Polyphony == 1 && poly > 1:
		// Mono source feeding a polyphonic destination: replicate the
		// single source buffer into every destination voice via join,
		// rather than allocating poly independent owned buffers.
		src := arcs[0].Tail
		for i := range out {
			out[i] = VoiceSlot{Source: SourceJoined, JoinedPort: src, JoinedVoice: 0}
		}
	default:
		for i := range out {
			out[i] = VoiceSlot{Buffer: factory.Get(bufferKind(p.Type), p.BufferTypeURID, p.ValueTypeURID), Source: SourceOwned}
		}
	}
	return out
}

// ResolveJoins replaces SourceJoined slots with the concrete buffer of the
// port/voice they reference, called once the joined port itself has
// buffers (topological order doesn't matter since this only reads).
func ResolveJoins(voices []VoiceSlot) {
	for i := range voices {
		if voices[i].Source != SourceJoined || voices[i].JoinedPort == nil {
			continue
		}
		src := voices[i].JoinedPort.Voices()
		if voices[i].JoinedVoice < len(src) {
			voices[i].Buffer = src[voices[i].JoinedVoice].Buffer
		}
	}
}

func bufferKind(t PortType) buffer.Kind {
	switch t {
	case PortAudio:
		return buffer.KindAudio
	case PortCV:
		return buffer.KindCV
	case PortControl:
		return buffer.KindControl
	case PortAtom:
		return buffer.KindSequence
	default:
		return buffer.KindAudio
	}
}
