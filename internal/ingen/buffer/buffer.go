// Package buffer implements the engine's typed, reference-counted storage
// for port voices: audio/CV sample arrays, single control values, and
// packed ATOM event sequences.
//
// Reference counts are plain ints, not atomics: per the engine's threading
// model only the pre-process thread increments or decrements them (the
// audio thread only reads through BufferRefs installed before a cycle
// begins), so there is nothing to race.
package buffer

import (
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// Kind discriminates a Buffer's storage layout.
type Kind int

const (
	KindAudio Kind = iota
	KindCV
	KindControl
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "Audio"
	case KindCV:
		return "CV"
	case KindControl:
		return "Control"
	case KindSequence:
		return "Sequence"
	default:
		return "Unknown"
	}
}

// Range is the active sample range [Start, End) for a cycle or sub-cycle
// (events landing mid-cycle narrow it), used by every buffer operation.
type Range struct {
	Start int
	End   int
}

// SequenceEvent is one packed record in an ATOM Sequence buffer.
type SequenceEvent struct {
	FrameOffset int
	SubFrame    int
	TypeURID    types.URID
	Body        []byte
}

// Buffer is one typed storage region. AUDIO/CV buffers hold Data sized to
// the cycle's frame count; CONTROL buffers hold a single Value plus the
// sample offset it was last updated at (for control-rate linearization);
// SEQUENCE buffers hold a capacity-bounded slice of SequenceEvents.
type Buffer struct {
	Kind          Kind
	TypeURID      types.URID
	ValueTypeURID types.URID

	Data []float32 // AUDIO / CV

	Value            float64 // CONTROL
	LastUpdateOffset int

	Events          []SequenceEvent // SEQUENCE
	SequenceCap     int
	TruncatedCount  uint64

	refCount int32
	tier     string
	factory  *Factory
}

// RefCount reports the buffer's current reference count; pre-process-thread
// only, exposed for tests and diagnostics.
func (b *Buffer) RefCount() int32 { return b.refCount }

// Acquire increments the reference count. Pre-process thread only.
func (b *Buffer) Acquire() { b.refCount++ }

// Release decrements the reference count, returning the buffer to its
// factory's free-list when it drops to zero. Pre-process thread only.
func (b *Buffer) Release() {
	b.refCount--
	if b.refCount <= 0 && b.factory != nil {
		b.factory.release(b)
	}
}

func clampRange(r Range, n int) Range {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > n {
		r.End = n
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Clear fills the buffer with the type's zero value over the range. For
// CONTROL and SEQUENCE the whole buffer is cleared regardless of range.
func (b *Buffer) Clear(r Range) {
	switch b.Kind {
	case KindAudio, KindCV:
		r = clampRange(r, len(b.Data))
		for i := r.Start; i < r.End; i++ {
			b.Data[i] = 0
		}
	case KindControl:
		b.Value = 0
		b.LastUpdateOffset = 0
	case KindSequence:
		b.Events = b.Events[:0]
		b.TruncatedCount = 0
	}
}

// Copy overwrites this buffer with src over the range. CONTROL<->AUDIO/CV
// is defined by broadcast (control -> audio) or sampling the range's last
// sample (audio -> control), per the engine's mixed-type arc contract.
func (b *Buffer) Copy(r Range, src *Buffer) {
	switch {
	case b.Kind == KindAudio || b.Kind == KindCV:
		switch src.Kind {
		case KindAudio, KindCV:
			rr := clampRange(r, min(len(b.Data), len(src.Data)))
			copy(b.Data[rr.Start:rr.End], src.Data[rr.Start:rr.End])
		case KindControl:
			rr := clampRange(r, len(b.Data))
			v := float32(src.Value)
			for i := rr.Start; i < rr.End; i++ {
				b.Data[i] = v
			}
		}
	case b.Kind == KindControl:
		switch src.Kind {
		case KindControl:
			b.Value = src.Value
			b.LastUpdateOffset = src.LastUpdateOffset
		case KindAudio, KindCV:
			rr := clampRange(r, len(src.Data))
			if rr.End > rr.Start {
				b.Value = float64(src.Data[rr.End-1])
				b.LastUpdateOffset = rr.End - 1
			}
		}
	case b.Kind == KindSequence && src.Kind == KindSequence:
		b.copySequence(src)
	}
}

// copySequence truncates at capacity rather than partially writing a
// record, flagging TruncatedCount for post-process notification.
func (b *Buffer) copySequence(src *Buffer) {
	b.Events = b.Events[:0]
	for _, ev := range src.Events {
		if len(b.Events) >= b.SequenceCap {
			b.TruncatedCount += uint64(len(src.Events) - len(b.Events))
			break
		}
		b.Events = append(b.Events, ev)
	}
}

// Accumulate sums src into this buffer over the range. AUDIO/CV only.
func (b *Buffer) Accumulate(r Range, src *Buffer) {
	if b.Kind != KindAudio && b.Kind != KindCV {
		return
	}
	if src.Kind != KindAudio && src.Kind != KindCV {
		return
	}
	rr := clampRange(r, min(len(b.Data), len(src.Data)))
	for i := rr.Start; i < rr.End; i++ {
		b.Data[i] += src.Data[i]
	}
}

// Scale multiplies the buffer in place over the range. AUDIO/CV only.
func (b *Buffer) Scale(r Range, factor float32) {
	if b.Kind != KindAudio && b.Kind != KindCV {
		return
	}
	rr := clampRange(r, len(b.Data))
	for i := rr.Start; i < rr.End; i++ {
		b.Data[i] *= factor
	}
}

// AppendEvent appends a timestamped event to a SEQUENCE buffer. It rejects
// (returns false, no partial write) if capacity would overflow, bumping
// TruncatedCount so post-process can surface a client notification.
func (b *Buffer) AppendEvent(frame int, typeURID types.URID, body []byte) bool {
	if b.Kind != KindSequence {
		return false
	}
	if len(b.Events) >= b.SequenceCap {
		b.TruncatedCount++
		return false
	}
	b.Events = append(b.Events, SequenceEvent{FrameOffset: frame, TypeURID: typeURID, Body: body})
	return true
}

// ValueAt returns the value held at a sample offset: the CONTROL value
// (offset ignored), or data[offset] for AUDIO/CV.
func (b *Buffer) ValueAt(offset int) float64 {
	switch b.Kind {
	case KindControl:
		return b.Value
	case KindAudio, KindCV:
		if offset < 0 || offset >= len(b.Data) {
			return 0
		}
		return float64(b.Data[offset])
	default:
		return 0
	}
}

// SetControlValue writes a control value at a time offset, used by
// Port.SetControlValue for CONTROL/CV ports.
func (b *Buffer) SetControlValue(offset int, value float64) {
	b.Value = value
	b.LastUpdateOffset = offset
	if b.Kind == KindCV && offset >= 0 && offset < len(b.Data) {
		for i := offset; i < len(b.Data); i++ {
			b.Data[i] = float32(value)
		}
	}
}
