// Package chanring implements the fixed-capacity, allocation-free
// single-producer/single-consumer rings the engine uses for its two
// cross-thread handoff points: pre-process -> audio (prepared events) and
// audio -> post-process (executed events paired with whatever they
// replaced). Both sides of each ring are touched by exactly one
// goroutine, per the concurrency model's channel ownership rules.
package chanring

import (
	"encoding/binary"

	"github.com/smallnest/ringbuffer"
)

// Ring is a fixed-capacity SPSC ring of T. Push/Pop never allocate: T
// values live in a preallocated slot array indexed by a producer-owned
// write sequence, and only a 4-byte slot index travels through the
// underlying byte ring. Capacity is fixed at construction, matching the
// audio thread's "no allocation after startup" rule.
type Ring[T any] struct {
	rb       *ringbuffer.RingBuffer
	slots    []T
	cap      uint32
	writeSeq uint32 // touched only by the producer
}

// New returns a Ring holding up to capacity values of T.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		rb:    ringbuffer.New(capacity * 4),
		slots: make([]T, capacity),
		cap:   uint32(capacity),
	}
}

// Push installs v in the ring. Returns false if the ring is full (the
// consumer hasn't drained enough slots); the caller never blocks.
// Producer-only.
func (r *Ring[T]) Push(v T) bool {
	if r.rb.Free() < 4 {
		return false
	}
	idx := r.writeSeq % r.cap
	r.slots[idx] = v

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], idx)
	n, err := r.rb.Write(buf[:])
	if err != nil || n != 4 {
		var zero T
		r.slots[idx] = zero
		return false
	}
	r.writeSeq++
	return true
}

// Pop removes and returns the oldest value, or false if the ring is
// empty. Consumer-only.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	var buf [4]byte
	n, err := r.rb.Read(buf[:])
	if err != nil || n != 4 {
		return zero, false
	}
	idx := binary.LittleEndian.Uint32(buf[:])
	v := r.slots[idx]
	r.slots[idx] = zero // drop the reference promptly so GC can reclaim it
	return v, true
}

// Empty reports whether the ring currently holds no values.
func (r *Ring[T]) Empty() bool {
	return r.rb.IsEmpty()
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return int(r.cap)
}
