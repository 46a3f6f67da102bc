// Package driver defines the contract a real-time audio backend
// implements to host the engine: expose the system's physical ports at
// the root graph's boundary and pump Engine.RunCycle once per hardware
// callback. internal/ingen/driver/portaudio is the concrete
// implementation; the interface lives here so the engine and httpapi
// packages never need to import a specific backend.
package driver

import (
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// EnginePort describes one system-visible port to expose at the root
// graph's boundary.
type EnginePort struct {
	Name      string
	Type      graph.PortType
	Direction graph.Direction
}

// Driver is the host-facing contract: sample_rate/block_size report the
// fixed stream geometry, add_port/remove_port/rename_port manage the
// system I/O port lifecycle, and Start/Stop control the underlying
// hardware stream that calls back into the engine.
type Driver interface {
	SampleRate() float64
	BlockSize() int

	// DynamicPorts reports whether AddPort/RemovePort may be called while
	// the stream is running. A driver that reports false still allows
	// them while stopped; callers otherwise get an UNSUPPORTED-style error.
	DynamicPorts() bool

	AddPort(p EnginePort) (types.Path, error)
	RemovePort(path types.Path) error
	RenamePort(oldPath, newPath types.Path) error

	Start() error
	Stop() error
}
