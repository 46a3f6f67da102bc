// Package plugin defines the LV2 host contract: the narrow interface the
// engine uses to load, instantiate, and run hosted plugins. The core
// treats instances opaquely and only calls into them from pre-process
// (lifecycle) and the audio thread (Run), per LV2's real-time safety
// rules — Instantiate/Activate/Deactivate/Cleanup may allocate and block;
// Run and ConnectPort must not.
package plugin

import "github.com/ingen-audio/ingen/internal/ingen/types"

// PortDescriptor describes one port of a plugin as declared by its
// descriptor, before any Block/Port wrapping happens.
type PortDescriptor struct {
	Index     int
	Symbol    string
	Name      string
	IsInput   bool
	IsAudio   bool
	IsControl bool
	IsCV      bool
	IsAtom    bool
	Default, Min, Max float64
}

// Descriptor is what Host.Load returns: static metadata about a plugin,
// sufficient to build the Block/Port shells before instantiation.
type Descriptor struct {
	URI   types.URI
	Name  string
	Ports []PortDescriptor
}

// Instance is a running plugin instantiation. ConnectPort and Run execute
// on the audio thread and must be allocation-free; Activate/Deactivate/
// Cleanup run on the pre-process thread.
type Instance interface {
	// ConnectPort binds the buffer at portIndex to ptr for subsequent Run
	// calls, until rebound. Audio thread, no allocation.
	ConnectPort(portIndex int, ptr []float32)
	// Run processes nframes samples through the currently connected ports.
	// Audio thread, no allocation, no blocking.
	Run(nframes int)
	// Activate prepares the instance to start producing audio (may
	// allocate). Pre-process thread, called before first Run.
	Activate() error
	// Deactivate releases any per-run state Activate prepared.
	Deactivate()
	// Cleanup releases the instance entirely; it may not be reused.
	Cleanup()
}

// Host is the plugin-loading sub-system the engine depends on; a concrete
// implementation wraps an LV2 world (or, for testing, a fake).
type Host interface {
	// Load resolves uri to a Descriptor, fetching/parsing plugin metadata.
	// Pre-process thread.
	Load(uri types.URI) (Descriptor, error)
	// Instantiate creates a new Instance of the plugin named by descriptor,
	// configured for sampleRate. Pre-process thread.
	Instantiate(descriptor Descriptor, sampleRate float64) (Instance, error)
}

// NullHost is a Host that finds no plugins; it exists so the engine can
// start up and run internal-only graphs without a real LV2 world wired
// in (e.g. under test, or in a build without liblilv available).
type NullHost struct{}

func (NullHost) Load(uri types.URI) (Descriptor, error) {
	return Descriptor{}, errNotFound(uri)
}

func (NullHost) Instantiate(d Descriptor, sampleRate float64) (Instance, error) {
	return nil, errNotFound(d.URI)
}

func errNotFound(uri types.URI) error {
	return &notFoundError{uri: uri}
}

type notFoundError struct{ uri types.URI }

func (e *notFoundError) Error() string {
	return "plugin not found: " + string(e.uri)
}
