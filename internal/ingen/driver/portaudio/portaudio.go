// Package portaudio implements driver.Driver over PortAudio
// (github.com/gordonklaus/portaudio): it opens one stream sized to the
// engine's configured block size (duplex, or output-only when no input
// ports are configured), copies each hardware channel into
// and out of the root graph's boundary ports every callback, and pumps
// Engine.RunCycle in between.
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/driver"
	"github.com/ingen-audio/ingen/internal/ingen/engine"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/logging"
)

// Config fixes the stream geometry at construction; PortAudio (like most
// real backends) does not let a running stream change its channel count
// or block size, so the Driver does not support AddPort/RemovePort while
// running — see DynamicPorts.
type Config struct {
	SampleRate float64
	BlockSize  int
}

// Driver is the portaudio.Driver implementation.
type Driver struct {
	cfg    Config
	engine *engine.Engine
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	inputs  []*graph.Port
	outputs []*graph.Port

	stream     *portaudio.Stream
	cycleFrame int64
}

// New constructs a Driver bound to e, not yet started.
func New(cfg Config, e *engine.Engine) *Driver {
	return &Driver{cfg: cfg, engine: e, logger: logging.ForService("portaudio-driver")}
}

func (d *Driver) SampleRate() float64 { return d.cfg.SampleRate }
func (d *Driver) BlockSize() int      { return d.cfg.BlockSize }

// DynamicPorts is false: this backend only accepts AddPort/RemovePort
// calls while the stream is stopped, since PortAudio fixes its channel
// count for the lifetime of an open stream.
func (d *Driver) DynamicPorts() bool { return false }

// AddPort appends a new system-visible port to the root graph's boundary
// and assigns it the next free hardware channel on its side (input or
// output). The returned Path is also the port's Store handle.
func (d *Driver) AddPort(p driver.EnginePort) (types.Path, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return "", fmt.Errorf("portaudio: UNSUPPORTED: cannot add a port while the stream is running")
	}

	root := d.engine.Root()
	path := root.Path.Child(p.Name)
	gp := &graph.Port{Symbol: p.Name, Type: p.Type, Direction: p.Direction, Polyphony: 1}
	gp.SetPath(path)

	buf := d.engine.Buffers().Get(buffer.KindAudio, 0, 0)
	gp.PrepareVoices([]graph.VoiceSlot{{Buffer: buf, Source: graph.SourceOwned}})
	gp.ConnectBuffers()

	if err := d.engine.Store().Put(path, gp, false); err != nil {
		buf.Release()
		return "", err
	}

	switch p.Direction {
	case graph.DirInput:
		root.InputPorts = append(root.InputPorts, gp)
		d.inputs = append(d.inputs, gp)
	case graph.DirOutput:
		root.OutputPorts = append(root.OutputPorts, gp)
		d.outputs = append(d.outputs, gp)
	}
	return path, nil
}

// RemovePort removes the port at path from the root graph's boundary and
// the Store.
func (d *Driver) RemovePort(path types.Path) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("portaudio: UNSUPPORTED: cannot remove a port while the stream is running")
	}

	gp := d.engine.Store().FindPort(path)
	if gp == nil {
		return fmt.Errorf("portaudio: no port at %s", path)
	}
	root := d.engine.Root()
	switch gp.Direction {
	case graph.DirInput:
		root.InputPorts = removePort(root.InputPorts, gp)
		d.inputs = removePort(d.inputs, gp)
	case graph.DirOutput:
		root.OutputPorts = removePort(root.OutputPorts, gp)
		d.outputs = removePort(d.outputs, gp)
	}
	d.engine.Store().Remove(path)
	return nil
}

// RenamePort moves the port (and its Store entry) to newPath.
func (d *Driver) RenamePort(oldPath, newPath types.Path) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	gp := d.engine.Store().FindPort(oldPath)
	if gp == nil {
		return fmt.Errorf("portaudio: no port at %s", oldPath)
	}
	if err := d.engine.Store().Move(oldPath, newPath); err != nil {
		return err
	}
	gp.SetPath(newPath)
	return nil
}

func removePort(ports []*graph.Port, target *graph.Port) []*graph.Port {
	kept := ports[:0]
	for _, p := range ports {
		if p != target {
			kept = append(kept, p)
		}
	}
	return kept
}

// Start opens and starts the PortAudio stream, sized to len(d.inputs)
// input channels and len(d.outputs) output channels at the configured
// sample rate and block size.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	// PortAudio's binding picks the callback shape by reflection: a stream
	// opened with zero input channels must be handed an out-only callback,
	// matching the out-only form the rest of the ecosystem uses for
	// generator-style instruments.
	var cb any = d.callback
	if len(d.inputs) == 0 {
		cb = d.outputOnlyCallback
	}
	stream, err := portaudio.OpenDefaultStream(
		len(d.inputs),
		len(d.outputs),
		d.cfg.SampleRate,
		d.cfg.BlockSize,
		cb,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	d.running = true
	d.logger.Info("stream started", "sample_rate", d.cfg.SampleRate, "block_size", d.cfg.BlockSize,
		"inputs", len(d.inputs), "outputs", len(d.outputs))
	return nil
}

// Stop stops and closes the PortAudio stream.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	var err error
	if d.stream != nil {
		if e := d.stream.Stop(); e != nil {
			err = e
		}
		if e := d.stream.Close(); e != nil && err == nil {
			err = e
		}
		d.stream = nil
	}
	portaudio.Terminate()
	return err
}

// callback is PortAudio's per-cycle entry point for a duplex stream: it
// never allocates past the input/output copy loops below, which run at a
// fixed size determined by the channel counts the stream was opened with.
func (d *Driver) callback(in, out [][]float32) {
	for ch, p := range d.inputs {
		if ch >= len(in) {
			break
		}
		if voices := p.Voices(); len(voices) > 0 && voices[0].Buffer != nil {
			copy(voices[0].Buffer.Data, in[ch])
		}
	}
	d.runCycle(out)
}

// outputOnlyCallback is the entry point for a stream opened with zero
// input channels (the common case: a generator-only instrument graph).
func (d *Driver) outputOnlyCallback(out [][]float32) {
	d.runCycle(out)
}

// runCycle advances the engine one cycle and copies the root graph's
// output boundary ports into out.
func (d *Driver) runCycle(out [][]float32) {
	nframes := d.cfg.BlockSize
	if len(out) > 0 {
		nframes = len(out[0])
	}

	start := atomic.LoadInt64(&d.cycleFrame)
	ctx := rtctx.RunContext{
		CycleStartFrame: start,
		CycleEndFrame:   start + int64(nframes),
		SubStart:        0,
		SubEnd:          nframes,
		StealPool:       d.engine.StealPool(),
	}
	d.engine.RunCycle(ctx)
	atomic.AddInt64(&d.cycleFrame, int64(nframes))

	for ch, p := range d.outputs {
		if ch >= len(out) {
			break
		}
		voices := p.Voices()
		if len(voices) == 0 || voices[0].Buffer == nil {
			for i := range out[ch] {
				out[ch][i] = 0
			}
			continue
		}
		copy(out[ch], voices[0].Buffer.Data)
	}
}

var _ driver.Driver = (*Driver)(nil)
