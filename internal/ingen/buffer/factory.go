package buffer

import (
	"log/slog"
	"sync"

	"github.com/ingen-audio/ingen/internal/ingenerr"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/logging"
	"github.com/ingen-audio/ingen/internal/observability/metrics"
)

// Config sizes a Factory's tiered pools, in samples for AUDIO/CV tiers and
// in events for the SEQUENCE tier.
type Config struct {
	SmallSamples  int
	MediumSamples int
	LargeSamples  int
	SequenceCap   int
	MaxPerTier    int
}

// Factory is the BufferFactory: the pre-process thread's source of Buffers,
// sized for the current cycle_nframes. It pools AUDIO/CV buffers in three
// tiers of sync.Pool (mirroring a general-purpose byte-buffer pool), the
// way a high-throughput pipeline avoids per-cycle allocation.
type Factory struct {
	cfg Config

	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	nframes int
	metrics *metrics.IngenMetrics
	logger  *slog.Logger
}

// NewFactory constructs a Factory for the given cycle size. m may be nil to
// disable metrics.
func NewFactory(cfg Config, nframes int, m *metrics.IngenMetrics) *Factory {
	logger := logging.ForService("buffer")
	if logger == nil {
		logger = slog.Default()
	}

	f := &Factory{cfg: cfg, nframes: nframes, metrics: m, logger: logger}
	f.small.New = func() any { return &Buffer{Data: make([]float32, 0, cfg.SmallSamples)} }
	f.medium.New = func() any { return &Buffer{Data: make([]float32, 0, cfg.MediumSamples)} }
	f.large.New = func() any { return &Buffer{Data: make([]float32, 0, cfg.LargeSamples)} }
	return f
}

func (f *Factory) tierFor(samples int) (*sync.Pool, string) {
	switch {
	case samples <= f.cfg.SmallSamples:
		return &f.small, "small"
	case samples <= f.cfg.MediumSamples:
		return &f.medium, "medium"
	case samples <= f.cfg.LargeSamples:
		return &f.large, "large"
	default:
		return nil, "custom"
	}
}

// Get returns a Buffer of kind with a fresh refcount of 1, sized for the
// factory's cycle_nframes when kind is AUDIO/CV. Storage is always
// initialized: zeroed for AUDIO/CV, default value for CONTROL, empty
// header for SEQUENCE.
func (f *Factory) Get(kind Kind, typeURID, valueTypeURID types.URID) *Buffer {
	switch kind {
	case KindAudio, KindCV:
		return f.getSamples(kind, typeURID, valueTypeURID, f.nframes)
	case KindControl:
		return &Buffer{Kind: KindControl, TypeURID: typeURID, ValueTypeURID: valueTypeURID, refCount: 1, factory: f}
	case KindSequence:
		return &Buffer{
			Kind: KindSequence, TypeURID: typeURID, ValueTypeURID: valueTypeURID,
			Events: make([]SequenceEvent, 0, 8), SequenceCap: f.cfg.SequenceCap,
			refCount: 1, factory: f,
		}
	default:
		return nil
	}
}

func (f *Factory) getSamples(kind Kind, typeURID, valueTypeURID types.URID, samples int) *Buffer {
	pool, tier := f.tierFor(samples)
	var b *Buffer
	if pool == nil {
		b = &Buffer{Data: make([]float32, samples)}
		f.logger.Debug("allocated custom-sized buffer", "samples", samples)
	} else {
		b = pool.Get().(*Buffer)
		if cap(b.Data) < samples {
			b.Data = make([]float32, samples)
		} else {
			b.Data = b.Data[:samples]
		}
		for i := range b.Data {
			b.Data[i] = 0
		}
	}
	b.Kind = kind
	b.TypeURID = typeURID
	b.ValueTypeURID = valueTypeURID
	b.refCount = 1
	b.tier = tier
	b.factory = f
	if f.metrics != nil {
		f.metrics.RecordBufferAllocated(tier)
		f.metrics.RecordBufferInUse(tier, 1)
		if tier == "custom" {
			f.metrics.RecordPoolMiss(tier)
		}
	}
	return b
}

// release returns buf to its tier's pool; called by Buffer.Release once the
// refcount drops to zero. Only AUDIO/CV buffers are pooled; CONTROL and
// SEQUENCE buffers are cheap enough to let the GC reclaim.
func (f *Factory) release(buf *Buffer) {
	if f.metrics != nil && buf.tier != "" {
		f.metrics.RecordBufferInUse(buf.tier, -1)
	}
	if buf.Kind != KindAudio && buf.Kind != KindCV {
		return
	}
	switch buf.tier {
	case "small":
		f.small.Put(buf)
	case "medium":
		f.medium.Put(buf)
	case "large":
		f.large.Put(buf)
	}
}

// ResizeAll reallocates every live buffer's storage to a new frame count,
// during a driver buffer-size change. The caller (Engine) is responsible
// for the blocking rendezvous that guarantees no process() call overlaps
// this; the factory only updates the size new Gets will use and resizes
// the buffers it is handed.
func (f *Factory) ResizeAll(newFrames int, live []*Buffer) {
	f.nframes = newFrames
	for _, b := range live {
		if b.Kind != KindAudio && b.Kind != KindCV {
			continue
		}
		if cap(b.Data) < newFrames {
			nd := make([]float32, newFrames)
			copy(nd, b.Data)
			b.Data = nd
		} else {
			b.Data = b.Data[:newFrames]
		}
	}
}

// NewCustomError wraps an allocation failure into the engine's Status
// vocabulary; Get itself never fails (sync.Pool.New always succeeds), but
// callers building oversized Sequence/Blob payloads from user input may
// want to reject before calling Get.
func NewCustomError(reason string) error {
	return ingenerr.New(nil).
		Component("buffer").
		Category(ingenerr.CategoryAllocation).
		Context("reason", reason).
		Build()
}
