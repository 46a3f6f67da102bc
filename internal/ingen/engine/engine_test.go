package engine

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/event"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

func testConfig() Config {
	return Config{
		NFrames: 64,
		Workers: 1,
		Buffers: buffer.Config{SmallSamples: 64, MediumSamples: 256, LargeSamples: 1024, SequenceCap: 16, MaxPerTier: 8},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func driveOneCycle(e *Engine) {
	e.RunCycle(rtctx.RunContext{SubStart: 0, SubEnd: 64})
}

func TestSubmitPutRunsThroughPipelineAndUndoes(t *testing.T) {
	e := New(testConfig())
	e.Start()
	defer e.Stop(time.Second)

	blockPath := types.Root.Child("osc")
	b := graph.NewBlock(blockPath, graph.KindInternal, "", nil, nil)
	if err := e.Root().AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := e.Store().Put(blockPath, b, false); err != nil {
		t.Fatalf("store.Put: %v", err)
	}

	put := event.NewPut(event.Header{}, blockPath, []types.Property{
		{Key: "ingen:freq", Value: types.FloatAtom(440)},
	})
	e.Submit(put)

	// PreProcess happens on the pre-process goroutine; give it a moment,
	// then drive the audio-thread side ourselves the way a Driver would.
	waitFor(t, time.Second, func() bool {
		driveOneCycle(e)
		v, ok := b.Get("ingen:freq", types.ContextDefault)
		return ok && v.Float == 440
	})

	waitFor(t, time.Second, func() bool { return e.undoStack.Len() == 1 })

	if !e.UndoLast() {
		t.Fatal("expected UndoLast to find the Put entry")
	}
	waitFor(t, time.Second, func() bool {
		driveOneCycle(e)
		_, ok := b.Get("ingen:freq", types.ContextDefault)
		return !ok
	})

	waitFor(t, time.Second, func() bool { return e.redoStack.Len() == 1 })

	if !e.RedoLast() {
		t.Fatal("expected RedoLast to find the undone Put's inverse")
	}
	waitFor(t, time.Second, func() bool {
		driveOneCycle(e)
		v, ok := b.Get("ingen:freq", types.ContextDefault)
		return ok && v.Float == 440
	})
}

func TestSubmitUnknownSubjectReportsFailureWithoutTouchingAudioThread(t *testing.T) {
	e := New(testConfig())
	e.Start()
	defer e.Stop(time.Second)

	put := event.NewPut(event.Header{}, types.Root.Child("missing"), nil)
	e.Submit(put)

	waitFor(t, time.Second, func() bool {
		return e.preToAudio.Empty()
	})
	if e.undoStack.Len() != 0 {
		t.Fatal("a failed PreProcess must never be recorded onto the undo stack")
	}
}

func TestClientQueueFullDropsRatherThanBlocks(t *testing.T) {
	cfg := testConfig()
	cfg.ClientQueueSize = 1
	e := New(cfg)
	// Engine not started: nothing drains clientCh, so the second Submit
	// must drop instead of blocking this goroutine forever.
	e.Submit(event.NewPut(event.Header{}, types.Root, nil))
	done := make(chan struct{})
	go func() {
		e.Submit(event.NewPut(event.Header{}, types.Root, nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked instead of dropping when the client queue was full")
	}
}

func TestRegisterAndUnregisterClientTracksConnectedCount(t *testing.T) {
	e := New(testConfig())
	e.Start()
	defer e.Stop(time.Second)

	c := &fakeClient{id: NewClientID()}
	if err := e.RegisterClient(c); err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if e.clientsConnected.Load() != 1 {
		t.Fatalf("clientsConnected = %d, want 1", e.clientsConnected.Load())
	}
	e.UnregisterClient(c.ID())
	if e.clientsConnected.Load() != 0 {
		t.Fatalf("clientsConnected = %d, want 0", e.clientsConnected.Load())
	}
}

func TestStopLeavesNoGoroutinesRunning(t *testing.T) {
	// Stop the engine before the goleak check (defer runs in LIFO order),
	// so pre/post-process loop and worker goroutines have already exited.
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
	)

	e := New(testConfig())
	e.Start()
	e.Submit(event.NewPut(event.Header{}, types.Root, nil))
	if err := e.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type fakeClient struct{ id string }

func (f *fakeClient) ID() string                   { return f.id }
func (f *fakeClient) Deliver(n event.Notification) {}
