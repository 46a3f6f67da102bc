package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/engine"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Config{
		NFrames: 64,
		Workers: 1,
		Buffers: buffer.Config{SmallSamples: 64, MediumSamples: 256, LargeSamples: 1024, SequenceCap: 16, MaxPerTier: 8},
	})
	t.Cleanup(func() { _ = e.Stop(0) })
	return e
}

func TestHandleStatusReportsBlockAndArcCounts(t *testing.T) {
	e := testEngine(t)
	blockPath := types.Root.Child("osc")
	b := graph.NewBlock(blockPath, graph.KindInternal, "", nil, nil)
	if err := e.Root().AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	s := New(e, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	if err := s.handleStatus(c); err != nil {
		t.Fatalf("handleStatus: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Blocks != 1 {
		t.Fatalf("block count = %d, want 1", resp.Blocks)
	}
}

func TestHandleGraphReturnsBlocksAndPorts(t *testing.T) {
	e := testEngine(t)
	blockPath := types.Root.Child("osc")
	port := &graph.Port{Symbol: "out", Type: graph.PortAudio, Direction: graph.DirOutput, Polyphony: 1}
	port.SetPath(blockPath.Child("out"))
	b := graph.NewBlock(blockPath, graph.KindInternal, "ingen:/internals/Trigger", nil, []*graph.Port{port})
	if err := e.Root().AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	s := New(e, nil)
	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	if err := s.handleGraph(c); err != nil {
		t.Fatalf("handleGraph: %v", err)
	}
	var snap graphSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Blocks) != 1 || snap.Blocks[0].PluginURI != "ingen:/internals/Trigger" {
		t.Fatalf("unexpected graph snapshot: %+v", snap)
	}
	if len(snap.Blocks[0].Ports) != 1 || snap.Blocks[0].Ports[0].Symbol != "out" {
		t.Fatalf("unexpected port snapshot: %+v", snap.Blocks[0].Ports)
	}
}
