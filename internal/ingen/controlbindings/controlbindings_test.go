package controlbindings

import (
	"testing"

	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

func testPort() *graph.Port {
	p := &graph.Port{Symbol: "cutoff", Type: graph.PortControl, Direction: graph.DirInput, Polyphony: 1}
	graph.NewBlock("/synth", graph.KindInternal, "", nil, []*graph.Port{p})
	return p
}

func TestSetAndProcessWritesScaledValue(t *testing.T) {
	tbl := New()
	p := testPort()
	tbl.Set(Binding{Channel: 0, Controller: 74, Port: p, Min: 0, Max: 1000})

	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 0, Controller: 74, Value: 127})
	if p.Value < 999 {
		t.Fatalf("expected near-max value, got %v", p.Value)
	}

	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 0, Controller: 74, Value: 0})
	if p.Value != 0 {
		t.Fatalf("expected 0 at CC value 0, got %v", p.Value)
	}
}

func TestUnboundControllerIsIgnored(t *testing.T) {
	tbl := New()
	p := testPort()
	tbl.Set(Binding{Channel: 0, Controller: 1, Port: p, Min: 0, Max: 1})
	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 0, Controller: 99, Value: 64})
	if p.Monitoring {
		t.Fatal("expected unbound controller to leave the port untouched")
	}
}

func TestLearnCapturesNextEvent(t *testing.T) {
	tbl := New()
	p := testPort()
	ch := tbl.BeginLearn(p, 0, 10, false)

	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 2, Controller: 7, Value: 64})

	select {
	case b := <-ch:
		if b.Channel != 2 || b.Controller != 7 {
			t.Fatalf("learned wrong binding: %+v", b)
		}
	default:
		t.Fatal("expected a binding to be delivered on the learn channel")
	}

	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 2, Controller: 7, Value: 127})
	if p.Value < 9 {
		t.Fatalf("expected learned binding to be active, value = %v", p.Value)
	}
}

func TestRemoveForPortClearsBindings(t *testing.T) {
	tbl := New()
	p := testPort()
	tbl.Set(Binding{Channel: 0, Controller: 1, Port: p, Min: 0, Max: 1})
	tbl.RemoveForPort(p)
	tbl.Process(rtctx.RunContext{}, ControlEvent{Channel: 0, Controller: 1, Value: 100})
	if p.Monitoring {
		t.Fatal("expected binding removal to stop future writes")
	}
}
