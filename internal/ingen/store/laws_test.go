package store_test

import (
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/event"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/store"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingen/undo"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

func newPreCtx(root *graph.Graph) *event.PreProcessContext {
	f := buffer.NewFactory(buffer.Config{SmallSamples: 64, MediumSamples: 256, LargeSamples: 1024, SequenceCap: 16, MaxPerTier: 8}, 64, nil)
	return &event.PreProcessContext{
		Store:   store.New(root),
		Buffers: f,
		Undo:    undo.NewStack[event.Event](),
		Redo:    undo.NewStack[event.Event](),
	}
}

func newSubject(ctx *event.PreProcessContext, root *graph.Graph) types.Path {
	path := types.Root.Child("subject")
	b := graph.NewBlock(path, graph.KindInternal, "", nil, nil)
	if err := root.AddBlock(b); err != nil {
		panic(err)
	}
	if err := ctx.Store.Put(path, b, false); err != nil {
		panic(err)
	}
	return path
}

func sortedProps(props []types.Property) []types.Property {
	out := append([]types.Property(nil), props...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value.String() < out[j].Value.String()
	})
	return out
}

func propsEqual(a, b []types.Property) bool {
	a, b = sortedProps(a), sortedProps(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Value.String() != b[i].Value.String() {
			return false
		}
	}
	return true
}

func genProperties(t *rapid.T) []types.Property {
	n := rapid.IntRange(0, 4).Draw(t, "n")
	keys := []types.URI{"ingen:freq", "ingen:gain", "ingen:label", "ingen:poly"}
	props := make([]types.Property, 0, n)
	for i := 0; i < n; i++ {
		key := keys[rapid.IntRange(0, len(keys)-1).Draw(t, "key")]
		switch rapid.IntRange(0, 1).Draw(t, "kind") {
		case 0:
			props = append(props, types.Property{Key: key, Value: types.FloatAtom(rapid.Float64Range(-1000, 1000).Draw(t, "f"))})
		default:
			props = append(props, types.Property{Key: key, Value: types.StringAtom(rapid.StringN(0, 8, -1).Draw(t, "s"))})
		}
	}
	return props
}

// TestIdempotentPut checks spec.md's "idempotent put" law: applying the
// same Put twice in a row yields the same final state as applying it once.
func TestIdempotentPut(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := graph.NewGraph(types.Root)
		ctx := newPreCtx(root)
		subject := newSubject(ctx, root)
		props := genProperties(t)

		once := event.NewPut(event.Header{}, subject, props)
		if status := once.PreProcess(ctx); status != ingenerr.StatusSuccess {
			t.Fatalf("first put failed: %v", status)
		}
		n := ctx.Store.Get(subject).(*graph.Block)
		afterOnce := n.Properties()

		twice := event.NewPut(event.Header{}, subject, props)
		if status := twice.PreProcess(ctx); status != ingenerr.StatusSuccess {
			t.Fatalf("second put failed: %v", status)
		}
		afterTwice := n.Properties()

		if !propsEqual(afterOnce, afterTwice) {
			t.Fatalf("put is not idempotent: once=%v twice=%v", afterOnce, afterTwice)
		}
	})
}

// TestInverseUndoRestoresStoreState checks spec.md's "inverse undo" law
// over random Put sequences: executing a Put then its Undo-produced
// inverse returns the subject's properties to the prior state.
func TestInverseUndoRestoresStoreState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := graph.NewGraph(types.Root)
		ctx := newPreCtx(root)
		subject := newSubject(ctx, root)
		n := ctx.Store.Get(subject).(*graph.Block)

		steps := rapid.IntRange(1, 6).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := n.Properties()

			props := genProperties(t)
			put := event.NewPut(event.Header{}, subject, props)
			if status := put.PreProcess(ctx); status != ingenerr.StatusSuccess {
				t.Fatalf("put failed: %v", status)
			}

			captured := &captureTarget{}
			put.Undo(captured, event.ModeUndo)
			if len(captured.submitted) != 1 {
				t.Fatalf("Undo should submit exactly one inverse event, got %d", len(captured.submitted))
			}
			inverse := captured.submitted[0]
			if status := inverse.PreProcess(ctx); status != ingenerr.StatusSuccess {
				t.Fatalf("inverse put failed: %v", status)
			}

			after := n.Properties()
			if !propsEqual(before, after) {
				t.Fatalf("step %d: inverse undo did not restore prior state: before=%v after=%v", i, before, after)
			}
		}
	})
}

type captureTarget struct{ submitted []event.Event }

func (c *captureTarget) Submit(e event.Event) { c.submitted = append(c.submitted, e) }
