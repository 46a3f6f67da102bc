package graph

import "github.com/ingen-audio/ingen/internal/ingenerr"

// Arc is a typed directed edge from an output port to an input port. It
// carries no buffer of its own: data either flows by the head port joining
// the tail's buffer (zero-copy) or by the head mixing several tails into a
// locally-owned buffer (see Port.PreRun).
type Arc struct {
	Tail *Port
	Head *Port
}

// Validate checks the typing and parent-position invariants an Arc must
// satisfy before it may be installed: tail/head types match, and both
// ports belong to the same Graph or to a (child, graph) / (graph, child)
// pair for graph boundary ports.
func Validate(tail, head *Port) error {
	if tail.Direction != DirOutput {
		return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryBadObject).
			Context("reason", "tail is not an output port").Build()
	}
	if head.Direction != DirInput {
		return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryBadObject).
			Context("reason", "head is not an input port").Build()
	}
	if tail.Type != head.Type {
		return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryTypeMismatch).
			Context("tail_type", tail.Type).Context("head_type", head.Type).Build()
	}
	if tail.Type == PortAtom {
		// ATOM ports are monophonic only.
		if tail.Polyphony != 1 || head.Polyphony != 1 {
			return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryPoly).
				Context("reason", "ATOM ports must be monophonic").Build()
		}
	}
	if !sameOrAdjacentGraph(tail, head) {
		return ingenerr.New(nil).Component("graph").Category(ingenerr.CategoryParentDiffers).Build()
	}
	return nil
}

// sameOrAdjacentGraph implements the "both ports belong to the same Graph,
// or to (child-of-graph, graph) / (graph, child-of-graph)" invariant.
func sameOrAdjacentGraph(tail, head *Port) bool {
	tp, hp := tail.block.Parent, head.block.Parent
	if tp == hp {
		return true
	}
	// tail is an input-side boundary port of its own Graph (tail.block IS a
	// Graph whose port connects to a child): tp is the graph containing
	// that Graph, but tail.block itself is the Graph being connected from.
	if tail.block.AsGraph() != nil && tail.block.AsGraph() == hp {
		return true
	}
	if head.block.AsGraph() != nil && head.block.AsGraph() == tp {
		return true
	}
	return false
}
