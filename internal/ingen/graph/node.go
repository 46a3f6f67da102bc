// Package graph implements the engine's structural data model: Nodes
// (Blocks, Ports, Graphs), typed Arcs between ports, and the polyphonic
// voice/buffer wiring a cycle executes against.
//
// Ownership follows the arena-per-graph shape from the design notes: a
// Graph owns its child Blocks and Ports outright; a child's "parent"
// pointer is just a reference back to its owning Graph, never creating a
// true ownership cycle since a Block has exactly one parent for its entire
// life.
package graph

import (
	"sync"

	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// Node is the common header embedded by every addressable graph object
// (Block, Port, Graph): a Path, a property multimap, and a parent pointer.
type Node struct {
	Path   types.Path
	Parent *Graph

	mu         sync.RWMutex
	properties []types.Property
}

// SetPath updates the node's path, e.g. for a Move event.
func (n *Node) SetPath(p types.Path) { n.Path = p }

// Properties returns a defensive copy of the node's property multimap.
func (n *Node) Properties() []types.Property {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]types.Property, len(n.properties))
	copy(out, n.properties)
	return out
}

// SetProperty replaces every existing value for key (in the given context)
// with a single new value, the way put() semantics require.
func (n *Node) SetProperty(key types.URI, value types.Atom, ctx types.PropertyContext) {
	n.mu.Lock()
	defer n.mu.Unlock()
	filtered := n.properties[:0]
	for _, p := range n.properties {
		if !(p.Key == key && p.Context == ctx) {
			filtered = append(filtered, p)
		}
	}
	n.properties = append(filtered, types.Property{Key: key, Value: value, Context: ctx})
}

// AddProperty appends a value for key without removing existing ones, the
// way delta's "added" set behaves.
func (n *Node) AddProperty(key types.URI, value types.Atom, ctx types.PropertyContext) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.properties = append(n.properties, types.Property{Key: key, Value: value, Context: ctx})
}

// RemoveProperty removes every (key, value) pair matching key and value's
// string form, or every property under key if hasValue is false.
func (n *Node) RemoveProperty(key types.URI, value types.Atom, hasValue bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	filtered := n.properties[:0]
	for _, p := range n.properties {
		if p.Key == key && (!hasValue || p.Value.String() == value.String()) {
			continue
		}
		filtered = append(filtered, p)
	}
	n.properties = filtered
}

// Get returns the first property value for key in context ctx.
func (n *Node) Get(key types.URI, ctx types.PropertyContext) (types.Atom, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, p := range n.properties {
		if p.Key == key && p.Context == ctx {
			return p.Value, true
		}
	}
	return types.Atom{}, false
}
