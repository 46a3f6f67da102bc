// Package store holds the path->object index: the single authoritative
// map from a Path to the Node (Block, Port, or Graph) that lives there.
// It is touched only by the pre-process thread, guarded by one mutex, per
// the concurrency model's "Shared resources" rule — the audio thread never
// looks a node up by path.
package store

import (
	"sync"

	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/types"
	"github.com/ingen-audio/ingen/internal/ingenerr"
)

// Store is the engine's path->object index.
type Store struct {
	mu    sync.Mutex
	nodes map[types.Path]any // *graph.Block, *graph.Port, or *graph.Graph
	root  *graph.Graph
}

// New returns a Store rooted at the given root graph, already indexed.
func New(root *graph.Graph) *Store {
	s := &Store{nodes: make(map[types.Path]any), root: root}
	s.indexGraph(root)
	return s
}

func (s *Store) indexGraph(g *graph.Graph) {
	s.nodes[g.Path] = g
	for _, b := range g.Blocks {
		s.nodes[b.Path] = b
		if sg := b.AsGraph(); sg != nil {
			s.indexGraph(sg)
		}
	}
	for _, p := range g.InputPorts {
		s.nodes[p.Path] = p
	}
	for _, p := range g.OutputPorts {
		s.nodes[p.Path] = p
	}
}

// Root returns the engine's root graph.
func (s *Store) Root() *graph.Graph { return s.root }

// Lock/Unlock expose the Store's mutex directly. Every other Store method
// takes this same non-reentrant mutex itself, so calling one of them
// between Lock and Unlock deadlocks.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// Get returns the node at path, or nil if absent. It takes the Store
// mutex itself.
func (s *Store) Get(path types.Path) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[path]
}

// Put installs node at path, failing with EXISTS if occupied and replace
// is false.
func (s *Store) Put(path types.Path, node any, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[path]; exists && !replace {
		return ingenerr.New(nil).Component("store").Category(ingenerr.CategoryConflict).
			Context("path", string(path)).Build()
	}
	s.nodes[path] = node
	return nil
}

// Remove deletes path and every node whose path is a descendant of it
// (used when deleting a Graph or Block that owns children), returning the
// removed entries (path -> node) for post-process disposal.
func (s *Store) Remove(path types.Path) map[types.Path]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[types.Path]any)
	for p, n := range s.nodes {
		if p == path || p.IsChildOf(path) {
			removed[p] = n
			delete(s.nodes, p)
		}
	}
	return removed
}

// Move re-parents every entry under oldPath to the corresponding path
// under newPath.
func (s *Store) Move(oldPath, newPath types.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[oldPath]; !exists {
		return ingenerr.New(nil).Component("store").Category(ingenerr.CategoryNotFound).
			Context("path", string(oldPath)).Build()
	}
	if _, exists := s.nodes[newPath]; exists {
		return ingenerr.New(nil).Component("store").Category(ingenerr.CategoryConflict).
			Context("path", string(newPath)).Build()
	}
	moved := make(map[types.Path]any)
	for p, n := range s.nodes {
		if p == oldPath {
			moved[newPath] = n
		} else if p.IsChildOf(oldPath) {
			rest := p[len(oldPath):]
			moved[newPath+types.Path(rest)] = n
		}
	}
	for p := range s.nodes {
		if p == oldPath || p.IsChildOf(oldPath) {
			delete(s.nodes, p)
		}
	}
	for p, n := range moved {
		s.nodes[p] = n
	}
	return nil
}

// FindBlock is a typed convenience wrapper over Get for callers that know
// the path names a Block.
func (s *Store) FindBlock(path types.Path) *graph.Block {
	n := s.Get(path)
	b, _ := n.(*graph.Block)
	return b
}

// FindPort is a typed convenience wrapper over Get for callers that know
// the path names a Port.
func (s *Store) FindPort(path types.Path) *graph.Port {
	n := s.Get(path)
	p, _ := n.(*graph.Port)
	return p
}

// FindGraph is a typed convenience wrapper over Get for callers that know
// the path names a Graph.
func (s *Store) FindGraph(path types.Path) *graph.Graph {
	n := s.Get(path)
	g, _ := n.(*graph.Graph)
	return g
}
