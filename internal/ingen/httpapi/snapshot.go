package httpapi

import (
	"github.com/ingen-audio/ingen/internal/ingen/graph"
)

// portSnapshot describes one Port for the read-only /graph endpoint.
type portSnapshot struct {
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Polyphony int    `json:"polyphony"`
	Value     float64 `json:"value,omitempty"`
}

// blockSnapshot describes one Block for the read-only /graph endpoint.
type blockSnapshot struct {
	Path      string         `json:"path"`
	Kind      string         `json:"kind"`
	PluginURI string         `json:"plugin_uri,omitempty"`
	Enabled   bool           `json:"enabled"`
	Ports     []portSnapshot `json:"ports"`
}

// arcSnapshot describes one Arc for the read-only /graph endpoint.
type arcSnapshot struct {
	Tail string `json:"tail"`
	Head string `json:"head"`
}

// graphSnapshot is the full response body for GET /graph.
type graphSnapshot struct {
	Path        string          `json:"path"`
	Blocks      []blockSnapshot `json:"blocks"`
	Arcs        []arcSnapshot   `json:"arcs"`
	InputPorts  []portSnapshot  `json:"input_ports"`
	OutputPorts []portSnapshot  `json:"output_ports"`
}

func portTypeString(t graph.PortType) string {
	switch t {
	case graph.PortAudio:
		return "audio"
	case graph.PortControl:
		return "control"
	case graph.PortCV:
		return "cv"
	case graph.PortAtom:
		return "atom"
	default:
		return "unknown"
	}
}

func directionString(d graph.Direction) string {
	if d == graph.DirInput {
		return "input"
	}
	return "output"
}

func blockKindString(k graph.BlockKind) string {
	switch k {
	case graph.KindInternal:
		return "internal"
	case graph.KindLV2:
		return "lv2"
	case graph.KindSubGraph:
		return "subgraph"
	default:
		return "unknown"
	}
}

func snapshotPort(p *graph.Port) portSnapshot {
	return portSnapshot{
		Path:      string(p.Path),
		Symbol:    p.Symbol,
		Type:      portTypeString(p.Type),
		Direction: directionString(p.Direction),
		Polyphony: p.Polyphony,
		Value:     p.Value,
	}
}

func snapshotPorts(ports []*graph.Port) []portSnapshot {
	out := make([]portSnapshot, len(ports))
	for i, p := range ports {
		out[i] = snapshotPort(p)
	}
	return out
}

// snapshotGraph walks g's current Blocks/Arcs/boundary ports into a
// JSON-serializable tree. It does not touch the audio thread; it only
// reads the Store-owned Go structures that pre-process and post-process
// already mutate under their own synchronization.
func snapshotGraph(g *graph.Graph) graphSnapshot {
	snap := graphSnapshot{
		Path:        string(g.Path),
		InputPorts:  snapshotPorts(g.InputPorts),
		OutputPorts: snapshotPorts(g.OutputPorts),
	}
	for _, b := range g.Blocks {
		snap.Blocks = append(snap.Blocks, blockSnapshot{
			Path:      string(b.Path),
			Kind:      blockKindString(b.Kind),
			PluginURI: string(b.PluginURI),
			Enabled:   b.Enabled,
			Ports:     snapshotPorts(b.Ports()),
		})
	}
	for _, a := range g.Arcs {
		snap.Arcs = append(snap.Arcs, arcSnapshot{Tail: string(a.Tail.Path), Head: string(a.Head.Path)})
	}
	return snap
}
