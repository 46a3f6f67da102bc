// Package internalblocks implements the handful of built-in DSP blocks the
// engine hosts directly rather than via LV2: Controller (MIDI CC scaling),
// Note (MIDI note-to-pitch conversion), Trigger (single-note gate/trigger),
// Time (transport notifications) and BlockDelay (the one-cycle feedback
// break). Each satisfies graph.Body; NewBody constructs the right one for
// a built-in plugin URI.
package internalblocks

import (
	"fmt"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/types"
)

// NewBody returns the Body implementing uri, or an error if uri does not
// name a built-in block.
func NewBody(uri types.URI) (graph.Body, error) {
	switch uri {
	case types.URIInternalController:
		return &Controller{}, nil
	case types.URIInternalNote:
		return &Note{}, nil
	case types.URIInternalTrigger:
		return &Trigger{}, nil
	case types.URIInternalTime:
		return &Time{}, nil
	case types.URIInternalBlockDelay:
		return &BlockDelay{}, nil
	default:
		return nil, fmt.Errorf("internalblocks: no built-in block for %s", uri)
	}
}

// Ports returns the port shells a built-in block of this kind is created
// with, ready to be passed to graph.NewBlock. Port buffers are filled in
// once the block is added to a graph and its voices are prepared.
func Ports(uri types.URI) ([]*graph.Port, error) {
	switch uri {
	case types.URIInternalController:
		return controllerPorts(), nil
	case types.URIInternalNote:
		return notePorts(), nil
	case types.URIInternalTrigger:
		return triggerPorts(), nil
	case types.URIInternalTime:
		return timePorts(), nil
	case types.URIInternalBlockDelay:
		return blockDelayPorts(), nil
	default:
		return nil, fmt.Errorf("internalblocks: no built-in block for %s", uri)
	}
}

func port(symbol string, typ graph.PortType, dir graph.Direction) *graph.Port {
	return &graph.Port{Symbol: symbol, Type: typ, Direction: dir, Polyphony: 1}
}

// midiEventAt decodes the raw MIDI bytes of a SEQUENCE event, returning ok
// = false if the body is too short to be a channel message.
func midiEventAt(ev buffer.SequenceEvent) (status, d1, d2 byte, ok bool) {
	if len(ev.Body) < 2 {
		return 0, 0, 0, false
	}
	status = ev.Body[0]
	d1 = ev.Body[1]
	if len(ev.Body) >= 3 {
		d2 = ev.Body[2]
	}
	return status, d1, d2, true
}

const (
	midiNoteOn     = 0x90
	midiNoteOff    = 0x80
	midiController = 0xB0
	ccAllNotesOff  = 123
	ccAllSoundOff  = 120
	ccSustain      = 64
)

// portBuf returns the buffer of p's first voice, or nil.
func portBuf(p *graph.Port) *buffer.Buffer {
	voices := p.Voices()
	if len(voices) == 0 {
		return nil
	}
	return voices[0].Buffer
}
