package internalblocks

import (
	"math"

	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Note is the MIDI note-to-pitch block, for driving pitched instruments
// from a keyboard. This is the monophonic (last-note-priority) variant:
// a genuinely polyphonic voice allocator belongs to the block's own poly
// preparation, not this body, and isn't implemented here.
type Note struct {
	midiIn, freq, num, vel, gate, trig, bend, pressure *graph.Port

	held      []byte // MIDI note numbers currently down, most recent last
	sustain   bool
	sustained map[byte]bool
}

func notePorts() []*graph.Port {
	return []*graph.Port{
		port("input", graph.PortAtom, graph.DirInput),
		port("frequency", graph.PortAudio, graph.DirOutput),
		port("number", graph.PortAudio, graph.DirOutput),
		port("velocity", graph.PortAudio, graph.DirOutput),
		port("gate", graph.PortAudio, graph.DirOutput),
		port("trigger", graph.PortAudio, graph.DirOutput),
		port("bend", graph.PortAudio, graph.DirOutput),
		port("pressure", graph.PortAudio, graph.DirOutput),
	}
}

func (n *Note) Activate(f *buffer.Factory) error {
	n.sustained = make(map[byte]bool)
	return nil
}
func (n *Note) Deactivate() {}

func (n *Note) Run(ctx rtctx.RunContext, ports []*graph.Port) {
	for _, p := range ports {
		switch p.Symbol {
		case "input":
			n.midiIn = p
		case "frequency":
			n.freq = p
		case "number":
			n.num = p
		case "velocity":
			n.vel = p
		case "gate":
			n.gate = p
		case "trigger":
			n.trig = p
		case "bend":
			n.bend = p
		case "pressure":
			n.pressure = p
		}
	}
	if n.midiIn == nil {
		return
	}
	in := portBuf(n.midiIn)
	if in == nil {
		return
	}
	for _, ev := range in.Events {
		status, d1, d2, ok := midiEventAt(ev)
		if !ok {
			continue
		}
		time := ctx.SubStart + ev.FrameOffset
		switch status & 0xF0 {
		case midiNoteOn:
			if d2 == 0 {
				n.noteOff(d1, time)
			} else {
				n.noteOn(d1, d2, time)
			}
		case midiNoteOff:
			n.noteOff(d1, time)
		case midiController:
			switch {
			case d1 == ccSustain:
				n.sustainChanged(d2 >= 64, time)
			case d1 == ccAllNotesOff || d1 == ccAllSoundOff:
				n.allNotesOff(time)
			}
		case 0xE0: // pitch bend
			amount := float64(int(d1)|int(d2)<<7)/8192.0 - 1.0
			n.writeStep(n.bend, amount, time)
		case 0xD0: // channel pressure
			n.writeStep(n.pressure, float64(d1)/127.0, time)
		}
	}
}

func (n *Note) noteOn(noteNum, velocity byte, time int) {
	n.held = append(n.held, noteNum)
	n.writeStep(n.freq, noteToFreq(noteNum), time)
	n.writeStep(n.num, float64(noteNum), time)
	n.writeStep(n.vel, float64(velocity)/127.0, time)
	n.writeStep(n.gate, 1.0, time)
	n.pulse(n.trig, time)
}

func (n *Note) noteOff(noteNum byte, time int) {
	n.held = removeByte(n.held, noteNum)
	if n.sustain {
		n.sustained[noteNum] = true
		return
	}
	if len(n.held) == 0 {
		n.writeStep(n.gate, 0.0, time)
		return
	}
	last := n.held[len(n.held)-1]
	n.writeStep(n.freq, noteToFreq(last), time)
	n.writeStep(n.num, float64(last), time)
}

func (n *Note) sustainChanged(on bool, time int) {
	n.sustain = on
	if on {
		return
	}
	for note := range n.sustained {
		n.noteOff(note, time)
	}
	n.sustained = make(map[byte]bool)
}

func (n *Note) allNotesOff(time int) {
	n.held = nil
	n.sustained = make(map[byte]bool)
	n.writeStep(n.gate, 0.0, time)
}

func (n *Note) writeStep(p *graph.Port, v float64, time int) {
	buf := portBuf(p)
	if buf == nil || len(buf.Data) == 0 {
		return
	}
	idx := clampIdx(time, len(buf.Data))
	fv := float32(v)
	for i := idx; i < len(buf.Data); i++ {
		buf.Data[i] = fv
	}
}

func (n *Note) pulse(p *graph.Port, time int) {
	buf := portBuf(p)
	if buf == nil || len(buf.Data) == 0 {
		return
	}
	idx := clampIdx(time, len(buf.Data))
	buf.Data[idx] = 1.0
	if idx+1 < len(buf.Data) {
		buf.Data[idx+1] = 0
	}
}

func noteToFreq(noteNum byte) float64 {
	return 440.0 * math.Pow(2.0, (float64(noteNum)-69.0)/12.0)
}

func removeByte(s []byte, v byte) []byte {
	out := s[:0]
	for _, b := range s {
		if b != v {
			out = append(out, b)
		}
	}
	return out
}
