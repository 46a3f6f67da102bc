package internalblocks

import (
	"github.com/ingen-audio/ingen/internal/ingen/buffer"
	"github.com/ingen-audio/ingen/internal/ingen/graph"
	"github.com/ingen-audio/ingen/internal/ingen/rtctx"
)

// Trigger fires "gate"/"trigger"/"velocity" when a MIDI note matching its
// "note" parameter arrives, and drops the gate on the matching note-off
// or an all-notes/sounds-off Control Change. Always monophonic.
type Trigger struct {
	midiIn, note, gate, trig, vel *graph.Port
}

func triggerPorts() []*graph.Port {
	notePort := port("note", graph.PortControl, graph.DirInput)
	notePort.Value = 60
	notePort.Min, notePort.Max = 0, 127
	return []*graph.Port{
		port("input", graph.PortAtom, graph.DirInput),
		notePort,
		port("gate", graph.PortAudio, graph.DirOutput),
		port("trigger", graph.PortAudio, graph.DirOutput),
		port("velocity", graph.PortAudio, graph.DirOutput),
	}
}

func (t *Trigger) Activate(f *buffer.Factory) error { return nil }
func (t *Trigger) Deactivate()                      {}

func (t *Trigger) Run(ctx rtctx.RunContext, ports []*graph.Port) {
	for _, p := range ports {
		switch p.Symbol {
		case "input":
			t.midiIn = p
		case "note":
			t.note = p
		case "gate":
			t.gate = p
		case "trigger":
			t.trig = p
		case "velocity":
			t.vel = p
		}
	}
	if t.midiIn == nil {
		return
	}
	in := portBuf(t.midiIn)
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
				t.noteOff(d1, time)
			} else {
				t.noteOn(d1, d2, time)
			}
		case midiNoteOff:
			t.noteOff(d1, time)
		case midiController:
			if d1 == ccAllNotesOff || d1 == ccAllSoundOff {
				t.setGate(0, time)
			}
		}
	}
}

func (t *Trigger) noteOn(noteNum, velocity byte, time int) {
	filterNote := t.note.Value
	if filterNote < 0 || filterNote >= 127 || byte(filterNote) != noteNum {
		return
	}
	t.setGate(1, time)
	if buf := portBuf(t.trig); buf != nil && len(buf.Data) > 0 {
		idx := clampIdx(time, len(buf.Data))
		buf.Data[idx] = 1.0
		if idx+1 < len(buf.Data) {
			buf.Data[idx+1] = 0
		}
	}
	if buf := portBuf(t.vel); buf != nil && len(buf.Data) > 0 {
		v := float32(velocity) / 127.0
		idx := clampIdx(time, len(buf.Data))
		for i := idx; i < len(buf.Data); i++ {
			buf.Data[i] = v
		}
	}
}

func (t *Trigger) noteOff(noteNum byte, time int) {
	if byte(t.note.Value) == noteNum {
		t.setGate(0, time)
	}
}

func (t *Trigger) setGate(v float32, time int) {
	if buf := portBuf(t.gate); buf != nil && len(buf.Data) > 0 {
		idx := clampIdx(time, len(buf.Data))
		for i := idx; i < len(buf.Data); i++ {
			buf.Data[i] = v
		}
	}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if n > 0 && i >= n {
		return n - 1
	}
	return i
}
