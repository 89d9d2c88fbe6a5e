// Package midi builds the raw four-byte events delivered to a module's
// ProcessEvents.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// StatusNoteOn is "note on, channel 1".
const StatusNoteOn byte = 0x90

// Event packs a raw channel message into an event at frame offset zero.
// The fourth data byte is always zero.
func Event(status, data1, data2 byte) plugin.Event {
	return plugin.Event{DeltaFrames: 0, Data: [4]byte{status, data1, data2, 0}}
}

// FromMessage converts a gomidi channel message into an event.
func FromMessage(msg gomidi.Message) (plugin.Event, error) {
	if len(msg) == 0 || len(msg) > 3 {
		return plugin.Event{}, fmt.Errorf("unsupported MIDI message length %d", len(msg))
	}
	if msg[0]&0x80 == 0 {
		return plugin.Event{}, fmt.Errorf("invalid status byte 0x%02x", msg[0])
	}
	var ev plugin.Event
	copy(ev.Data[:3], msg)
	return ev, nil
}

// NoteOn is a note-on on channel 1.
func NoteOn(note, velocity byte) plugin.Event {
	return mustEvent(gomidi.NoteOn(0, note, velocity))
}

// NoteOff is a note-off on channel 1 with release velocity zero.
func NoteOff(note byte) plugin.Event {
	return mustEvent(gomidi.NoteOffVelocity(0, note, 0))
}

// ControlChange is a controller change on channel 1.
func ControlChange(controller, value byte) plugin.Event {
	return mustEvent(gomidi.ControlChange(0, controller, value))
}

func mustEvent(msg gomidi.Message) plugin.Event {
	ev, err := FromMessage(msg)
	if err != nil {
		panic(err)
	}
	return ev
}

// Describe renders an event for logs.
func Describe(ev plugin.Event) string {
	return gomidi.Message(ev.Data[:messageLength(ev.Data[0])]).String()
}

func messageLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 2
	default:
		return 3
	}
}
