package host

import (
	"fmt"

	"github.com/audiolibrelab/fxhost/internal/midi"
	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// SendMidiNote delivers one raw channel message to the module immediately.
func (r *Runtime) SendMidiNote(status, note, velocity byte) error {
	return r.sendEvent(midi.Event(status, note, velocity))
}

// SendNoteOn sends a note-on on channel 1.
func (r *Runtime) SendNoteOn(note, velocity byte) error {
	return r.sendEvent(midi.NoteOn(note, velocity))
}

// SendNoteOff sends a note-off on channel 1.
func (r *Runtime) SendNoteOff(note byte) error {
	return r.sendEvent(midi.NoteOff(note))
}

// SendControlChange sends a controller change on channel 1.
func (r *Runtime) SendControlChange(controller, value byte) error {
	return r.sendEvent(midi.ControlChange(controller, value))
}

func (r *Runtime) sendEvent(ev plugin.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lifecycle.EnsurePowered(); err != nil {
		return err
	}
	m, err := r.lifecycle.Module()
	if err != nil {
		return err
	}
	if err := m.ProcessEvents([]plugin.Event{ev}); err != nil {
		return fmt.Errorf("failed to deliver MIDI event: %w", err)
	}
	r.logger.Debug("MIDI event sent", "event", midi.Describe(ev))
	return nil
}
