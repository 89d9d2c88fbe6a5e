// Package plugintest provides an in-memory Module for tests.
package plugintest

import (
	"fmt"
	"sync"

	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// Module is a scriptable plugin.Module that records every call it receives.
// By default it copies inputs to outputs.
type Module struct {
	mu sync.Mutex

	info    plugin.Info
	params  []float32
	chunk   []byte
	program string

	// Process replaces the default pass-through when set.
	Process func(in, out [][]float32) error
	// FailParams makes SetParameter fail for the listed indices.
	FailParams map[int]bool
	// Errors makes the named method return the given error.
	Errors map[string]error

	calls      []string
	events     []plugin.Event
	setChunks  []SetChunkCall
	blockSize  int
	sampleRate float32
	precision  plugin.Precision
}

// SetChunkCall records one SetChunk invocation.
type SetChunkCall struct {
	Data     []byte
	IsPreset bool
}

// New returns a module with the given info and zeroed parameters.
func New(info plugin.Info) *Module {
	return &Module{
		info:    info,
		params:  make([]float32, info.NumParams),
		program: "Init",
	}
}

// Stereo returns a two-in two-out module.
func Stereo(uniqueID int32, caps ...plugin.Capability) *Module {
	return New(plugin.Info{
		Name:        "test",
		NumInputs:   2,
		NumOutputs:  2,
		NumPrograms: 1,
		NumParams:   4,
		UniqueID:    uniqueID,
		Version:     1,
		Flags:       plugin.FlagsFor(append([]plugin.Capability{plugin.CapReplacing}, caps...)...),
	})
}

func (m *Module) record(name string) error {
	m.calls = append(m.calls, name)
	return m.Errors[name]
}

// Calls returns the method names received so far, in order.
func (m *Module) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns how many times name was called.
func (m *Module) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Events returns every event delivered through ProcessEvents.
func (m *Module) Events() []plugin.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]plugin.Event(nil), m.events...)
}

// SetChunks returns every SetChunk invocation.
func (m *Module) SetChunks() []SetChunkCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SetChunkCall(nil), m.setChunks...)
}

// Params returns a copy of the parameter values.
func (m *Module) Params() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.params...)
}

// SetState preloads chunk data and a program name.
func (m *Module) SetState(chunk []byte, program string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunk = append([]byte(nil), chunk...)
	m.program = program
}

// Settings returns the last block size, sample rate and precision pushed.
func (m *Module) Settings() (int, float32, plugin.Precision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockSize, m.sampleRate, m.precision
}

func (m *Module) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Open")
}

func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Close")
}

func (m *Module) SetPowerState(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		return m.record("PowerOn")
	}
	return m.record("PowerOff")
}

func (m *Module) StartProcessing() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("StartProcessing")
}

func (m *Module) StopProcessing() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("StopProcessing")
}

func (m *Module) SetBlockSize(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockSize = n
	return m.record("SetBlockSize")
}

func (m *Module) SetSampleRate(rate float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = rate
	return m.record("SetSampleRate")
}

func (m *Module) SetProcessPrecision(p plugin.Precision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.precision = p
	return m.record("SetProcessPrecision")
}

func (m *Module) ProcessReplacing(in, out [][]float32) error {
	m.mu.Lock()
	err := m.record("ProcessReplacing")
	process := m.Process
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if process != nil {
		return process(in, out)
	}
	for ch := range out {
		if ch < len(in) {
			copy(out[ch], in[ch])
		}
	}
	return nil
}

func (m *Module) ProcessEvents(events []plugin.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.record("ProcessEvents")
}

func (m *Module) GetChunk(isPreset bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetChunk"); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.chunk...), nil
}

func (m *Module) SetChunk(data []byte, isPreset bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetChunk"); err != nil {
		return err
	}
	m.setChunks = append(m.setChunks, SetChunkCall{Data: append([]byte(nil), data...), IsPreset: isPreset})
	m.chunk = append([]byte(nil), data...)
	return nil
}

func (m *Module) BeginProgramChange() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("BeginProgramChange")
}

func (m *Module) EndProgramChange() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("EndProgramChange")
}

func (m *Module) GetParameter(index int) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetParameter"); err != nil {
		return 0, err
	}
	if index < 0 || index >= len(m.params) {
		return 0, fmt.Errorf("parameter %d out of range", index)
	}
	return m.params[index], nil
}

func (m *Module) SetParameter(index int, value float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetParameter"); err != nil {
		return err
	}
	if m.FailParams[index] {
		return fmt.Errorf("parameter %d rejected", index)
	}
	if index < 0 || index >= len(m.params) {
		return fmt.Errorf("parameter %d out of range", index)
	}
	m.params[index] = value
	return nil
}

func (m *Module) ProgramName() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.program, m.record("ProgramName")
}

func (m *Module) SetProgram(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("SetProgram")
}

func (m *Module) Info() (plugin.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, m.record("Info")
}
