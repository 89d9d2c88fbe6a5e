// Package plugin defines the capability set a hosted processing module
// exposes, the lifecycle the host drives it through, and the out-of-process
// transport used to load module binaries.
package plugin

// Precision selects the sample format of ProcessReplacing buffers.
type Precision int

const (
	Precision32 Precision = iota
	Precision64
)

// Capability is one entry of the module's advertised feature set.
type Capability string

const (
	CapEditor          Capability = "editor"
	CapReplacing       Capability = "replacing"
	CapProgramChunks   Capability = "program_chunks"
	CapSynth           Capability = "synth"
	CapNoSoundInStop   Capability = "no_sound_in_stop"
	CapDoubleReplacing Capability = "double_replacing"
)

// capabilityBits maps capabilities onto the legacy flag word.
var capabilityBits = map[Capability]uint32{
	CapEditor:          1 << 0,
	CapReplacing:       1 << 4,
	CapProgramChunks:   1 << 5,
	CapSynth:           1 << 8,
	CapNoSoundInStop:   1 << 9,
	CapDoubleReplacing: 1 << 12,
}

// AllCapabilities lists every known capability in flag-bit order.
var AllCapabilities = []Capability{
	CapEditor, CapReplacing, CapProgramChunks, CapSynth, CapNoSoundInStop, CapDoubleReplacing,
}

// FlagsFor builds a flag word from a set of capabilities.
func FlagsFor(caps ...Capability) uint32 {
	var flags uint32
	for _, c := range caps {
		flags |= capabilityBits[c]
	}
	return flags
}

// Info describes a module's static properties.
type Info struct {
	Name        string `json:"name"`
	NumInputs   int    `json:"num_inputs"`
	NumOutputs  int    `json:"num_outputs"`
	NumPrograms int    `json:"num_programs"`
	NumParams   int    `json:"num_params"`
	UniqueID    int32  `json:"unique_id"`
	Version     int32  `json:"version"`
	Flags       uint32 `json:"flags"`
}

// Supports reports whether the module advertises the capability.
func (i Info) Supports(c Capability) bool {
	bit, ok := capabilityBits[c]
	return ok && i.Flags&bit != 0
}

// Capabilities returns the advertised capabilities.
func (i Info) Capabilities() []Capability {
	var caps []Capability
	for _, c := range AllCapabilities {
		if i.Supports(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// Event is a single raw MIDI event delivered through ProcessEvents.
type Event struct {
	DeltaFrames int32
	Data        [4]byte
}

// Module is the typed capability set of a loaded processing module. The host
// owns exactly one Module per runtime and calls it from a single goroutine at
// a time.
type Module interface {
	Open() error
	Close() error
	SetPowerState(on bool) error
	StartProcessing() error
	StopProcessing() error

	SetBlockSize(n int) error
	SetSampleRate(rate float32) error
	SetProcessPrecision(p Precision) error

	// ProcessReplacing fills out from in. Every slice has the current block length.
	ProcessReplacing(in, out [][]float32) error
	ProcessEvents(events []Event) error

	GetChunk(isPreset bool) ([]byte, error)
	SetChunk(data []byte, isPreset bool) error
	BeginProgramChange() error
	EndProgramChange() error

	GetParameter(index int) (float32, error)
	SetParameter(index int, value float32) error
	ProgramName() (string, error)
	SetProgram(index int) error

	Info() (Info, error)
}
