// Package host composes a module lifecycle, the audio buffer pipeline, MIDI
// dispatch, preset transfer and recording into one runtime. Every operation
// on a Runtime is serialized behind a single lock.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/fxhost/internal/audio"
	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// Options configures a Runtime.
type Options struct {
	// Loader opens module binaries for Open. Attach works without one.
	Loader plugin.Loader
	Logger *slog.Logger
	// TailWait is how long processing continues after the source ends.
	TailWait time.Duration
	// SwapRecordedChannels stores the left output in the right recording
	// track and vice versa.
	SwapRecordedChannels bool
}

// Runtime hosts one module.
type Runtime struct {
	mu        sync.Mutex
	logger    *slog.Logger
	lifecycle *plugin.Lifecycle
	tailWait  time.Duration
	recorder  *audio.Recorder
	source    audio.Source

	info        plugin.Info
	initialized bool
	blockSize   int
	sampleRate  float32
	channels    int

	inputs  [][]float32
	outputs [][]float32
	raw     []byte

	monitorLeft  []float32
	monitorRight []float32
	lastFrames   int

	processed  uint64
	suppressed uint64
	lastErr    error
}

// New creates a runtime with no module.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		logger:    logger,
		lifecycle: plugin.NewLifecycle(opts.Loader, logger),
		tailWait:  opts.TailWait,
		recorder:  audio.NewRecorder(opts.SwapRecordedChannels),
	}
}

// Open loads and opens the module at path.
func (r *Runtime) Open(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lifecycle.Open(ctx, path)
}

// Attach adopts an in-process module.
func (r *Runtime) Attach(m plugin.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lifecycle.Attach(m)
}

// Init sizes every buffer to blockSize and pushes the processing setup to
// the module. It may be called again to change the setup.
func (r *Runtime) Init(blockSize int, sampleRate float32, channels int) error {
	if blockSize <= 0 || sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid processing setup: block size %d, sample rate %v, channels %d", blockSize, sampleRate, channels)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.lifecycle.Module()
	if err != nil {
		return err
	}
	info, err := m.Info()
	if err != nil {
		return fmt.Errorf("failed to query module info: %w", err)
	}

	r.inputs = allocChannels(info.NumInputs, blockSize)
	r.outputs = allocChannels(info.NumOutputs, blockSize)
	r.raw = make([]byte, blockSize*channels*4)
	r.monitorLeft = make([]float32, blockSize)
	r.monitorRight = make([]float32, blockSize)
	r.lastFrames = 0

	if err := m.SetBlockSize(blockSize); err != nil {
		return fmt.Errorf("failed to set block size: %w", err)
	}
	if err := m.SetSampleRate(sampleRate); err != nil {
		return fmt.Errorf("failed to set sample rate: %w", err)
	}
	if err := m.SetProcessPrecision(plugin.Precision32); err != nil {
		return fmt.Errorf("failed to set process precision: %w", err)
	}

	r.info = info
	r.blockSize = blockSize
	r.sampleRate = sampleRate
	r.channels = channels
	r.initialized = true

	r.logger.Info("Runtime initialized",
		"block_size", blockSize,
		"sample_rate", sampleRate,
		"channels", channels,
		"module_inputs", info.NumInputs,
		"module_outputs", info.NumOutputs)
	return nil
}

func allocChannels(count, frames int) [][]float32 {
	bufs := make([][]float32, count)
	for i := range bufs {
		bufs[i] = make([]float32, frames)
	}
	return bufs
}

// AttachSource feeds src into the module's inputs. The runtime takes
// ownership and closes the previous source. A nil src detaches.
func (r *Runtime) AttachSource(src audio.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src != nil {
		if !r.initialized {
			return ErrNotInitialized
		}
		if src.Channels() != r.channels {
			return fmt.Errorf("source has %d channels, runtime is set up for %d", src.Channels(), r.channels)
		}
		if float32(src.SampleRate()) != r.sampleRate {
			r.logger.Warn("Source sample rate differs from runtime",
				"source_rate", src.SampleRate(),
				"runtime_rate", r.sampleRate)
		}
	}

	r.closeSource()
	r.source = src
	if src != nil {
		r.logger.Info("Source attached", "duration", src.Duration(), "tail_wait", r.tailWait)
	}
	return nil
}

func (r *Runtime) closeSource() {
	if r.source == nil {
		return
	}
	if err := r.source.Close(); err != nil {
		r.logger.Warn("Failed to close source", "error", err)
	}
	r.source = nil
}

// Info returns the open module's info.
func (r *Runtime) Info() (plugin.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, err := r.lifecycle.Module()
	if err != nil {
		return plugin.Info{}, err
	}
	return m.Info()
}

// Release closes the source and tears the module down. Releasing a runtime
// with no module is a no-op.
func (r *Runtime) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeSource()
	r.initialized = false
	r.inputs, r.outputs = nil, nil
	r.lastFrames = 0
	return r.lifecycle.Release()
}

// Status is a point-in-time snapshot of the runtime.
type Status struct {
	State            plugin.State  `json:"state"`
	Session          string        `json:"session,omitempty"`
	Module           string        `json:"module,omitempty"`
	Info             *plugin.Info  `json:"info,omitempty"`
	Initialized      bool          `json:"initialized"`
	BlockSize        int           `json:"block_size"`
	SampleRate       float32       `json:"sample_rate"`
	Channels         int           `json:"channels"`
	Recording        audio.Status  `json:"recording"`
	RecordedFrames   int           `json:"recorded_frames"`
	RecordingPeak    float32       `json:"recording_peak"`
	ProcessedBlocks  uint64        `json:"processed_blocks"`
	SuppressedErrors uint64        `json:"suppressed_errors"`
	LastError        string        `json:"last_error,omitempty"`
	SourceAttached   bool          `json:"source_attached"`
	SourceElapsed    time.Duration `json:"source_elapsed"`
	SourceDuration   time.Duration `json:"source_duration"`
}

// Status returns a snapshot of the runtime.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:            r.lifecycle.State(),
		Session:          r.lifecycle.SessionID(),
		Module:           r.lifecycle.Path(),
		Initialized:      r.initialized,
		BlockSize:        r.blockSize,
		SampleRate:       r.sampleRate,
		Channels:         r.channels,
		Recording:        r.recorder.Status(),
		RecordedFrames:   r.recorder.Frames(),
		RecordingPeak:    r.recorder.Peak(),
		ProcessedBlocks:  r.processed,
		SuppressedErrors: r.suppressed,
	}
	if r.initialized {
		info := r.info
		st.Info = &info
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	if r.source != nil {
		st.SourceAttached = true
		st.SourceElapsed = r.source.Elapsed()
		st.SourceDuration = r.source.Duration()
	}
	return st
}
