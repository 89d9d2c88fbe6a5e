package host

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// Result is the outcome of one ProcessReplacing call.
type Result struct {
	// Samples is the interleaved sample count consumed, frames × channels.
	Samples int
	// EndOfStream is set once the source and its tail are exhausted.
	EndOfStream bool
	// Err carries a suppressed module failure or a setup error.
	Err error
}

// ProcessReplacing runs one block of sampleCount interleaved samples through
// the module. Module failures do not stop processing: they are reported in
// Result.Err and the block is dropped.
func (r *Runtime) ProcessReplacing(sampleCount int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return Result{Err: ErrNotInitialized}
	}

	frames := min(sampleCount/r.channels, r.blockSize)
	if frames <= 0 {
		return Result{}
	}
	count := frames * r.channels

	if r.source != nil {
		if r.source.Elapsed() > r.source.Duration()+r.tailWait {
			return Result{EndOfStream: true}
		}
		raw := r.raw[:count*4]
		if _, err := io.ReadFull(r.source, raw); err != nil {
			r.lastErr = fmt.Errorf("failed to read source: %w", err)
			return Result{EndOfStream: true, Err: r.lastErr}
		}
		r.deinterleave(raw, frames)
	} else {
		for _, in := range r.inputs {
			clear(in[:frames])
		}
	}

	if err := r.lifecycle.EnsurePowered(); err != nil {
		return Result{Err: err}
	}
	m, err := r.lifecycle.Module()
	if err != nil {
		return Result{Err: err}
	}

	in := blockView(r.inputs, frames)
	out := blockView(r.outputs, frames)
	if perr := invoke(m, in, out); perr != nil {
		r.suppressed++
		r.lastErr = perr
		r.logger.Warn("Suppressed module failure", "error", perr, "suppressed", r.suppressed)
		return Result{Samples: count, Err: perr}
	}

	r.capture(frames)
	r.recorder.Append(r.monitorLeft[:frames], r.monitorRight[:frames])
	r.processed++
	return Result{Samples: count}
}

// deinterleave splits raw little-endian float32 samples by stride. Module
// inputs beyond the runtime channel count are zeroed.
func (r *Runtime) deinterleave(raw []byte, frames int) {
	for c, in := range r.inputs {
		if c >= r.channels {
			clear(in[:frames])
			continue
		}
		for f := 0; f < frames; f++ {
			off := (f*r.channels + c) * 4
			in[f] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		}
	}
}

// capture copies the first two outputs into the monitoring buffers. A mono
// module feeds both sides.
func (r *Runtime) capture(frames int) {
	switch len(r.outputs) {
	case 0:
		clear(r.monitorLeft[:frames])
		clear(r.monitorRight[:frames])
	case 1:
		copy(r.monitorLeft, r.outputs[0][:frames])
		copy(r.monitorRight, r.outputs[0][:frames])
	default:
		copy(r.monitorLeft, r.outputs[0][:frames])
		copy(r.monitorRight, r.outputs[1][:frames])
	}
	r.lastFrames = frames
}

func blockView(bufs [][]float32, frames int) [][]float32 {
	view := make([][]float32, len(bufs))
	for i, b := range bufs {
		view[i] = b[:frames]
	}
	return view
}

// invoke calls the module and converts errors and panics into a
// ProcessingError.
func invoke(m plugin.Module, in, out [][]float32) (perr *ProcessingError) {
	defer func() {
		if rec := recover(); rec != nil {
			perr = &ProcessingError{Recovered: rec}
		}
	}()
	if err := m.ProcessReplacing(in, out); err != nil {
		return &ProcessingError{Err: err}
	}
	return nil
}

// Monitor returns copies of the most recent output block.
func (r *Runtime) Monitor() (left, right []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	left = append([]float32{}, r.monitorLeft[:r.lastFrames]...)
	right = append([]float32{}, r.monitorRight[:r.lastFrames]...)
	return left, right
}
