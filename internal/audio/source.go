package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Source is a pull source of interleaved little-endian float32 PCM.
//
// Once the decoded audio ends, Read keeps returning silence and Elapsed keeps
// advancing, so a caller can let an effect tail ring out and stop on its own
// terms by comparing Elapsed with Duration.
type Source interface {
	io.Reader
	Channels() int
	SampleRate() int
	// Elapsed is the playback position of everything read so far, padding included.
	Elapsed() time.Duration
	// Duration is the length of the decoded audio.
	Duration() time.Duration
	Close() error
}

// decodeFunc fills p with interleaved samples in [-1, 1] and returns how many
// it wrote. It returns io.EOF once the underlying audio is exhausted.
type decodeFunc func(p []float32) (int, error)

// stream turns a decodeFunc into a Source.
type stream struct {
	decode     decodeFunc
	closer     io.Closer
	channels   int
	sampleRate int
	frames     int64 // total decoded frames, 0 when unknown
	delivered  int64 // samples handed out, padding included
	exhausted  bool
	scratch    []float32
}

func newStream(decode decodeFunc, closer io.Closer, channels, sampleRate int, frames int64) *stream {
	return &stream{
		decode:     decode,
		closer:     closer,
		channels:   channels,
		sampleRate: sampleRate,
		frames:     frames,
	}
}

func (s *stream) Read(p []byte) (int, error) {
	count := len(p) / 4
	if count == 0 {
		return 0, nil
	}
	if cap(s.scratch) < count {
		s.scratch = make([]float32, count)
	}
	samples := s.scratch[:count]

	filled := 0
	for filled < count && !s.exhausted {
		n, err := s.decode(samples[filled:])
		filled += n
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to decode source: %w", err)
		}
		if n == 0 {
			s.exhausted = true
		}
	}
	clear(samples[filled:])

	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	s.delivered += int64(count)
	return count * 4, nil
}

func (s *stream) Channels() int   { return s.channels }
func (s *stream) SampleRate() int { return s.sampleRate }

func (s *stream) Elapsed() time.Duration {
	return framesToDuration(s.delivered/int64(s.channels), s.sampleRate)
}

func (s *stream) Duration() time.Duration {
	return framesToDuration(s.frames, s.sampleRate)
}

func (s *stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// NewMemorySource serves interleaved samples from memory.
func NewMemorySource(samples []float32, channels, sampleRate int) (Source, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid source format: %d channels at %d Hz", channels, sampleRate)
	}
	pos := 0
	decode := func(p []float32) (int, error) {
		if pos >= len(samples) {
			return 0, io.EOF
		}
		n := copy(p, samples[pos:])
		pos += n
		return n, nil
	}
	return newStream(decode, nil, channels, sampleRate, int64(len(samples)/channels)), nil
}
