package audio

import (
	"fmt"
	"os"

	"github.com/mewkiz/flac"
)

// NewFLACSource decodes a FLAC file at its native rate and channel count.
func NewFLACSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	var pending []float32
	decode := func(p []float32) (int, error) {
		filled := 0
		for filled < len(p) {
			if len(pending) == 0 {
				frame, err := stream.ParseNext()
				if err != nil {
					return filled, err
				}
				for i := 0; i < int(frame.BlockSize); i++ {
					for ch := 0; ch < channels; ch++ {
						pending = append(pending, float32(frame.Subframes[ch].Samples[i])/scale)
					}
				}
			}
			n := copy(p[filled:], pending)
			filled += n
			pending = pending[n:]
		}
		return filled, nil
	}

	return newStream(decode, f, channels, int(info.SampleRate), int64(info.NSamples)), nil
}
