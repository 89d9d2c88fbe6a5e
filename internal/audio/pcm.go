package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// NewRawSource reads headerless interleaved little-endian float32 PCM. The
// format cannot be discovered from the file, so the caller supplies it.
func NewRawSource(path string, channels, sampleRate int) (Source, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid raw format: %d channels at %d Hz", channels, sampleRate)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat raw file: %w", err)
	}

	r := bufio.NewReaderSize(f, 64*1024)
	var buf []byte
	decode := func(p []float32) (int, error) {
		need := len(p) * 4
		if cap(buf) < need {
			buf = make([]byte, need)
		}
		n, err := io.ReadFull(r, buf[:need])
		samples := n / 4
		for i := 0; i < samples; i++ {
			p[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return samples, err
	}

	frames := stat.Size() / int64(4*channels)
	return newStream(decode, f, channels, sampleRate, frames), nil
}
