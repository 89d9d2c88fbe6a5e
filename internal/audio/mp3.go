package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// NewMP3Source decodes an MP3 file. go-mp3 always produces 16-bit stereo.
func NewMP3Source(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	var buf []byte
	decode := func(p []float32) (int, error) {
		need := len(p) * 2
		if cap(buf) < need {
			buf = make([]byte, need)
		}
		n, err := io.ReadFull(decoder, buf[:need])
		samples := n / 2
		for i := 0; i < samples; i++ {
			p[i] = float32(int16(binary.LittleEndian.Uint16(buf[i*2:]))) / 32768
		}
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return samples, err
	}

	frames := decoder.Length() / 4
	return newStream(decode, f, 2, decoder.SampleRate(), frames), nil
}
