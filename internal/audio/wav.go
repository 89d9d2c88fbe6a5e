package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/vazrupe/endibuf"

	"github.com/audiolibrelab/fxhost/internal/bigendian"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// wavFormat is the subset of the fmt chunk the host needs.
type wavFormat struct {
	Type          uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// WriteWAV writes interleaved float32 samples as a 32-bit float WAV file.
func WriteWAV(out io.Writer, samples []float32, channels, sampleRate int) error {
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("invalid WAV format: %d channels at %d Hz", channels, sampleRate)
	}

	dataSize := uint32(len(samples) * 4)
	blockAlign := uint16(channels * 4)

	buf := &bigendian.Buffer{}
	w := endibuf.NewWriter(buf)

	w.Endian = binary.BigEndian
	w.WriteBytes([]byte("RIFF"))
	w.Endian = binary.LittleEndian
	w.WriteUint32(36 + dataSize)
	w.Endian = binary.BigEndian
	w.WriteBytes([]byte("WAVE"))
	w.WriteBytes([]byte("fmt "))

	w.Endian = binary.LittleEndian
	w.WriteUint32(16)
	w.WriteUint16(wavFormatFloat)
	w.WriteUint16(uint16(channels))
	w.WriteUint32(uint32(sampleRate))
	w.WriteUint32(uint32(sampleRate) * uint32(blockAlign))
	w.WriteUint16(blockAlign)
	w.WriteUint16(32)

	w.Endian = binary.BigEndian
	w.WriteBytes([]byte("data"))
	w.Endian = binary.LittleEndian
	w.WriteUint32(dataSize)
	if len(samples) > 0 {
		w.WriteData(samples)
	}

	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write WAV: %w", err)
	}
	return nil
}

// NewWAVSource decodes 16-bit PCM or 32-bit float WAV files.
func NewWAVSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	r := endibuf.NewReader(f)
	format, dataSize, err := readWAVHeader(r)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse WAV %s: %w", path, err)
	}

	bytesPerSample := int64(format.BitsPerSample / 8)
	remaining := int64(dataSize) / bytesPerSample
	decode := func(p []float32) (int, error) {
		n := 0
		for n < len(p) && remaining > 0 {
			var v float32
			var err error
			if format.Type == wavFormatFloat {
				var u uint32
				u, err = r.ReadUint32()
				v = math.Float32frombits(u)
			} else {
				var u uint16
				u, err = r.ReadUint16()
				v = float32(int16(u)) / 32768
			}
			if err != nil {
				return n, io.EOF
			}
			p[n] = v
			n++
			remaining--
		}
		if remaining == 0 {
			return n, io.EOF
		}
		return n, nil
	}

	frames := int64(dataSize) / (bytesPerSample * int64(format.Channels))
	return newStream(decode, f, int(format.Channels), int(format.SampleRate), frames), nil
}

// readWAVHeader walks the RIFF chunks up to the start of the data chunk.
func readWAVHeader(r *endibuf.Reader) (wavFormat, uint32, error) {
	var format wavFormat

	r.Endian = binary.BigEndian
	riff, err := readTag(r)
	if err != nil {
		return format, 0, err
	}
	r.Endian = binary.LittleEndian
	if _, err := r.ReadUint32(); err != nil {
		return format, 0, err
	}
	wave, err := readTag(r)
	if err != nil {
		return format, 0, err
	}
	if string(riff) != "RIFF" || string(wave) != "WAVE" {
		return format, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	haveFormat := false
	for {
		id, err := readTag(r)
		if err != nil {
			return format, 0, fmt.Errorf("no data chunk: %w", err)
		}
		size, err := r.ReadUint32()
		if err != nil {
			return format, 0, err
		}

		switch string(id) {
		case "fmt ":
			if size < 16 {
				return format, 0, fmt.Errorf("fmt chunk too small (%d bytes)", size)
			}
			if format.Type, err = r.ReadUint16(); err != nil {
				return format, 0, err
			}
			if format.Channels, err = r.ReadUint16(); err != nil {
				return format, 0, err
			}
			if format.SampleRate, err = r.ReadUint32(); err != nil {
				return format, 0, err
			}
			// byte rate and block align
			if _, err := io.CopyN(io.Discard, r, 6); err != nil {
				return format, 0, err
			}
			if format.BitsPerSample, err = r.ReadUint16(); err != nil {
				return format, 0, err
			}
			if err := skipChunk(r, size-16); err != nil {
				return format, 0, err
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return format, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if err := format.check(); err != nil {
				return format, 0, err
			}
			return format, size, nil
		default:
			if err := skipChunk(r, size); err != nil {
				return format, 0, err
			}
		}
	}
}

func skipChunk(r *endibuf.Reader, size uint32) error {
	if size%2 == 1 {
		size++
	}
	if size == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(size))
	return err
}

// readTag reads a four-byte chunk id. A short read is an error.
func readTag(r *endibuf.Reader) ([]byte, error) {
	tag := make([]byte, 4)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (f wavFormat) check() error {
	switch {
	case f.Channels == 0:
		return fmt.Errorf("zero channels")
	case f.Type == wavFormatFloat && f.BitsPerSample == 32:
		return nil
	case f.Type == wavFormatPCM && f.BitsPerSample == 16:
		return nil
	}
	return fmt.Errorf("unsupported WAV encoding (format %d, %d bits)", f.Type, f.BitsPerSample)
}
