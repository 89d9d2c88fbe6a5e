// Package bigendian reads and writes fixed-width big-endian values on top of
// endibuf. Binary formats in this module (preset documents) decode through
// the Decoder interface so callers can swap the byte source.
package bigendian

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/vazrupe/endibuf"
)

// Decoder reads fixed-width big-endian values from a byte source.
type Decoder interface {
	ReadUint16() (uint16, error)
	ReadUint32() (uint32, error)
	ReadInt32() (int32, error)
	ReadFloat32() (float32, error)
	ReadBytes(n int) ([]byte, error)
}

// Reader implements Decoder with an endibuf.Reader pinned to big-endian order.
type Reader struct {
	r *endibuf.Reader
}

// NewReader wraps a seekable byte source.
func NewReader(rs io.ReadSeeker) *Reader {
	r := endibuf.NewReader(rs)
	r.Endian = binary.BigEndian
	return &Reader{r: r}
}

// NewBytesReader wraps an in-memory buffer.
func NewBytesReader(data []byte) *Reader {
	base := bytes.NewReader(data)
	return NewReader(io.NewSectionReader(base, 0, base.Size()))
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.r.ReadUint16()
	if err != nil {
		return 0, eofAsUnexpected(err)
	}
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.r.ReadUint32()
	if err != nil {
		return 0, eofAsUnexpected(err)
	}
	return v, nil
}

// ReadInt32 reads a two's-complement 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE 754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	// endibuf.Reader.ReadBytes drops the byte count of a short read.
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, eofAsUnexpected(err)
	}
	return b, nil
}

func eofAsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
