package bigendian

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/vazrupe/endibuf"
)

// Buffer is an in-memory io.WriteSeeker. endibuf writers need a seekable
// sink so size fields can be patched after the payload is known.
type Buffer struct {
	data []byte
	pos  int
}

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("bigendian: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("bigendian: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.data) }

// Writer encodes big-endian values into a Buffer.
type Writer struct {
	buf *Buffer
	w   *endibuf.Writer
}

// NewWriter returns a Writer over a fresh Buffer.
func NewWriter() *Writer {
	buf := &Buffer{}
	w := endibuf.NewWriter(buf)
	w.Endian = binary.BigEndian
	return &Writer{buf: buf, w: w}
}

func (w *Writer) WriteBytes(b []byte) {
	w.w.WriteBytes(b)
}

func (w *Writer) WriteUint32(v uint32) {
	w.w.WriteUint32(v)
}

func (w *Writer) WriteInt32(v int32) {
	w.w.WriteUint32(uint32(v))
}

// WriteFloat32s writes the values back to back.
func (w *Writer) WriteFloat32s(v []float32) {
	if len(v) == 0 {
		return
	}
	w.w.WriteData(v)
}

// PatchInt32 overwrites four bytes at offset and returns to the end.
func (w *Writer) PatchInt32(offset int64, v int32) {
	w.buf.Seek(offset, io.SeekStart)
	w.w.WriteUint32(uint32(v))
	w.buf.Seek(0, io.SeekEnd)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }
