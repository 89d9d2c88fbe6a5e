package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/audiolibrelab/fxhost/internal/bigendian"
)

// headerSize covers everything up to and including the name field.
const headerSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 + NameSize

// maxPayload bounds chunk and parameter allocations while decoding.
const maxPayload = 64 << 20

// Marshal encodes doc in the big-endian wire layout. ByteSize is computed.
func Marshal(doc *Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	id, _ := DecodeID(doc.FxID)

	w := bigendian.NewWriter()
	w.WriteBytes([]byte(ChunkMagic))
	w.WriteInt32(0) // patched below
	w.WriteBytes([]byte(doc.FxMagic))
	w.WriteInt32(doc.Version)
	w.WriteInt32(id)
	w.WriteInt32(doc.FxVersion)
	w.WriteInt32(doc.Count)
	w.WriteBytes(encodeName(doc.Name))

	if doc.IsChunk() {
		w.WriteInt32(int32(len(doc.Chunk)))
		if len(doc.Chunk) > 0 {
			w.WriteBytes(doc.Chunk)
		}
	} else {
		w.WriteFloat32s(doc.Params)
	}

	w.PatchInt32(4, int32(w.Len()-8))
	return w.Bytes(), nil
}

// Unmarshal decodes a complete document from data.
func Unmarshal(data []byte) (*Document, error) {
	if len(data) < headerSize {
		return nil, &FormatError{Reason: fmt.Sprintf("document is %d bytes, header needs %d", len(data), headerSize)}
	}
	return Decode(bigendian.NewBytesReader(data))
}

// Decode reads one document from d.
func Decode(d bigendian.Decoder) (*Document, error) {
	doc := &Document{}

	magic, err := d.ReadBytes(4)
	if err != nil {
		return nil, truncated("", err)
	}
	doc.ChunkMagic = string(magic)
	if doc.ChunkMagic != ChunkMagic {
		return nil, &FormatError{Magic: doc.ChunkMagic, Reason: "chunk magic is not " + ChunkMagic}
	}
	if _, err := d.ReadInt32(); err != nil { // ByteSize is informational
		return nil, truncated(doc.ChunkMagic, err)
	}

	fxMagic, err := d.ReadBytes(4)
	if err != nil {
		return nil, truncated(doc.ChunkMagic, err)
	}
	doc.FxMagic = string(fxMagic)
	switch doc.FxMagic {
	case MagicProgramParams, MagicProgramChunk, MagicBankParams, MagicBankChunk:
	default:
		return nil, &FormatError{Magic: doc.FxMagic, Reason: "unknown fx magic"}
	}

	var id int32
	for _, field := range []*int32{&doc.Version, &id, &doc.FxVersion, &doc.Count} {
		if *field, err = d.ReadInt32(); err != nil {
			return nil, truncated(doc.FxMagic, err)
		}
	}
	doc.FxID = EncodeID(id)

	name, err := d.ReadBytes(NameSize)
	if err != nil {
		return nil, truncated(doc.FxMagic, err)
	}
	doc.Name = decodeName(name)

	if doc.IsChunk() {
		size, err := d.ReadInt32()
		if err != nil {
			return nil, truncated(doc.FxMagic, err)
		}
		if size < 0 || size > maxPayload {
			return nil, &FormatError{Magic: doc.FxMagic, Reason: fmt.Sprintf("chunk size %d out of range", size)}
		}
		if doc.Chunk, err = d.ReadBytes(int(size)); err != nil {
			return nil, truncated(doc.FxMagic, err)
		}
		return doc, nil
	}

	if doc.Count < 0 || int64(doc.Count)*4 > maxPayload {
		return nil, &FormatError{Magic: doc.FxMagic, Reason: fmt.Sprintf("parameter count %d out of range", doc.Count)}
	}
	doc.Params = make([]float32, doc.Count)
	for i := range doc.Params {
		if doc.Params[i], err = d.ReadFloat32(); err != nil {
			return nil, truncated(doc.FxMagic, err)
		}
	}
	return doc, nil
}

// Write encodes doc to w.
func Write(w io.Writer, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read decodes a document from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	return Unmarshal(data)
}

// SaveFile writes doc to path.
func SaveFile(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preset %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset %s: %w", path, err)
	}
	return Unmarshal(data)
}

func encodeName(name string) []byte {
	b := make([]byte, NameSize)
	copy(b, name)
	return b
}

func decodeName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func truncated(magic string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &FormatError{Magic: magic, Reason: "truncated document", Err: err}
	}
	return err
}
