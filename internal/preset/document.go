// Package preset reads and writes "CcnK" program and bank documents and
// moves them in and out of a module.
package preset

import "fmt"

// ChunkMagic opens every document.
const ChunkMagic = "CcnK"

// FxMagic values select program or bank and chunk or parameter payload.
const (
	MagicProgramParams = "FxCk"
	MagicProgramChunk  = "FPCh"
	MagicBankParams    = "FxBk"
	MagicBankChunk     = "FBCh"
)

// FormatVersion is the only document version written.
const FormatVersion int32 = 1

// NameSize is the fixed width of the name field on the wire.
const NameSize = 28

// Document is a decoded preset. Exactly one of Params or Chunk is used,
// depending on FxMagic.
type Document struct {
	ChunkMagic string    `json:"chunk_magic"`
	FxMagic    string    `json:"fx_magic"`
	Version    int32     `json:"version"`
	FxID       string    `json:"fx_id"`
	FxVersion  int32     `json:"fx_version"`
	Count      int32     `json:"count"`
	Name       string    `json:"name"`
	Params     []float32 `json:"params,omitempty"`
	Chunk      []byte    `json:"chunk,omitempty"`
}

// IsChunk reports whether the payload is an opaque chunk.
func (d *Document) IsChunk() bool {
	return d.FxMagic == MagicProgramChunk || d.FxMagic == MagicBankChunk
}

// IsBank reports whether the document holds a whole bank.
func (d *Document) IsBank() bool {
	return d.FxMagic == MagicBankParams || d.FxMagic == MagicBankChunk
}

// Extension returns the conventional file extension.
func (d *Document) Extension() string {
	if d.IsBank() {
		return ".fxb"
	}
	return ".fxp"
}

// Validate checks the magic values and that the payload matches FxMagic.
func (d *Document) Validate() error {
	if d.ChunkMagic != ChunkMagic {
		return &FormatError{Magic: d.ChunkMagic, Reason: "chunk magic is not " + ChunkMagic}
	}
	switch d.FxMagic {
	case MagicProgramChunk, MagicBankChunk:
		if d.Params != nil {
			return &FormatError{Magic: d.FxMagic, Reason: "chunk document carries parameters"}
		}
	case MagicProgramParams, MagicBankParams:
		if d.Chunk != nil {
			return &FormatError{Magic: d.FxMagic, Reason: "parameter document carries a chunk"}
		}
		if int(d.Count) != len(d.Params) {
			return &FormatError{Magic: d.FxMagic, Reason: fmt.Sprintf("count %d does not match %d parameters", d.Count, len(d.Params))}
		}
	default:
		return &FormatError{Magic: d.FxMagic, Reason: "unknown fx magic"}
	}
	if _, err := DecodeID(d.FxID); err != nil {
		return &FormatError{Magic: d.FxMagic, Reason: "invalid fx id", Err: err}
	}
	return nil
}
