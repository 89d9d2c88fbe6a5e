package preset

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/fxhost/internal/plugin"
)

// LoadReport describes what a load applied to the module.
type LoadReport struct {
	FxMagic  string `json:"fx_magic"`
	Name     string `json:"name"`
	Chunk    bool   `json:"chunk"`
	Applied  int    `json:"applied"`
	Skipped  []int  `json:"skipped,omitempty"`
	IsPreset bool   `json:"is_preset"`
}

// SaveProgram captures the module's current program. Chunk-capable modules
// produce an FPCh document, others an FxCk document with every parameter.
func SaveProgram(m plugin.Module) (*Document, error) {
	info, err := m.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to query module info: %w", err)
	}
	name, err := m.ProgramName()
	if err != nil {
		return nil, fmt.Errorf("failed to read program name: %w", err)
	}

	doc := &Document{
		ChunkMagic: ChunkMagic,
		Version:    FormatVersion,
		FxID:       EncodeID(info.UniqueID),
		FxVersion:  info.Version,
		Name:       name,
	}

	if info.Supports(plugin.CapProgramChunks) {
		chunk, err := m.GetChunk(true)
		if err != nil {
			return nil, fmt.Errorf("failed to read program chunk: %w", err)
		}
		if chunk == nil {
			chunk = []byte{}
		}
		doc.FxMagic = MagicProgramChunk
		doc.Count = int32(info.NumPrograms)
		doc.Chunk = chunk
		return doc, nil
	}

	doc.FxMagic = MagicProgramParams
	doc.Count = int32(info.NumParams)
	doc.Params = make([]float32, info.NumParams)
	for i := range doc.Params {
		if doc.Params[i], err = m.GetParameter(i); err != nil {
			return nil, fmt.Errorf("failed to read parameter %d: %w", i, err)
		}
	}
	return doc, nil
}

// SaveBank captures the whole bank of a chunk-capable module.
func SaveBank(m plugin.Module) (*Document, error) {
	info, err := m.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to query module info: %w", err)
	}
	if !info.Supports(plugin.CapProgramChunks) {
		return nil, ErrBankUnsupported
	}
	chunk, err := m.GetChunk(false)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank chunk: %w", err)
	}
	if chunk == nil {
		chunk = []byte{}
	}
	return &Document{
		ChunkMagic: ChunkMagic,
		FxMagic:    MagicBankChunk,
		Version:    FormatVersion,
		FxID:       EncodeID(info.UniqueID),
		FxVersion:  info.Version,
		Count:      int32(info.NumPrograms),
		Chunk:      chunk,
	}, nil
}

// LoadProgram applies doc to the module. Chunk documents of either kind
// are handed over as a preset. A parameter the module rejects is skipped
// and listed in the report.
func LoadProgram(m plugin.Module, doc *Document) (*LoadReport, error) {
	return load(m, doc, false)
}

// LoadBank is LoadProgram for whole banks: FBCh chunks are handed over as
// bank state rather than a single preset.
func LoadBank(m plugin.Module, doc *Document) (*LoadReport, error) {
	return load(m, doc, true)
}

func load(m plugin.Module, doc *Document, bank bool) (report *LoadReport, err error) {
	if doc.ChunkMagic != ChunkMagic {
		return nil, &FormatError{Magic: doc.ChunkMagic, Reason: "chunk magic is not " + ChunkMagic}
	}
	switch doc.FxMagic {
	case MagicProgramParams, MagicProgramChunk, MagicBankParams, MagicBankChunk:
	default:
		return nil, &FormatError{Magic: doc.FxMagic, Reason: "unknown fx magic"}
	}

	id, err := DecodeID(doc.FxID)
	if err != nil {
		return nil, &FormatError{Magic: doc.FxMagic, Reason: "invalid fx id", Err: err}
	}
	info, err := m.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to query module info: %w", err)
	}
	if id != info.UniqueID {
		return nil, &MismatchError{Want: EncodeID(info.UniqueID), Got: doc.FxID}
	}

	report = &LoadReport{FxMagic: doc.FxMagic, Name: doc.Name, Chunk: doc.IsChunk()}

	if err := m.BeginProgramChange(); err != nil {
		return nil, fmt.Errorf("failed to begin program change: %w", err)
	}
	defer func() {
		if endErr := m.EndProgramChange(); endErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to end program change: %w", endErr))
		}
	}()

	if doc.IsChunk() {
		report.IsPreset = !(bank && doc.FxMagic == MagicBankChunk)
		if err := m.SetChunk(doc.Chunk, report.IsPreset); err != nil {
			return report, fmt.Errorf("failed to apply chunk: %w", err)
		}
		report.Applied = 1
		return report, nil
	}

	for i, v := range doc.Params {
		if err := m.SetParameter(i, v); err != nil {
			report.Skipped = append(report.Skipped, i)
			continue
		}
		report.Applied++
	}
	return report, nil
}
