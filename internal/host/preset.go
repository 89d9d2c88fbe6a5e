package host

import (
	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/preset"
)

// SaveProgram captures the module's current program.
func (r *Runtime) SaveProgram() (*preset.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.lifecycle.Module()
	if err != nil {
		return nil, err
	}
	return preset.SaveProgram(m)
}

// SaveBank captures the module's whole bank.
func (r *Runtime) SaveBank() (*preset.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.lifecycle.Module()
	if err != nil {
		return nil, err
	}
	return preset.SaveBank(m)
}

// LoadProgram applies doc to the module between two process calls.
func (r *Runtime) LoadProgram(doc *preset.Document) (*preset.LoadReport, error) {
	return r.load(doc, preset.LoadProgram)
}

// LoadBank applies a bank document to the module.
func (r *Runtime) LoadBank(doc *preset.Document) (*preset.LoadReport, error) {
	return r.load(doc, preset.LoadBank)
}

func (r *Runtime) load(doc *preset.Document, apply func(m plugin.Module, doc *preset.Document) (*preset.LoadReport, error)) (*preset.LoadReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.lifecycle.Module()
	if err != nil {
		return nil, err
	}
	report, err := apply(m, doc)
	if err != nil {
		r.logger.Warn("Preset load failed", "fx_magic", doc.FxMagic, "error", err)
		return report, err
	}
	if len(report.Skipped) > 0 {
		r.logger.Warn("Preset parameters rejected by module", "skipped", report.Skipped)
	}
	r.logger.Info("Preset loaded", "fx_magic", report.FxMagic, "name", report.Name, "applied", report.Applied)
	return report, nil
}
