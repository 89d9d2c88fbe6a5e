package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/fxhost/internal/audio"
	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/host"
	"github.com/audiolibrelab/fxhost/internal/midi"
	"github.com/audiolibrelab/fxhost/internal/mix"
	"github.com/audiolibrelab/fxhost/internal/play"
	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/preset"
)

// Service is the control plane shared by the CLI and the web server.
type Service interface {
	// Module operations
	OpenModule(ctx context.Context) error
	Close() error
	Status() host.Status
	Monitor() (left, right []float32)

	// Rendering operations
	Render(ctx context.Context, sourcePath, name string) (*RenderResult, error)
	Mix(name string) error
	MixWithVolume(name string, volume float64) error
	Play(name string) error
	RunPipeline(ctx context.Context, sourcePath, name, steps string) error

	// MIDI operations
	SendNote(note, velocity byte, on bool) error
	SendControlChange(controller, value byte) error

	// Preset operations
	SavePreset(path string, bank bool) (string, error)
	LoadPreset(path string) (*preset.LoadReport, error)
	ExportPreset(bank bool) (*preset.Document, error)
	ImportPreset(doc *preset.Document) (*preset.LoadReport, error)

	// Recording operations
	SetRecording(enabled bool)
	ClearRecording()
	ExportRecording(w io.Writer) error

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	GetRenderInfo(name string) *RenderInfo
	ListSources() ([]SourceInfo, error)
	GetLastError() string
}

// RenderResult describes a finished render step.
type RenderResult struct {
	Name       string        `json:"name"`
	Source     string        `json:"source"`
	OutputFile string        `json:"output_file"`
	Blocks     int           `json:"blocks"`
	Frames     int           `json:"frames"`
	Elapsed    time.Duration `json:"elapsed"`
	Suppressed uint64        `json:"suppressed_errors"`
}

// RenderInfo contains file path information for a render
type RenderInfo struct {
	RenderWAV   string `json:"render_wav"`
	OutputMixed string `json:"output_mixed"`
	CleanName   string `json:"clean_name"`
}

// SourceInfo describes an input file in the sources directory
type SourceInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	Extension    string    `json:"extension"`
	Valid        bool      `json:"valid"`
}

// FxHostService is the main service implementation
type FxHostService struct {
	cfg        *config.Config
	configFile string
	loader     plugin.Loader
	logger     *slog.Logger

	runtimeMutex sync.Mutex
	runtime      *host.Runtime
	opened       bool

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service that starts module binaries as child processes.
func New(cfg *config.Config, configFile string, logWriter io.Writer) Service {
	logger := newLogger(logWriter)
	return NewWithLoader(cfg, configFile, logWriter, plugin.NewLoader(cfg.Module.StartTimeout, logger))
}

// NewWithLoader creates a service that opens modules through loader.
func NewWithLoader(cfg *config.Config, configFile string, logWriter io.Writer, loader plugin.Loader) *FxHostService {
	s := &FxHostService{
		cfg:        cfg,
		configFile: configFile,
		loader:     loader,
		logger:     newLogger(logWriter),
	}
	s.runtime = s.newRuntime()
	return s
}

func newLogger(logWriter io.Writer) *slog.Logger {
	if logWriter == nil {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(logWriter, nil))
}

func (s *FxHostService) newRuntime() *host.Runtime {
	return host.New(host.Options{
		Loader:               s.loader,
		Logger:               s.logger,
		TailWait:             s.cfg.Audio.TailWait(),
		SwapRecordedChannels: s.cfg.Recording.SwapChannels,
	})
}

// OpenModule loads the configured module, sizes the pipeline and applies the
// configured startup preset. It is a no-op once the module is open.
func (s *FxHostService) OpenModule(ctx context.Context) error {
	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	return s.openLocked(ctx)
}

func (s *FxHostService) openLocked(ctx context.Context) error {
	if s.opened {
		return nil
	}
	if s.cfg.Module.Path == "" {
		return s.fail(errors.New("no module configured, set module.ref in the profile or use --module"))
	}

	slog.Debug("Service.OpenModule called", "module", s.cfg.Module.Path)
	if err := s.runtime.Open(ctx, s.cfg.Module.Path); err != nil {
		return s.fail(fmt.Errorf("failed to open module: %w", err))
	}
	a := s.cfg.Audio
	if err := s.runtime.Init(a.BlockSize, float32(a.SampleRate), a.Channels); err != nil {
		s.runtime.Release()
		return s.fail(fmt.Errorf("failed to initialize module: %w", err))
	}
	s.runtime.SetRecording(s.cfg.Recording.Enabled)
	s.opened = true

	if s.cfg.Module.Preset != "" {
		if _, err := s.loadPreset(s.runtime, s.cfg.Module.Preset); err != nil {
			return s.fail(fmt.Errorf("failed to apply startup preset: %w", err))
		}
	}

	s.clearLastError()
	return nil
}

// Close releases the module. The service can be reopened afterwards.
func (s *FxHostService) Close() error {
	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	return s.closeLocked()
}

func (s *FxHostService) closeLocked() error {
	if !s.opened {
		return nil
	}
	s.opened = false
	err := s.runtime.Release()
	s.runtime = s.newRuntime()
	return err
}

func (s *FxHostService) Status() host.Status {
	return s.current().Status()
}

func (s *FxHostService) Monitor() (left, right []float32) {
	return s.current().Monitor()
}

func (s *FxHostService) current() *host.Runtime {
	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	return s.runtime
}

// Render streams sourcePath through the module and writes the output
// recording as <name>.wav in the output directory.
func (s *FxHostService) Render(ctx context.Context, sourcePath, name string) (*RenderResult, error) {
	s.clearLastError()
	rt, cfg, err := s.live(ctx)
	if err != nil {
		return nil, err
	}

	a := cfg.Audio
	src, err := audio.OpenSource(sourcePath, a.SampleRate, a.Channels)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to open source: %w", err))
	}
	if src.SampleRate() != a.SampleRate {
		slog.Warn("Source sample rate differs from processing rate", "source", sourcePath, "source_rate", src.SampleRate(), "rate", a.SampleRate)
	}
	if err := rt.AttachSource(src); err != nil {
		src.Close()
		return nil, s.fail(fmt.Errorf("failed to attach source: %w", err))
	}

	rt.ClearRecording()
	rt.SetRecording(true)
	defer rt.SetRecording(cfg.Recording.Enabled)

	blocks, err := rt.Render(ctx, a.BlockSize*a.Channels)
	if err != nil {
		return nil, s.fail(fmt.Errorf("render failed after %d blocks: %w", blocks, err))
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return nil, s.fail(fmt.Errorf("failed to create output directory: %w", err))
	}
	outputFile := mix.RenderPath(cfg, name)
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to create render file: %w", err))
	}
	if err := rt.ExportRecording(f); err != nil {
		f.Close()
		return nil, s.fail(fmt.Errorf("failed to write render: %w", err))
	}
	if err := f.Close(); err != nil {
		return nil, s.fail(fmt.Errorf("failed to close render file: %w", err))
	}

	st := rt.Status()
	result := &RenderResult{
		Name:       name,
		Source:     sourcePath,
		OutputFile: outputFile,
		Blocks:     blocks,
		Frames:     st.RecordedFrames,
		Elapsed:    st.SourceElapsed,
		Suppressed: st.SuppressedErrors,
	}
	slog.Info("Render saved", "file", outputFile, "blocks", blocks, "frames", result.Frames)
	return result, nil
}

// Mix encodes a render using configuration defaults
func (s *FxHostService) Mix(name string) error {
	return s.record(mix.New(s.snapshot()).Mix(name))
}

func (s *FxHostService) MixWithVolume(name string, volume float64) error {
	return s.record(mix.New(s.snapshot()).MixWithVolume(name, volume))
}

// Play plays the mixed audio file
func (s *FxHostService) Play(name string) error {
	return s.record(play.New(s.snapshot()).Play(name))
}

// RunPipeline executes a sequence of operations (r=render, m=mix, p=play)
func (s *FxHostService) RunPipeline(ctx context.Context, sourcePath, name, steps string) error {
	for _, step := range steps {
		switch step {
		case 'r':
			if _, err := s.Render(ctx, sourcePath, name); err != nil {
				return fmt.Errorf("pipeline render failed: %w", err)
			}
		case 'm':
			if err := s.Mix(name); err != nil {
				return fmt.Errorf("pipeline mix failed: %w", err)
			}
		case 'p':
			if err := s.Play(name); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}
		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=render, m=mix, p=play)", step)
		}
	}
	return nil
}

// SendNote sends a note on (or off) to the module, opening it if needed.
func (s *FxHostService) SendNote(note, velocity byte, on bool) error {
	rt, _, err := s.live(context.Background())
	if err != nil {
		return err
	}
	if on {
		return s.record(rt.SendMidiNote(midi.StatusNoteOn, note, velocity))
	}
	return s.record(rt.SendNoteOff(note))
}

func (s *FxHostService) SendControlChange(controller, value byte) error {
	rt, _, err := s.live(context.Background())
	if err != nil {
		return err
	}
	return s.record(rt.SendControlChange(controller, value))
}

// SavePreset captures the module state into path. An empty path or a
// directory gets a generated file name in the presets directory.
func (s *FxHostService) SavePreset(path string, bank bool) (string, error) {
	doc, err := s.ExportPreset(bank)
	if err != nil {
		return "", err
	}

	path = s.presetPath(path, doc)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", s.fail(fmt.Errorf("failed to create presets directory: %w", err))
	}
	if err := preset.SaveFile(path, doc); err != nil {
		return "", s.fail(err)
	}
	slog.Info("Preset saved", "file", path, "magic", doc.FxMagic, "fx_id", doc.FxID)
	return path, nil
}

func (s *FxHostService) presetPath(path string, doc *preset.Document) string {
	if path == "" {
		path = s.snapshot().Presets.Directory
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		stem := mix.CleanFileName(doc.Name)
		if stem == "" {
			stem = "preset"
		}
		return filepath.Join(path, fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), doc.Extension()))
	}
	if filepath.Ext(path) == "" {
		return path + doc.Extension()
	}
	return path
}

// LoadPreset applies a program or bank file, dispatching on its magic.
func (s *FxHostService) LoadPreset(path string) (*preset.LoadReport, error) {
	rt, _, err := s.live(context.Background())
	if err != nil {
		return nil, err
	}
	return s.loadPreset(rt, path)
}

func (s *FxHostService) loadPreset(rt *host.Runtime, path string) (*preset.LoadReport, error) {
	doc, err := preset.LoadFile(path)
	if err != nil {
		return nil, s.fail(err)
	}
	report, err := s.apply(rt, doc)
	if err != nil {
		return nil, err
	}
	slog.Info("Preset loaded", "file", path, "magic", report.FxMagic, "applied", report.Applied, "skipped", report.Skipped)
	return report, nil
}

func (s *FxHostService) ExportPreset(bank bool) (*preset.Document, error) {
	rt, _, err := s.live(context.Background())
	if err != nil {
		return nil, err
	}
	var doc *preset.Document
	if bank {
		doc, err = rt.SaveBank()
	} else {
		doc, err = rt.SaveProgram()
	}
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to capture preset: %w", err))
	}
	return doc, nil
}

func (s *FxHostService) ImportPreset(doc *preset.Document) (*preset.LoadReport, error) {
	rt, _, err := s.live(context.Background())
	if err != nil {
		return nil, err
	}
	return s.apply(rt, doc)
}

func (s *FxHostService) apply(rt *host.Runtime, doc *preset.Document) (*preset.LoadReport, error) {
	var (
		report *preset.LoadReport
		err    error
	)
	if doc.IsBank() {
		report, err = rt.LoadBank(doc)
	} else {
		report, err = rt.LoadProgram(doc)
	}
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to apply preset: %w", err))
	}
	return report, nil
}

func (s *FxHostService) SetRecording(enabled bool) {
	s.current().SetRecording(enabled)
}

func (s *FxHostService) ClearRecording() {
	s.current().ClearRecording()
}

func (s *FxHostService) ExportRecording(w io.Writer) error {
	return s.record(s.current().ExportRecording(w))
}

// live opens the module when needed and returns the live runtime with the
// configuration it was opened under.
func (s *FxHostService) live(ctx context.Context) (*host.Runtime, *config.Config, error) {
	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	if err := s.openLocked(ctx); err != nil {
		return nil, nil, err
	}
	return s.runtime, s.cfg, nil
}

// snapshot returns the active configuration. LoadProfile swaps the pointer
// and never mutates a published Config.
func (s *FxHostService) snapshot() *config.Config {
	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	return s.cfg
}

// LoadProfile switches to another configuration profile. The open module,
// if any, is released; the next operation opens the new profile's module.
func (s *FxHostService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.runtimeMutex.Lock()
	defer s.runtimeMutex.Unlock()
	if err := s.closeLocked(); err != nil {
		slog.Warn("Failed to release module while switching profile", "error", err)
	}
	s.cfg = newCfg
	s.runtime = s.newRuntime()
	return nil
}

// GetConfig returns the current configuration
func (s *FxHostService) GetConfig() *config.Config {
	return s.snapshot()
}

// GetRenderInfo returns file path information for a render
func (s *FxHostService) GetRenderInfo(name string) *RenderInfo {
	cfg := s.snapshot()
	return &RenderInfo{
		RenderWAV:   mix.RenderPath(cfg, name),
		OutputMixed: mix.OutputPath(cfg, name),
		CleanName:   mix.CleanFileName(name),
	}
}

// ListSources returns the audio files in the sources directory, newest first.
func (s *FxHostService) ListSources() ([]SourceInfo, error) {
	dir := s.sourcesDirectory()
	paths, err := audio.ListSources(dir, config.GetSupportedAudioExtensions(s.configFile))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources in %s: %w", dir, err)
	}

	sources := make([]SourceInfo, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		sources = append(sources, SourceInfo{
			Name:         filepath.Base(path),
			Path:         path,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			Extension:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Valid:        audio.ValidateSource(path) == nil,
		})
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

func (s *FxHostService) sourcesDirectory() string {
	cfg := s.snapshot()
	if cfg.Output.SourcesDirectory != "" {
		return cfg.Output.SourcesDirectory
	}
	return filepath.Join(cfg.Output.Directory, "sources")
}

// GetLastError returns the last error message
func (s *FxHostService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *FxHostService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
	if err != "" {
		slog.Debug("Service error recorded", "error", err)
	}
}

func (s *FxHostService) clearLastError() {
	s.setLastError("")
}

// fail records err as the last error and returns it.
func (s *FxHostService) fail(err error) error {
	s.setLastError(err.Error())
	return err
}

// record is fail for results that may be nil.
func (s *FxHostService) record(err error) error {
	if err != nil {
		return s.fail(err)
	}
	return nil
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
