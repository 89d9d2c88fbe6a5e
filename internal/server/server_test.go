package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/plugin"
	"github.com/audiolibrelab/fxhost/internal/plugin/plugintest"
	"github.com/audiolibrelab/fxhost/internal/preset"
	"github.com/audiolibrelab/fxhost/internal/service"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, m *plugintest.Module) *Server {
	t.Helper()
	dir := t.TempDir()
	modulePath := filepath.Join(dir, "module.bin")
	if err := os.WriteFile(modulePath, []byte{0}, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Module:  config.ModuleConfig{ID: "test", Name: "Test", Path: modulePath},
		Audio:   config.AudioConfig{BlockSize: 64, SampleRate: 48000, Channels: 2},
		Output:  config.OutputConfig{Directory: filepath.Join(dir, "renders"), Format: "wav", Volume: 1},
		Presets: config.PresetsConfig{Directory: filepath.Join(dir, "presets")},
	}
	loader := plugin.LoaderFunc(func(ctx context.Context, path string) (plugin.Module, func(), error) {
		return m, func() {}, nil
	})
	svc := service.NewWithLoader(cfg, "", &bytes.Buffer{}, loader)
	t.Cleanup(func() { svc.Close() })

	s := NewWithService(svc, "", "0")
	s.monitorInterval = 5 * time.Millisecond
	return s
}

func do(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(1))

	rec := do(t, s, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Runtime.State != plugin.StateClosed {
		t.Errorf("Expected CLOSED before open, got %s", resp.Runtime.State)
	}
	if resp.Config == nil || resp.Config.ModuleName != "Test" || resp.Config.BlockSize != 64 {
		t.Errorf("Unexpected resolved config: %+v", resp.Config)
	}

	if rec := do(t, s, http.MethodPost, "/status", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST /status, got %d", rec.Code)
	}
}

func TestHandleOpen(t *testing.T) {
	m := plugintest.Stereo(1)
	s := newTestServer(t, m)

	if rec := do(t, s, http.MethodPost, "/open", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StatusResponse
	json.Unmarshal(do(t, s, http.MethodGet, "/status", nil).Body.Bytes(), &resp)
	if !resp.Runtime.Initialized {
		t.Error("Expected runtime initialized after /open")
	}
}

func TestHandlePreset_RoundTrip(t *testing.T) {
	m := plugintest.Stereo(0x41424344, plugin.CapProgramChunks)
	m.SetState([]byte{1, 2, 3}, "Bright")
	s := newTestServer(t, m)

	rec := do(t, s, http.MethodGet, "/api/preset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".fxp") {
		t.Errorf("Expected .fxp attachment, got %q", rec.Header().Get("Content-Disposition"))
	}
	data := rec.Body.Bytes()
	if string(data[:4]) != preset.ChunkMagic || string(data[8:12]) != preset.MagicProgramChunk {
		t.Fatalf("Unexpected preset header: %q", data[:12])
	}

	rec = do(t, s, http.MethodPost, "/api/preset", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report preset.LoadReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if report.FxMagic != preset.MagicProgramChunk || report.Name != "Bright" {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestHandlePreset_Errors(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(0x41424344))

	if rec := do(t, s, http.MethodPost, "/api/preset", []byte("junk")); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for junk body, got %d", rec.Code)
	}

	other, err := preset.Marshal(&preset.Document{
		ChunkMagic: preset.ChunkMagic,
		FxMagic:    preset.MagicProgramParams,
		Version:    preset.FormatVersion,
		FxID:       preset.EncodeID(0x45464748),
		Count:      1,
		Params:     []float32{0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec := do(t, s, http.MethodPost, "/api/preset", other); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for foreign preset, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/api/preset?bank=1", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501 for bank without chunks, got %d", rec.Code)
	}
}

func TestHandleNote(t *testing.T) {
	m := plugintest.Stereo(1)
	s := newTestServer(t, m)

	rec := do(t, s, http.MethodPost, "/api/midi/note", []byte(`{"note":64,"velocity":90,"on":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events := m.Events()
	if len(events) != 1 || events[0].Data != [4]byte{0x90, 64, 90, 0} {
		t.Errorf("Unexpected events: %+v", events)
	}

	if rec := do(t, s, http.MethodPost, "/api/midi/note", []byte(`{"note":200}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out of range note, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/midi/cc", []byte(`{"controller":1,"value":64}`)); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for control change, got %d", rec.Code)
	}
}

func TestHandleRecording(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(1))

	if rec := do(t, s, http.MethodGet, "/api/recording", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 before the runtime is initialized, got %d", rec.Code)
	}

	do(t, s, http.MethodPost, "/open", nil)
	if rec := do(t, s, http.MethodPost, "/api/recording", []byte(`{"action":"start"}`)); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := s.service.Status().Recording; got != "RECORDING" {
		t.Errorf("Expected RECORDING, got %s", got)
	}

	rec := do(t, s, http.MethodGet, "/api/recording", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("Expected WAV, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")) {
		t.Error("Expected RIFF header")
	}

	if rec := do(t, s, http.MethodPost, "/api/recording", []byte(`{"action":"rewind"}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown action, got %d", rec.Code)
	}
}

func TestHandleRender_Validation(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(1))
	if rec := do(t, s, http.MethodPost, "/api/render", []byte(`{"name":"x"}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without source, got %d", rec.Code)
	}
}

func TestHandleMonitor(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(1))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/monitor"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame MonitorFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if frame.Processed != 0 || len(frame.Left) != 0 {
		t.Errorf("Expected empty first frame before processing, got %+v", frame)
	}
}

func TestHandleIndex_NotFound(t *testing.T) {
	s := newTestServer(t, plugintest.Stereo(1))
	if rec := do(t, s, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for index, got %d", rec.Code)
	}
}
