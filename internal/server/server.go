package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/audiolibrelab/fxhost/internal/audio"
	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/host"
	"github.com/audiolibrelab/fxhost/internal/preset"
	"github.com/audiolibrelab/fxhost/internal/service"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

// maxPresetUpload bounds POST /api/preset bodies.
const maxPresetUpload = 16 << 20

// Server represents the web server for controlling a hosted module
type Server struct {
	service    service.Service
	configFile string
	port       string
	mux        *http.ServeMux

	upgrader        websocket.Upgrader
	monitorInterval time.Duration

	profileMutex  sync.RWMutex
	activeProfile string
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Runtime       host.Status         `json:"runtime"`
	Config        *ResolvedConfigInfo `json:"resolved_config"`
	ActiveProfile string              `json:"active_profile"`
	LastError     string              `json:"last_error,omitempty"`
}

// ResolvedConfigInfo contains configuration information for the UI
type ResolvedConfigInfo struct {
	ModuleID    string  `json:"module_id"`
	ModuleName  string  `json:"module_name"`
	ModulePath  string  `json:"module_path"`
	BlockSize   int     `json:"block_size"`
	SampleRate  int     `json:"sample_rate"`
	Channels    int     `json:"channels"`
	TailWait    float64 `json:"tail_wait_seconds"`
	OutputDir   string  `json:"output_dir"`
	Format      string  `json:"format"`
	PresetsDir  string  `json:"presets_dir"`
	Recording   bool    `json:"recording_enabled"`
	SwapRecords bool    `json:"swap_channels"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NoteRequest is the body of POST /api/midi/note
type NoteRequest struct {
	Note     byte `json:"note"`
	Velocity byte `json:"velocity"`
	On       bool `json:"on"`
}

// ControlChangeRequest is the body of POST /api/midi/cc
type ControlChangeRequest struct {
	Controller byte `json:"controller"`
	Value      byte `json:"value"`
}

// RecordingRequest is the body of POST /api/recording
type RecordingRequest struct {
	Action string `json:"action"` // start, stop, clear
}

// RenderRequest is the body of POST /api/render
type RenderRequest struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Steps  string `json:"steps"`
}

// ProfileSelectRequest is the body of POST /config/select
type ProfileSelectRequest struct {
	Profile string `json:"profile"`
}

// MonitorFrame is one message on /ws/monitor
type MonitorFrame struct {
	Left      []float32 `json:"left"`
	Right     []float32 `json:"right"`
	Processed uint64    `json:"processed_blocks"`
	Recording bool      `json:"recording"`
}

// New creates a new web server instance
func New(configFile string, port string) (*Server, error) {
	cfg, err := config.LoadWithProfile(configFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithService(service.New(cfg, configFile, nil), configFile, port), nil
}

// NewWithService creates a server around an existing service.
func NewWithService(svc service.Service, configFile, port string) *Server {
	s := &Server{
		service:         svc,
		configFile:      configFile,
		port:            port,
		mux:             http.NewServeMux(),
		monitorInterval: 50 * time.Millisecond,
		activeProfile:   getActiveProfileName(configFile),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin
				return origin == "" || origin == "http://"+r.Host
			},
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/open", s.handleOpen)
	s.mux.HandleFunc("/close", s.handleClose)
	s.mux.HandleFunc("/sources", s.handleSources)
	s.mux.HandleFunc("/config/profiles", s.handleProfiles)
	s.mux.HandleFunc("/config/select", s.handleSelectProfile)
	s.mux.HandleFunc("/api/preset", s.handlePreset)
	s.mux.HandleFunc("/api/midi/note", s.handleNote)
	s.mux.HandleFunc("/api/midi/cc", s.handleControlChange)
	s.mux.HandleFunc("/api/recording", s.handleRecording)
	s.mux.HandleFunc("/api/render", s.handleRender)
	s.mux.HandleFunc("/ws/monitor", s.handleMonitor)
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting fxhost Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.mux)
}

// handleIndex serves a minimal landing page listing the API
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>fxhost</title>
</head>
<body>
    <h1>fxhost</h1>
    <h2>API Endpoints:</h2>
    <ul>
        <li>GET /status - Runtime status</li>
        <li>POST /open, POST /close - Open or release the module</li>
        <li>GET /api/preset?bank=1 - Download the current program or bank</li>
        <li>POST /api/preset - Apply a program or bank file</li>
        <li>POST /api/midi/note, POST /api/midi/cc - Send MIDI</li>
        <li>GET /api/recording - Download the recording as WAV</li>
        <li>POST /api/recording - start, stop or clear the recording</li>
        <li>POST /api/render - Render a source file</li>
        <li>GET /ws/monitor - Live output monitor (WebSocket)</li>
    </ul>
</body>
</html>`

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.profileMutex.RLock()
	active := s.activeProfile
	s.profileMutex.RUnlock()

	s.sendJSON(w, http.StatusOK, StatusResponse{
		Runtime:       s.service.Status(),
		Config:        s.getResolvedConfigInfo(),
		ActiveProfile: active,
		LastError:     s.service.GetLastError(),
	})
}

func (s *Server) getResolvedConfigInfo() *ResolvedConfigInfo {
	cfg := s.service.GetConfig()
	if cfg == nil {
		return nil
	}
	return &ResolvedConfigInfo{
		ModuleID:    cfg.Module.ID,
		ModuleName:  cfg.Module.Name,
		ModulePath:  cfg.Module.Path,
		BlockSize:   cfg.Audio.BlockSize,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		TailWait:    cfg.Audio.TailWaitSeconds,
		OutputDir:   cfg.Output.Directory,
		Format:      cfg.Output.Format,
		PresetsDir:  cfg.Presets.Directory,
		Recording:   cfg.Recording.Enabled,
		SwapRecords: cfg.Recording.SwapChannels,
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.service.OpenModule(r.Context()); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "open")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Module opened"})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.service.Close(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "close")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Module released"})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	sources, err := s.service.ListSources()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "list_sources")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"sources":     sources,
		"total_count": len(sources),
	})
}

// handlePreset downloads (GET) or applies (POST) a preset document
func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bank, _ := strconv.ParseBool(r.URL.Query().Get("bank"))
		doc, err := s.service.ExportPreset(bank)
		if err != nil {
			s.sendErrorResponse(w, presetStatus(err), err.Error(), "operation", "save_preset")
			return
		}
		var buf bytes.Buffer
		if err := preset.Write(&buf, doc); err != nil {
			s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "save_preset")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "preset"+doc.Extension()))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes())

	case http.MethodPost:
		doc, err := preset.Read(http.MaxBytesReader(w, r.Body, maxPresetUpload))
		if err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "load_preset")
			return
		}
		report, err := s.service.ImportPreset(doc)
		if err != nil {
			s.sendErrorResponse(w, presetStatus(err), err.Error(), "operation", "load_preset")
			return
		}
		s.sendJSON(w, http.StatusOK, report)

	default:
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func presetStatus(err error) int {
	var mismatch *preset.MismatchError
	var format *preset.FormatError
	switch {
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.As(err, &format):
		return http.StatusBadRequest
	case errors.Is(err, preset.ErrBankUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}
	if req.Note > 127 || req.Velocity > 127 {
		s.sendErrorResponse(w, http.StatusBadRequest, "note and velocity must be 0-127")
		return
	}
	if err := s.service.SendNote(req.Note, req.Velocity, req.On); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "midi_note")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Note sent"})
}

func (s *Server) handleControlChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req ControlChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}
	if req.Controller > 127 || req.Value > 127 {
		s.sendErrorResponse(w, http.StatusBadRequest, "controller and value must be 0-127")
		return
	}
	if err := s.service.SendControlChange(req.Controller, req.Value); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "midi_cc")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Control change sent"})
}

// handleRecording exports (GET) or controls (POST) the recording
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var buf bytes.Buffer
		if err := s.service.ExportRecording(&buf); err != nil {
			s.sendErrorResponse(w, http.StatusConflict, err.Error(), "operation", "export_recording")
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="recording.wav"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes())

	case http.MethodPost:
		var req RecordingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
			return
		}
		switch req.Action {
		case "start":
			s.service.SetRecording(true)
		case "stop":
			s.service.SetRecording(false)
		case "clear":
			s.service.ClearRecording()
		default:
			s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown recording action: %q", req.Action))
			return
		}
		s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording " + req.Action})

	default:
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}
	if req.Source == "" || req.Name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "source and name are required")
		return
	}
	if req.Steps == "" {
		req.Steps = "r"
	}
	if err := s.service.RunPipeline(r.Context(), req.Source, req.Name, req.Steps); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "render", "name", req.Name)
		return
	}
	s.sendJSON(w, http.StatusOK, s.service.GetRenderInfo(req.Name))
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.profileMutex.RLock()
	active := s.activeProfile
	s.profileMutex.RUnlock()

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": s.getAvailableProfiles(),
		"active":   active,
	})
}

func (s *Server) getAvailableProfiles() []string {
	if s.configFile == "" {
		return []string{}
	}
	v := viper.New()
	v.SetConfigFile(s.configFile)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("Failed to read config file for profiles", "error", err)
		return []string{}
	}
	var rootConfig config.RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		slog.Warn("Failed to unmarshal config for profiles", "error", err)
		return []string{}
	}

	profiles := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles
}

func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req ProfileSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "profile is required")
		return
	}

	if err := s.service.LoadProfile(req.Profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "profile", req.Profile)
		return
	}
	if err := config.UpdateActiveConfig(s.configFile, req.Profile); err != nil {
		slog.Warn("Failed to persist active profile", "profile", req.Profile, "error", err)
	}

	s.profileMutex.Lock()
	s.activeProfile = req.Profile
	s.profileMutex.Unlock()

	slog.Info("Profile selected", "profile", req.Profile)
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Profile " + req.Profile + " selected"})
}

// handleMonitor streams the monitoring buffers to a WebSocket client until
// it disconnects.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close()
	slog.Debug("Monitor client connected", "remote", r.RemoteAddr)

	// The reader only exists to notice the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("Monitor client read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.monitorInterval)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second
	var lastProcessed uint64
	first := true
	for {
		select {
		case <-done:
			slog.Debug("Monitor client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			st := s.service.Status()
			if !first && st.ProcessedBlocks == lastProcessed {
				continue
			}
			first = false
			lastProcessed = st.ProcessedBlocks

			left, right := s.service.Monitor()
			frame := MonitorFrame{Left: left, Right: right, Processed: st.ProcessedBlocks, Recording: st.Recording == audio.StatusRecording}
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("Monitor write failed", "error", err)
				return
			}
		}
	}
}

func getActiveProfileName(configFile string) string {
	if configFile == "" {
		return ""
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("Failed to read config file for active profile", "error", err)
		return ""
	}

	var rootConfig config.RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		slog.Warn("Failed to unmarshal config for active profile", "error", err)
		return ""
	}

	if rootConfig.ActiveConfig == "" {
		if _, ok := rootConfig.Configs["default"]; ok {
			return "default"
		}
		return ""
	}

	return rootConfig.ActiveConfig
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	s.sendJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
