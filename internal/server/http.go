package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/config"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/engine"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/metrics"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/session"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/storage"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	monitor  *engine.Monitor
	store    *storage.Writer
	sessions *session.Store
	metrics  *metrics.Metrics

	// Server state
	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, monitor *engine.Monitor, store *storage.Writer,
	sessions *session.Store, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		monitor:   monitor,
		store:     store,
		sessions:  sessions,
		metrics:   m,
		startTime: time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Monitoring control endpoints
	mux.HandleFunc("/monitor/start", h.withMetrics("/monitor/start", h.handleMonitorStart))
	mux.HandleFunc("/monitor/stop", h.withMetrics("/monitor/stop", h.handleMonitorStop))

	// Status and statistics
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))

	// Detection settings (read and live update)
	mux.HandleFunc("/settings", h.withMetrics("/settings", h.handleSettings))

	// Stored clips
	mux.HandleFunc("/clips", h.withMetrics("/clips", h.handleClips))
	mux.HandleFunc("/clips/", h.withMetrics("/clips/{name}", h.handleClipDetail))

	// Session history
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	stats := h.monitor.Statistics()
	clips, bytes := h.store.Stats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "sleep-tracker",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"engine": map[string]interface{}{
				"running":          h.monitor.Running(),
				"blocks_received":  stats.BlocksReceived,
				"blocks_processed": stats.BlocksProcessed,
				"queue_overruns":   stats.Overruns,
			},
			"storage": map[string]interface{}{
				"status":        "running",
				"clips_written": clips,
				"bytes_written": bytes,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleMonitorStart implements the /monitor/start endpoint
func (h *HTTPServer) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.monitor.Start(); err != nil {
		if err == engine.ErrAlreadyRunning {
			http.Error(w, "Monitoring already running", http.StatusConflict)
			return
		}
		h.logger.Error("Failed to start monitoring", slog.String("error", err.Error()))
		http.Error(w, "Failed to start monitoring", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "started",
		"timestamp": time.Now().UTC(),
	})
}

// handleMonitorStop implements the /monitor/stop endpoint
func (h *HTTPServer) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.monitor.Running() {
		http.Error(w, "Monitoring not running", http.StatusConflict)
		return
	}

	started := h.monitor.StartedAt()
	h.monitor.Stop()

	ended := time.Now()
	if !started.IsZero() {
		if err := h.sessions.Append(started, ended); err != nil {
			h.logger.Error("Failed to record session", slog.String("error", err.Error()))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "stopped",
		"timestamp": ended.UTC(),
	})
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.monitor.Statistics()
	uptime := time.Since(h.startTime)

	status := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"running":   h.monitor.Running(),
		"engine":    stats,
		"level":     h.monitor.Level(),
		"detection": map[string]interface{}{
			"state":    h.monitor.SegmentState().String(),
			"counters": h.monitor.SegmentStats(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// settingsPayload is the wire form of the detection tuning. Durations
// travel as milliseconds and seconds rather than time.Duration
// nanoseconds so clients can read and write them directly.
type settingsPayload struct {
	StartThresholdDB  float64 `json:"start_threshold_db"`
	HysteresisGapDB   float64 `json:"hysteresis_gap_db"`
	ArmDurationMs     int64   `json:"arm_duration_ms"`
	HangDurationMs    int64   `json:"hang_duration_ms"`
	PrerollDurationMs int64   `json:"preroll_duration_ms"`
	MinClipDurationS  float64 `json:"min_clip_duration_s"`
	MaxClipDurationS  float64 `json:"max_clip_duration_s"`
	WriteShortOnStop  bool    `json:"write_short_on_stop"`
}

func settingsFromTuning(t segment.Tuning) settingsPayload {
	return settingsPayload{
		StartThresholdDB:  t.StartThresholdDB,
		HysteresisGapDB:   t.HysteresisGapDB,
		ArmDurationMs:     t.ArmDuration.Milliseconds(),
		HangDurationMs:    t.HangDuration.Milliseconds(),
		PrerollDurationMs: t.PrerollDuration.Milliseconds(),
		MinClipDurationS:  t.MinClipDuration.Seconds(),
		MaxClipDurationS:  t.MaxClipDuration.Seconds(),
		WriteShortOnStop:  t.WriteShortOnStop,
	}
}

func (p settingsPayload) tuning() segment.Tuning {
	return segment.Tuning{
		StartThresholdDB: p.StartThresholdDB,
		HysteresisGapDB:  p.HysteresisGapDB,
		ArmDuration:      time.Duration(p.ArmDurationMs) * time.Millisecond,
		HangDuration:     time.Duration(p.HangDurationMs) * time.Millisecond,
		PrerollDuration:  time.Duration(p.PrerollDurationMs) * time.Millisecond,
		MinClipDuration:  time.Duration(p.MinClipDurationS * float64(time.Second)),
		MaxClipDuration:  time.Duration(p.MaxClipDurationS * float64(time.Second)),
		WriteShortOnStop: p.WriteShortOnStop,
	}
}

// handleSettings implements the /settings endpoint. GET returns the
// current detection tuning, PUT replaces it with immediate effect.
func (h *HTTPServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settingsFromTuning(h.monitor.Tuning()))

	case http.MethodPut:
		var payload settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "Invalid settings payload", http.StatusBadRequest)
			return
		}
		tuning := payload.tuning()
		if err := h.monitor.UpdateTuning(tuning); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Info("Detection settings updated",
			slog.Float64("start_threshold_db", tuning.StartThresholdDB),
			slog.Float64("hysteresis_gap_db", tuning.HysteresisGapDB),
		)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settingsFromTuning(tuning))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClips implements the /clips endpoint
func (h *HTTPServer) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clips, err := h.store.ListClips()
	if err != nil {
		h.logger.Error("Failed to list clips", slog.String("error", err.Error()))
		http.Error(w, "Failed to list clips", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_clips": len(clips),
		"timestamp":   time.Now().UTC(),
		"clips":       clips,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleClipDetail implements the /clips/{name} endpoint
func (h *HTTPServer) handleClipDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Path[len("/clips/"):]
	if name == "" {
		http.Error(w, "Clip name required", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteClip(name); err != nil {
		http.Error(w, "Clip not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "deleted",
		"name":      name,
		"timestamp": time.Now().UTC(),
	})
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := h.sessions.All()

	response := map[string]interface{}{
		"total_sessions": len(records),
		"timestamp":      time.Now().UTC(),
		"sessions":       records,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"block_size":  h.config.Audio.BlockSize,
		},
		"detection": map[string]interface{}{
			"start_threshold_db":  h.config.Detection.StartThresholdDB,
			"hysteresis_gap_db":   h.config.Detection.HysteresisGapDB,
			"arm_duration_ms":     h.config.Detection.ArmDurationMs,
			"hang_duration_ms":    h.config.Detection.HangDurationMs,
			"preroll_duration_ms": h.config.Detection.PrerollDurationMs,
			"min_clip_duration_s": h.config.Detection.MinClipDurationS,
			"max_clip_duration_s": h.config.Detection.MaxClipDurationS,
		},
		"engine": map[string]interface{}{
			"queue_depth": h.config.Engine.QueueDepth,
			"auto_start":  h.config.Engine.AutoStart,
		},
		"storage": map[string]interface{}{
			"output_dir":   h.config.Storage.OutputDir,
			"session_file": h.config.Storage.SessionFile,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Sleep Audio Tracker",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                "API documentation",
			"GET /health":          "Service health check",
			"POST /monitor/start":  "Start audio monitoring",
			"POST /monitor/stop":   "Stop audio monitoring",
			"GET /status":          "Engine status and statistics",
			"GET /settings":        "Current detection settings",
			"PUT /settings":        "Update detection settings",
			"GET /clips":           "List stored clips",
			"DELETE /clips/{name}": "Delete a stored clip",
			"GET /sessions":        "Monitoring session history",
			"GET /config":          "Get service configuration",
			"GET /metrics":         "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
