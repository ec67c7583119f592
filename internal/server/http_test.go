package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/config"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/engine"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/level"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/session"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/storage"
)

// nullSource satisfies the engine source without touching any device.
type nullSource struct{}

func (nullSource) Start(func(samples []float32)) error { return nil }
func (nullSource) Stop() error                         { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	cfg := config.Default()

	meter, err := level.NewMeter(cfg.Detection.SmoothingAlpha, cfg.Detection.LevelFloorDB)
	if err != nil {
		t.Fatalf("Failed to create meter: %v", err)
	}
	seg, err := segment.NewSegmenter(cfg.Audio.SampleRate, cfg.Audio.BlockSize, cfg.Detection.Tuning())
	if err != nil {
		t.Fatalf("Failed to create segmenter: %v", err)
	}
	store, err := storage.NewWriter(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	sessions, err := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("Failed to create session store: %v", err)
	}
	monitor, err := engine.NewMonitor(engine.Config{
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
	}, nullSource{}, store, meter, seg, testLogger(), nil)
	if err != nil {
		t.Fatalf("Failed to create monitor: %v", err)
	}

	srv := NewHTTPServer(cfg.HTTP, testLogger(), cfg, monitor, store, sessions, nil)
	t.Cleanup(func() { monitor.Stop() })
	return srv
}

func doRequest(srv *HTTPServer, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
}

func TestRootEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	if _, ok := body["endpoints"]; !ok {
		t.Error("Expected endpoint documentation in response")
	}

	rec = doRequest(srv, http.MethodGet, "/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown path, got %d", rec.Code)
	}
}

func TestMonitorStartStopEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/monitor/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Starting twice conflicts.
	rec = doRequest(srv, http.MethodPost, "/monitor/start", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for double start, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/monitor/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	// The completed session is recorded.
	if srv.sessions.Len() != 1 {
		t.Errorf("Expected 1 recorded session, got %d", srv.sessions.Len())
	}

	// Stopping twice conflicts.
	rec = doRequest(srv, http.MethodPost, "/monitor/stop", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for double stop, got %d", rec.Code)
	}

	// GET is not allowed on control endpoints.
	rec = doRequest(srv, http.MethodGet, "/monitor/start", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["running"] != false {
		t.Errorf("Expected running false, got %v", body["running"])
	}
	if _, ok := body["detection"]; !ok {
		t.Error("Expected detection state in response")
	}
}

func TestSettingsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var settings settingsPayload
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("Failed to decode settings: %v", err)
	}
	if settings.StartThresholdDB != -45.0 {
		t.Errorf("Expected threshold -45, got %f", settings.StartThresholdDB)
	}

	// Durations are reported in plain units, not nanoseconds.
	if settings.ArmDurationMs != 120 {
		t.Errorf("Expected arm duration 120ms, got %d", settings.ArmDurationMs)
	}
	if settings.HangDurationMs != 400 {
		t.Errorf("Expected hang duration 400ms, got %d", settings.HangDurationMs)
	}
	if settings.MinClipDurationS != 1.0 {
		t.Errorf("Expected min clip duration 1s, got %f", settings.MinClipDurationS)
	}

	// Update with a valid change.
	settings.StartThresholdDB = -40
	settings.HangDurationMs = 500
	payload, _ := json.Marshal(settings)
	rec = doRequest(srv, http.MethodPut, "/settings", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := srv.monitor.Tuning().StartThresholdDB; got != -40 {
		t.Errorf("Expected threshold -40 after update, got %f", got)
	}
	if got := srv.monitor.Tuning().HangDuration; got != 500*time.Millisecond {
		t.Errorf("Expected hang duration 500ms after update, got %v", got)
	}

	// Invalid tuning is rejected and leaves settings unchanged.
	settings.HysteresisGapDB = -1
	payload, _ = json.Marshal(settings)
	rec = doRequest(srv, http.MethodPut, "/settings", payload)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid tuning, got %d", rec.Code)
	}
	if got := srv.monitor.Tuning().HysteresisGapDB; got != 6.0 {
		t.Errorf("Expected hysteresis gap unchanged, got %f", got)
	}

	// Malformed JSON is rejected.
	rec = doRequest(srv, http.MethodPut, "/settings", []byte("{broken"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed payload, got %d", rec.Code)
	}
}

func TestClipsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/clips", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["total_clips"] != float64(0) {
		t.Errorf("Expected no clips, got %v", body["total_clips"])
	}

	// Write a clip through the sink and list it.
	clip := &segment.Clip{
		Samples:    make([]float32, 44100),
		SampleRate: 44100,
		Duration:   time.Second,
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
	}
	if err := srv.store.WriteClip(clip); err != nil {
		t.Fatalf("Failed to write clip: %v", err)
	}

	rec = doRequest(srv, http.MethodGet, "/clips", nil)
	body = decodeJSON(t, rec)
	if body["total_clips"] != float64(1) {
		t.Errorf("Expected 1 clip, got %v", body["total_clips"])
	}
}

func TestDeleteClipEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodDelete, "/clips/missing.wav", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing clip, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodDelete, "/clips/", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty name, got %d", rec.Code)
	}

	clip := &segment.Clip{
		Samples:    make([]float32, 44100),
		SampleRate: 44100,
		Duration:   time.Second,
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
	}
	if err := srv.store.WriteClip(clip); err != nil {
		t.Fatalf("Failed to write clip: %v", err)
	}
	clips, err := srv.store.ListClips()
	if err != nil || len(clips) != 1 {
		t.Fatalf("Expected 1 stored clip, got %d (err: %v)", len(clips), err)
	}

	rec = doRequest(srv, http.MethodDelete, "/clips/"+clips[0].Name, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	start := time.Now().Add(-time.Hour)
	if err := srv.sessions.Append(start, time.Now()); err != nil {
		t.Fatalf("Failed to append session: %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	if body["total_sessions"] != float64(1) {
		t.Errorf("Expected 1 session, got %v", body["total_sessions"])
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeJSON(t, rec)
	audio, ok := body["audio"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected audio section in config response")
	}
	if audio["sample_rate"] != float64(44100) {
		t.Errorf("Expected sample rate 44100, got %v", audio["sample_rate"])
	}
}
