package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/capture"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/config"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/engine"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/level"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/metrics"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/server"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/session"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/storage"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sleep-tracker"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("block_size", cfg.Audio.BlockSize),
		slog.Float64("start_threshold_db", cfg.Detection.StartThresholdDB),
		slog.Float64("hysteresis_gap_db", cfg.Detection.HysteresisGapDB),
		slog.Int("preroll_duration_ms", cfg.Detection.PrerollDurationMs),
		slog.Float64("min_clip_duration_s", cfg.Detection.MinClipDurationS),
		slog.Float64("max_clip_duration_s", cfg.Detection.MaxClipDurationS),
		slog.String("output_dir", cfg.Storage.OutputDir),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the level meter and segmenter from configuration
	meter, err := level.NewMeter(cfg.Detection.SmoothingAlpha, cfg.Detection.LevelFloorDB)
	if err != nil {
		logger.Error("Failed to create level meter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	seg, err := segment.NewSegmenter(cfg.Audio.SampleRate, cfg.Audio.BlockSize, cfg.Detection.Tuning())
	if err != nil {
		logger.Error("Failed to create segmenter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize clip storage
	store, err := storage.NewWriter(cfg.Storage.OutputDir, logger)
	if err != nil {
		logger.Error("Failed to initialize clip storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Clip storage initialized", slog.String("output_dir", store.Dir()))

	// Load session history
	sessions, err := session.NewStore(cfg.Storage.SessionFile)
	if err != nil {
		logger.Error("Failed to load session history", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session history loaded", slog.Int("sessions", sessions.Len()))

	// Initialize microphone source
	mic, err := capture.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.BlockSize, logger)
	if err != nil {
		logger.Error("Failed to create microphone source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize the monitoring engine
	monitor, err := engine.NewMonitor(engine.Config{
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
		QueueDepth: cfg.Engine.QueueDepth,
	}, mic, store, meter, seg, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create monitor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Monitoring engine initialized", slog.Int("queue_depth", cfg.Engine.QueueDepth))

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, monitor, store, sessions, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", cfg.HTTP.ListenAddress()),
		)
	}

	// Start monitoring (if configured to start immediately)
	if cfg.Engine.AutoStart {
		if err := monitor.Start(); err != nil {
			logger.Error("Failed to start monitoring", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Monitoring started")
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop monitoring (finalizes any in-progress capture)
	sessionStarted := monitor.StartedAt()
	monitor.Stop()

	// Record the session that was still running
	if !sessionStarted.IsZero() {
		if err := sessions.Append(sessionStarted, time.Now()); err != nil {
			logger.Error("Failed to record session", slog.String("error", err.Error()))
		}
	}

	// Get final statistics
	stats := monitor.Statistics()
	segStats := seg.Stats()
	logger.Info("Final engine statistics",
		slog.Uint64("blocks_received", stats.BlocksReceived),
		slog.Uint64("blocks_processed", stats.BlocksProcessed),
		slog.Uint64("queue_overruns", stats.Overruns),
		slog.Uint64("captures_started", segStats.CapturesStarted),
		slog.Uint64("clips_emitted", segStats.ClipsEmitted),
		slog.Uint64("clips_discarded", segStats.ClipsDiscarded),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
