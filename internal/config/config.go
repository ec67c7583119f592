// Package config loads and validates the tracker's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
)

// Config represents the complete service configuration.
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Detection DetectionConfig `yaml:"detection"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AudioConfig describes the input device format.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	BlockSize  int `yaml:"block_size"`
}

// DetectionConfig holds the level-meter and segmentation parameters.
type DetectionConfig struct {
	StartThresholdDB  float64 `yaml:"start_threshold_db"`
	HysteresisGapDB   float64 `yaml:"hysteresis_gap_db"`
	ArmDurationMs     int     `yaml:"arm_duration_ms"`
	HangDurationMs    int     `yaml:"hang_duration_ms"`
	PrerollDurationMs int     `yaml:"preroll_duration_ms"`
	MinClipDurationS  float64 `yaml:"min_clip_duration_s"`
	MaxClipDurationS  float64 `yaml:"max_clip_duration_s"`
	SmoothingAlpha    float64 `yaml:"smoothing_alpha"`
	LevelFloorDB      float64 `yaml:"level_floor_db"`
	WriteShortOnStop  bool    `yaml:"write_short_on_stop"`
}

// EngineConfig controls the block hand-off between the capture
// callback and the processing goroutine.
type EngineConfig struct {
	QueueDepth int  `yaml:"queue_depth"`
	AutoStart  bool `yaml:"auto_start"`
}

// StorageConfig names the output locations on disk.
type StorageConfig struct {
	OutputDir   string `yaml:"output_dir"`
	SessionFile string `yaml:"session_file"`
}

// HTTPConfig configures the control API server.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the audio configuration.
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", a.SampleRate)
	}
	if a.BlockSize < 64 || a.BlockSize > 65536 {
		return fmt.Errorf("block_size must be between 64 and 65536, got %d", a.BlockSize)
	}
	return nil
}

// Validate checks the detection configuration.
func (d *DetectionConfig) Validate() error {
	if d.SmoothingAlpha <= 0 || d.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", d.SmoothingAlpha)
	}
	if d.LevelFloorDB >= 0 {
		return fmt.Errorf("level_floor_db must be negative, got %f", d.LevelFloorDB)
	}
	return d.Tuning().Validate()
}

// Validate checks the engine configuration.
func (e *EngineConfig) Validate() error {
	if e.QueueDepth < 1 || e.QueueDepth > 65536 {
		return fmt.Errorf("queue_depth must be between 1 and 65536, got %d", e.QueueDepth)
	}
	return nil
}

// Validate checks the storage configuration.
func (s *StorageConfig) Validate() error {
	if s.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if s.SessionFile == "" {
		return fmt.Errorf("session_file cannot be empty")
	}
	return nil
}

// Validate checks the HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}
	return nil
}

// Validate checks the logging configuration.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}
	switch l.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("output must be stdout or stderr, got %q", l.Output)
	}
	return nil
}

// Tuning converts the detection section into segmenter parameters.
func (d *DetectionConfig) Tuning() segment.Tuning {
	return segment.Tuning{
		StartThresholdDB: d.StartThresholdDB,
		HysteresisGapDB:  d.HysteresisGapDB,
		ArmDuration:      time.Duration(d.ArmDurationMs) * time.Millisecond,
		HangDuration:     time.Duration(d.HangDurationMs) * time.Millisecond,
		PrerollDuration:  time.Duration(d.PrerollDurationMs) * time.Millisecond,
		MinClipDuration:  time.Duration(d.MinClipDurationS * float64(time.Second)),
		MaxClipDuration:  time.Duration(d.MaxClipDurationS * float64(time.Second)),
		WriteShortOnStop: d.WriteShortOnStop,
	}
}

// ListenAddress returns the host:port the HTTP server binds to.
func (h *HTTPConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			BlockSize:  1024,
		},
		Detection: DetectionConfig{
			StartThresholdDB:  -45.0,
			HysteresisGapDB:   6.0,
			ArmDurationMs:     120,
			HangDurationMs:    400,
			PrerollDurationMs: 1000,
			MinClipDurationS:  1.0,
			MaxClipDurationS:  30.0,
			SmoothingAlpha:    0.4,
			LevelFloorDB:      -90.0,
			WriteShortOnStop:  true,
		},
		Engine: EngineConfig{
			QueueDepth: 256,
			AutoStart:  true,
		},
		Storage: StorageConfig{
			OutputDir:   "recordings",
			SessionFile: "sessions.json",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
