package segment

import (
	"fmt"
	"time"
)

// Tuning holds every detection parameter that may change while the
// stream is running. The segmenter snapshots it once per block, so an
// update takes effect on the next block without restarting the stream.
type Tuning struct {
	// StartThresholdDB is the smoothed level at or above which signal
	// counts toward arming a capture.
	StartThresholdDB float64

	// HysteresisGapDB is subtracted from the start threshold to form the
	// lower release threshold, preventing start/stop flapping.
	HysteresisGapDB float64

	// ArmDuration is how long the smoothed level must stay above the
	// start threshold before a capture begins.
	ArmDuration time.Duration

	// HangDuration is how long the smoothed level must stay below the
	// release threshold before a capture ends.
	HangDuration time.Duration

	// PrerollDuration is the lookback window included at the front of
	// every clip.
	PrerollDuration time.Duration

	// MinClipDuration rejects clips shorter than this unless finalization
	// was forced.
	MinClipDuration time.Duration

	// MaxClipDuration hard-stops a capture regardless of signal level.
	// Zero means unlimited.
	MaxClipDuration time.Duration

	// WriteShortOnStop controls whether a forced stop writes a clip that
	// is shorter than MinClipDuration.
	WriteShortOnStop bool
}

// Validate checks the tuning parameters against their allowed ranges.
func (t Tuning) Validate() error {
	if t.StartThresholdDB < -60 || t.StartThresholdDB > 0 {
		return fmt.Errorf("start_threshold_db must be between -60 and 0, got %f", t.StartThresholdDB)
	}
	if t.HysteresisGapDB <= 0 {
		return fmt.Errorf("hysteresis_gap_db must be positive, got %f", t.HysteresisGapDB)
	}
	if t.ArmDuration <= 0 {
		return fmt.Errorf("arm_duration must be positive, got %v", t.ArmDuration)
	}
	if t.HangDuration <= 0 {
		return fmt.Errorf("hang_duration must be positive, got %v", t.HangDuration)
	}
	if t.PrerollDuration < 0 {
		return fmt.Errorf("preroll_duration cannot be negative, got %v", t.PrerollDuration)
	}
	if t.MinClipDuration < time.Second {
		return fmt.Errorf("min_clip_duration must be at least 1s, got %v", t.MinClipDuration)
	}
	if t.MaxClipDuration < 0 {
		return fmt.Errorf("max_clip_duration cannot be negative, got %v", t.MaxClipDuration)
	}
	if t.MaxClipDuration > 0 && t.MaxClipDuration < t.MinClipDuration {
		return fmt.Errorf("max_clip_duration (%v) must be 0 or at least min_clip_duration (%v)",
			t.MaxClipDuration, t.MinClipDuration)
	}
	return nil
}

// StopThresholdDB returns the lower release threshold.
func (t Tuning) StopThresholdDB() float64 {
	return t.StartThresholdDB - t.HysteresisGapDB
}
