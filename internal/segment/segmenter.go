package segment

import (
	"fmt"
	"sync"
	"time"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/audio"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/level"
)

// State is the capture state of the segmenter.
type State int

const (
	StateIdle State = iota
	StateCapturing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Segmenter turns a stream of blocks and their loudness samples into
// delimited clips. Process must be called from a single goroutine, in
// block arrival order; UpdateTuning, State and Stats may be called
// concurrently with it.
type Segmenter struct {
	sampleRate int
	blockSize  int

	tuning   Tuning
	tuningMu sync.RWMutex

	// mu guards everything below: the state machine, both audio
	// buffers and the counters. Process writes under it, the
	// monitoring accessors snapshot under it.
	mu      sync.RWMutex
	state   State
	aboveMs float64
	belowMs float64

	preroll *audio.PreRoll
	capture *audio.Capture

	captureStartedAt time.Time

	capturesStarted uint64
	clipsEmitted    uint64
	clipsDiscarded  uint64
}

// Stats is a snapshot of segmenter counters for monitoring.
type Stats struct {
	State           string `json:"state"`
	CapturesStarted uint64 `json:"captures_started"`
	ClipsEmitted    uint64 `json:"clips_emitted"`
	ClipsDiscarded  uint64 `json:"clips_discarded"`
	CaptureSamples  int    `json:"capture_samples"`
	PrerollBlocks   int    `json:"preroll_blocks"`
}

// NewSegmenter creates a segmenter for the given stream format and
// initial tuning.
func NewSegmenter(sampleRate, blockSize int, tuning Tuning) (*Segmenter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}

	return &Segmenter{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		tuning:     tuning,
		state:      StateIdle,
		preroll:    audio.NewPreRoll(tuning.PrerollDuration, sampleRate, blockSize),
		capture:    audio.NewCapture(),
	}, nil
}

// UpdateTuning validates and swaps the detection parameters. The new
// values apply from the next processed block.
func (s *Segmenter) UpdateTuning(tuning Tuning) error {
	if err := tuning.Validate(); err != nil {
		return err
	}

	s.tuningMu.Lock()
	s.tuning = tuning
	s.tuningMu.Unlock()
	return nil
}

// Tuning returns the current detection parameters.
func (s *Segmenter) Tuning() Tuning {
	s.tuningMu.RLock()
	defer s.tuningMu.RUnlock()
	return s.tuning
}

// Process advances the state machine by one block. It returns a finalized
// clip when this block ended a capture, or nil.
func (s *Segmenter) Process(block audio.Block, lvl level.Sample) *Clip {
	tuning := s.Tuning()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Apply a pre-roll window change before the block is buffered.
	if want := audio.PrerollCapacity(tuning.PrerollDuration, s.sampleRate, s.blockSize); want != s.preroll.Cap() {
		s.preroll.Resize(want)
	}

	blockMs := block.DurationMs(s.sampleRate)
	if lvl.SmoothedDB >= tuning.StartThresholdDB {
		s.aboveMs += blockMs
		s.belowMs = 0
	} else {
		s.belowMs += blockMs
		s.aboveMs = 0
	}

	switch s.state {
	case StateIdle:
		s.preroll.Push(block)
		if s.aboveMs >= float64(tuning.ArmDuration.Milliseconds()) {
			s.startCapture()
		}

	case StateCapturing:
		s.capture.Append(block)

		hang := lvl.SmoothedDB < tuning.StopThresholdDB() &&
			s.belowMs >= float64(tuning.HangDuration.Milliseconds())
		full := tuning.MaxClipDuration > 0 &&
			s.capture.Duration(s.sampleRate) >= tuning.MaxClipDuration
		if hang || full {
			return s.finalize(tuning, false)
		}
	}

	return nil
}

// Finish force-finalizes any in-progress capture. It is a no-op while
// idle, so calling it on an already stopped stream emits nothing.
func (s *Segmenter) Finish() *Clip {
	tuning := s.Tuning()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturing {
		return nil
	}
	return s.finalize(tuning, true)
}

// Reset returns the segmenter to its initial idle state, dropping any
// buffered audio without emitting a clip.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.aboveMs = 0
	s.belowMs = 0
	s.preroll.Drain()
	s.capture.Reset()
	s.captureStartedAt = time.Time{}
}

// State returns the current capture state.
func (s *Segmenter) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a snapshot of segmenter counters.
func (s *Segmenter) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		State:           s.state.String(),
		CapturesStarted: s.capturesStarted,
		ClipsEmitted:    s.clipsEmitted,
		ClipsDiscarded:  s.clipsDiscarded,
		CaptureSamples:  s.capture.Samples(),
		PrerollBlocks:   s.preroll.Len(),
	}
}

// startCapture seeds a new capture from the pre-roll window. The arming
// block was already pushed to the ring, so it enters the clip exactly once.
func (s *Segmenter) startCapture() {
	s.capture.Seed(s.preroll.Drain())
	s.state = StateCapturing
	s.aboveMs = 0
	s.belowMs = 0
	s.captureStartedAt = time.Now()
	s.capturesStarted++
}

// finalize drains the capture buffer, applies the minimum-length policy
// and returns the resulting clip, or nil when the capture is discarded.
// The segmenter is back in the idle state either way.
func (s *Segmenter) finalize(tuning Tuning, forced bool) *Clip {
	samples := s.capture.Drain()
	startedAt := s.captureStartedAt

	s.state = StateIdle
	s.aboveMs = 0
	s.belowMs = 0
	s.captureStartedAt = time.Time{}

	if len(samples) == 0 {
		return nil
	}

	duration := time.Duration(float64(len(samples)) / float64(s.sampleRate) * float64(time.Second))
	tooShort := duration < tuning.MinClipDuration
	if tooShort && (!forced || !tuning.WriteShortOnStop) {
		s.clipsDiscarded++
		return nil
	}

	s.clipsEmitted++

	return &Clip{
		Samples:    samples,
		SampleRate: s.sampleRate,
		Duration:   duration,
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
		Forced:     forced,
	}
}
