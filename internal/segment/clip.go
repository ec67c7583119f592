package segment

import "time"

// Clip is a finalized capture ready for encoding. Ownership of the sample
// buffer transfers to the sink when the clip is emitted.
type Clip struct {
	Samples    []float32     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Forced     bool          `json:"forced"`
}

// Sink receives finalized clips for encoding and persistence. Write
// failures are reported to the caller but never retried by the engine;
// the clip buffer has already been handed off.
type Sink interface {
	WriteClip(clip *Clip) error
}
