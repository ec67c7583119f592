package level

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// eps keeps the RMS and the logarithm finite for all-zero blocks.
const eps = 1e-8

// DefaultAlpha is the default exponential smoothing factor.
const DefaultAlpha = 0.4

// DefaultFloorDB is the level the smoothed estimate starts from, chosen
// well below any real microphone noise floor.
const DefaultFloorDB = -90.0

// Sample is the loudness estimate derived from one audio block.
type Sample struct {
	InstantDB  float64 `json:"instant_db"`
	SmoothedDB float64 `json:"smoothed_db"`
}

// Meter computes per-block RMS loudness and maintains the exponential
// moving average carried across blocks. Observe is driven by the engine's
// consumer goroutine; the read accessors are safe to call from other
// goroutines (the HTTP status endpoint reads the live level).
type Meter struct {
	alpha   float64
	floorDB float64

	smoothedDB     float64
	lastInstantDB  float64
	blocksObserved uint64
	lastObserved   time.Time

	mu sync.RWMutex
}

// MeterStats is a snapshot of the meter state for monitoring.
type MeterStats struct {
	InstantDB      float64   `json:"instant_db"`
	SmoothedDB     float64   `json:"smoothed_db"`
	BlocksObserved uint64    `json:"blocks_observed"`
	LastObserved   time.Time `json:"last_observed"`
}

// NewMeter creates a meter with the given smoothing factor and start floor.
func NewMeter(alpha, floorDB float64) (*Meter, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in (0, 1], got %f", alpha)
	}
	if floorDB >= 0 {
		return nil, fmt.Errorf("floor must be negative dBFS, got %f", floorDB)
	}
	return &Meter{
		alpha:         alpha,
		floorDB:       floorDB,
		smoothedDB:    floorDB,
		lastInstantDB: floorDB,
	}, nil
}

// Observe computes the loudness of one block and folds it into the
// smoothed estimate. Empty and all-zero blocks produce a finite
// near-silence level rather than an error.
func (m *Meter) Observe(samples []float32) Sample {
	var meanSquare float64
	if len(samples) > 0 {
		var sum float64
		for _, s := range samples {
			sum += float64(s) * float64(s)
		}
		meanSquare = sum / float64(len(samples))
	}

	rms := math.Sqrt(meanSquare + eps)
	instant := 20.0 * math.Log10(rms+eps)

	m.mu.Lock()
	m.smoothedDB = m.alpha*instant + (1.0-m.alpha)*m.smoothedDB
	m.lastInstantDB = instant
	m.blocksObserved++
	m.lastObserved = time.Now()
	sample := Sample{InstantDB: instant, SmoothedDB: m.smoothedDB}
	m.mu.Unlock()

	return sample
}

// Reset restores the smoothed level to the start floor and clears stats.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.smoothedDB = m.floorDB
	m.lastInstantDB = m.floorDB
	m.blocksObserved = 0
	m.lastObserved = time.Time{}
}

// Current returns the latest smoothed level in dBFS.
func (m *Meter) Current() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smoothedDB
}

// Stats returns a snapshot of the meter state.
func (m *Meter) Stats() MeterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MeterStats{
		InstantDB:      m.lastInstantDB,
		SmoothedDB:     m.smoothedDB,
		BlocksObserved: m.blocksObserved,
		LastObserved:   m.lastObserved,
	}
}
