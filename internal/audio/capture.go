package audio

import "time"

// Capture accumulates the blocks of one in-progress clip. It is created
// empty, seeded from the pre-roll ring when a capture starts, appended to
// on every subsequent block, and drained (or reset) exactly once when the
// clip is finalized. Owned exclusively by the engine's consumer goroutine.
type Capture struct {
	blocks  []Block
	samples int
}

// NewCapture returns an empty capture accumulator.
func NewCapture() *Capture {
	return &Capture{}
}

// Seed replaces the accumulator contents with the given blocks, typically
// the drained pre-roll window. The blocks are retained as-is; callers hand
// over ownership.
func (c *Capture) Seed(blocks []Block) {
	c.blocks = blocks
	c.samples = 0
	for _, b := range blocks {
		c.samples += len(b)
	}
}

// Append adds a copy of the block and advances the sample counter. The
// counter tracks samples rather than blocks because a stream's final
// block may be shorter than the nominal size.
func (c *Capture) Append(b Block) {
	c.blocks = append(c.blocks, b.Clone())
	c.samples += len(b)
}

// Samples returns the number of accumulated samples.
func (c *Capture) Samples() int {
	return c.samples
}

// Duration returns the accumulated audio length at the given sample rate.
func (c *Capture) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.samples) / float64(sampleRate) * float64(time.Second))
}

// Drain concatenates all buffered blocks into one contiguous sample
// sequence and resets the accumulator.
func (c *Capture) Drain() []float32 {
	out := make([]float32, 0, c.samples)
	for _, b := range c.blocks {
		out = append(out, b...)
	}
	c.Reset()
	return out
}

// Reset discards any buffered blocks and counters.
func (c *Capture) Reset() {
	c.blocks = nil
	c.samples = 0
}
