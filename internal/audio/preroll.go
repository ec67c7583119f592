package audio

import (
	"math"
	"time"
)

// prerollMargin is the number of extra slots kept beyond the exact
// block count needed to cover the configured pre-roll window, so that
// rounding at block boundaries never shortens the lookback audio.
const prerollMargin = 4

// PreRoll is a bounded FIFO ring of the most recent audio blocks. It is
// continuously fed while the engine is idle so that a clip can include
// the audio leading up to its trigger. It is owned exclusively by the
// engine's consumer goroutine and is not safe for concurrent use.
type PreRoll struct {
	blocks   []Block
	head     int // index of the oldest block
	size     int
	capacity int
}

// PrerollCapacity computes the ring capacity needed to hold at least
// the given duration of audio at the given sample rate and block size.
func PrerollCapacity(duration time.Duration, sampleRate, blockSize int) int {
	if duration <= 0 || sampleRate <= 0 || blockSize <= 0 {
		return prerollMargin
	}
	blockMs := float64(blockSize) / float64(sampleRate) * 1000.0
	n := int(math.Ceil(float64(duration.Milliseconds()) / blockMs))
	return n + prerollMargin
}

// NewPreRoll creates a pre-roll ring sized for the given lookback window.
func NewPreRoll(duration time.Duration, sampleRate, blockSize int) *PreRoll {
	capacity := PrerollCapacity(duration, sampleRate, blockSize)
	return &PreRoll{
		blocks:   make([]Block, capacity),
		capacity: capacity,
	}
}

// Push appends a copy of the block, evicting the oldest block when the
// ring is at capacity.
func (p *PreRoll) Push(b Block) {
	if p.size == p.capacity {
		// Overwrite the oldest slot.
		p.blocks[p.head] = b.Clone()
		p.head = (p.head + 1) % p.capacity
		return
	}
	p.blocks[(p.head+p.size)%p.capacity] = b.Clone()
	p.size++
}

// Drain returns all buffered blocks in arrival order and empties the ring.
func (p *PreRoll) Drain() []Block {
	out := make([]Block, 0, p.size)
	for i := 0; i < p.size; i++ {
		idx := (p.head + i) % p.capacity
		out = append(out, p.blocks[idx])
		p.blocks[idx] = nil
	}
	p.head = 0
	p.size = 0
	return out
}

// Resize changes the ring capacity, keeping the newest blocks when the
// capacity shrinks. Called when the pre-roll duration changes at runtime.
func (p *PreRoll) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == p.capacity {
		return
	}
	kept := p.Drain()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}
	p.blocks = make([]Block, capacity)
	p.capacity = capacity
	copy(p.blocks, kept)
	p.size = len(kept)
}

// Len returns the number of buffered blocks.
func (p *PreRoll) Len() int {
	return p.size
}

// Cap returns the ring capacity in blocks.
func (p *PreRoll) Cap() int {
	return p.capacity
}
