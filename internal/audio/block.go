package audio

import "time"

// Block is one fixed-size chunk of single-channel PCM samples in the
// range [-1.0, 1.0], as delivered by the capture device. The final block
// of a stream may be shorter than the nominal size.
type Block []float32

// Clone returns an independent copy of the block. Blocks arriving from
// the device callback are only valid for the duration of the callback,
// so anything that retains a block must copy it first.
func (b Block) Clone() Block {
	out := make(Block, len(b))
	copy(out, b)
	return out
}

// Duration returns the play time of the block at the given sample rate.
func (b Block) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b)) / float64(sampleRate) * float64(time.Second))
}

// DurationMs returns the play time of the block in milliseconds.
func (b Block) DurationMs(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(b)) / float64(sampleRate) * 1000.0
}
