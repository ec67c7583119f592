// Package engine drives the capture pipeline. It decouples the
// real-time audio callback from block processing with a bounded
// single-producer/single-consumer queue, and runs the level meter and
// segmenter on a dedicated consumer goroutine that owns all detection
// state.
package engine
