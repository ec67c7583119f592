// Package segment implements the capture decision logic: a two-state
// machine with asymmetric thresholds and timing accumulators that decides
// when a clip starts, when it ends, and whether the finished clip is long
// enough to keep. All timing is derived from the sample clock, so the
// behavior is deterministic for a given block sequence.
package segment
