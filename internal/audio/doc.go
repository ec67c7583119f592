// Package audio provides the sample-buffer building blocks of the capture
// engine: fixed-size float32 blocks, the bounded pre-roll ring that preserves
// audio from before a trigger, the capture accumulator that grows one clip at
// a time, and WAV encoding of finished clips.
package audio
