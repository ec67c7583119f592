// Package storage persists finished clips as 16-bit PCM WAV files and
// manages the recordings directory.
package storage
