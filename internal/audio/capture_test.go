package audio

import (
	"testing"
	"time"
)

func TestCaptureSeedAndAppend(t *testing.T) {
	c := NewCapture()

	c.Seed([]Block{block(0.1, 4), block(0.2, 4)})
	if c.Samples() != 8 {
		t.Fatalf("Expected 8 samples after seed, got %d", c.Samples())
	}

	c.Append(block(0.3, 4))
	if c.Samples() != 12 {
		t.Fatalf("Expected 12 samples after append, got %d", c.Samples())
	}

	samples := c.Drain()
	if len(samples) != 12 {
		t.Fatalf("Expected 12 drained samples, got %d", len(samples))
	}
	if samples[0] != 0.1 || samples[4] != 0.2 || samples[8] != 0.3 {
		t.Errorf("Drained samples out of order: %f %f %f", samples[0], samples[4], samples[8])
	}
	if c.Samples() != 0 {
		t.Errorf("Expected empty accumulator after drain, got %d samples", c.Samples())
	}
}

func TestCaptureAppendCopies(t *testing.T) {
	c := NewCapture()

	src := block(0.5, 4)
	c.Append(src)
	src[0] = -1.0

	samples := c.Drain()
	if samples[0] != 0.5 {
		t.Errorf("Expected appended block to be independent of the source, got %f", samples[0])
	}
}

func TestCaptureCountsSamplesNotBlocks(t *testing.T) {
	c := NewCapture()

	c.Append(block(0.1, 1024))
	c.Append(block(0.2, 100)) // short final block

	if c.Samples() != 1124 {
		t.Errorf("Expected 1124 samples, got %d", c.Samples())
	}
}

func TestCaptureDuration(t *testing.T) {
	c := NewCapture()
	c.Append(block(0.1, 44100))

	if got := c.Duration(44100); got != time.Second {
		t.Errorf("Expected 1s duration, got %v", got)
	}
}

func TestCaptureReset(t *testing.T) {
	c := NewCapture()
	c.Seed([]Block{block(0.1, 4)})
	c.Reset()

	if c.Samples() != 0 {
		t.Errorf("Expected empty accumulator after reset, got %d samples", c.Samples())
	}
	if samples := c.Drain(); len(samples) != 0 {
		t.Errorf("Expected no samples after reset, got %d", len(samples))
	}
}
