package audio

import (
	"testing"
	"time"
)

func block(value float32, n int) Block {
	b := make(Block, n)
	for i := range b {
		b[i] = value
	}
	return b
}

func TestPrerollCapacity(t *testing.T) {
	tests := []struct {
		name       string
		duration   time.Duration
		sampleRate int
		blockSize  int
		want       int
	}{
		{
			// 1024 samples at 44.1kHz is ~23.2ms per block, so one
			// second needs 44 blocks plus the rounding margin.
			name:       "one second at 44.1kHz",
			duration:   time.Second,
			sampleRate: 44100,
			blockSize:  1024,
			want:       48,
		},
		{
			name:       "exact block multiple",
			duration:   time.Second,
			sampleRate: 16000,
			blockSize:  1000,
			want:       16 + prerollMargin,
		},
		{
			name:       "zero duration",
			duration:   0,
			sampleRate: 44100,
			blockSize:  1024,
			want:       prerollMargin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrerollCapacity(tt.duration, tt.sampleRate, tt.blockSize)
			if got != tt.want {
				t.Errorf("Expected capacity %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPreRollPushAndDrain(t *testing.T) {
	p := NewPreRoll(time.Second, 16000, 1000)

	p.Push(block(0.1, 4))
	p.Push(block(0.2, 4))
	p.Push(block(0.3, 4))

	if p.Len() != 3 {
		t.Fatalf("Expected 3 buffered blocks, got %d", p.Len())
	}

	drained := p.Drain()
	if len(drained) != 3 {
		t.Fatalf("Expected 3 drained blocks, got %d", len(drained))
	}
	for i, want := range []float32{0.1, 0.2, 0.3} {
		if drained[i][0] != want {
			t.Errorf("Block %d: expected value %f, got %f", i, want, drained[i][0])
		}
	}
	if p.Len() != 0 {
		t.Errorf("Expected empty ring after drain, got %d blocks", p.Len())
	}
}

func TestPreRollEvictsOldest(t *testing.T) {
	p := NewPreRoll(0, 16000, 1000) // capacity is just the margin
	capacity := p.Cap()

	for i := 0; i < capacity+3; i++ {
		p.Push(block(float32(i), 2))
	}

	if p.Len() != capacity {
		t.Fatalf("Expected ring full at %d blocks, got %d", capacity, p.Len())
	}

	drained := p.Drain()
	// The first 3 pushed blocks were evicted.
	for i, b := range drained {
		want := float32(i + 3)
		if b[0] != want {
			t.Errorf("Block %d: expected value %f, got %f", i, want, b[0])
		}
	}
}

func TestPreRollCopiesBlocks(t *testing.T) {
	p := NewPreRoll(time.Second, 16000, 1000)

	src := block(0.5, 4)
	p.Push(src)
	src[0] = -1.0

	drained := p.Drain()
	if drained[0][0] != 0.5 {
		t.Errorf("Expected buffered block to be independent of the source, got %f", drained[0][0])
	}
}

func TestPreRollResize(t *testing.T) {
	p := NewPreRoll(time.Second, 16000, 1000)

	for i := 0; i < 10; i++ {
		p.Push(block(float32(i), 2))
	}

	// Shrinking keeps the newest blocks.
	p.Resize(4)
	if p.Cap() != 4 {
		t.Fatalf("Expected capacity 4 after resize, got %d", p.Cap())
	}
	if p.Len() != 4 {
		t.Fatalf("Expected 4 blocks kept after shrink, got %d", p.Len())
	}

	drained := p.Drain()
	for i, b := range drained {
		want := float32(i + 6)
		if b[0] != want {
			t.Errorf("Block %d: expected value %f, got %f", i, want, b[0])
		}
	}

	// Growing preserves order across the larger ring.
	p.Resize(8)
	for i := 0; i < 6; i++ {
		p.Push(block(float32(i), 2))
	}
	if p.Len() != 6 {
		t.Errorf("Expected 6 blocks after grow and refill, got %d", p.Len())
	}
}
