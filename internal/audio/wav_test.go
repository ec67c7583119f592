package audio

import (
	"math"
	"testing"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.99, -0.99, 0}

	data, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", wavHeaderSize+len(samples)*2, len(data))
	}

	decoded, sampleRate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if sampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", sampleRate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	// 16-bit quantization bounds the round-trip error.
	for i := range samples {
		if math.Abs(float64(decoded[i]-samples[i])) > 1.0/32767.0 {
			t.Errorf("Sample %d: expected %f, got %f", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeWAVClipsOutOfRange(t *testing.T) {
	samples := []float32{2.0, -2.0}

	data, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	decoded, _, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if decoded[0] < 0.99 || decoded[0] > 1.0 {
		t.Errorf("Expected positive overdrive clipped to full scale, got %f", decoded[0])
	}
	if decoded[1] > -0.99 || decoded[1] < -1.0 {
		t.Errorf("Expected negative overdrive clipped to full scale, got %f", decoded[1])
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 44100); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV([]float32{0.1}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVDuration(t *testing.T) {
	samples := make([]float32, 44100*2) // two seconds
	data, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	// Duration is read from the header alone.
	duration, err := WAVDuration(data[:wavHeaderSize])
	if err != nil {
		t.Fatalf("Failed to read duration: %v", err)
	}
	if math.Abs(duration-2.0) > 0.001 {
		t.Errorf("Expected 2.0s duration, got %f", duration)
	}
}

func TestDecodeWAVInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "too short", data: make([]byte, 10)},
		{name: "garbage header", data: make([]byte, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestDecodeWAVTruncatedBody(t *testing.T) {
	samples := make([]float32, 1000)
	data, err := EncodeWAV(samples, 44100)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	if _, _, err := DecodeWAV(data[:len(data)-100]); err == nil {
		t.Error("Expected error for truncated body")
	}
}
