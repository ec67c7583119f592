package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures mono float32 audio from the default input device
// and delivers it in fixed-size blocks.
type Microphone struct {
	sampleRate int
	blockSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	pending []float32
	deliver func(samples []float32)
}

// NewMicrophone creates a microphone source. The device is not opened
// until Start is called.
func NewMicrophone(sampleRate, blockSize int, logger *slog.Logger) (*Microphone, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		logger:     logger,
	}, nil
}

// Start opens the default capture device and begins delivering blocks.
func (m *Microphone) Start(deliver func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("microphone already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("Audio backend", slog.String("message", message))
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.blockSize)
	deviceConfig.Alsa.NoMMap = 1

	m.deliver = deliver
	m.pending = m.pending[:0]

	callbacks := malgo.DeviceCallbacks{
		Data: m.onFrames,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.ctx = ctx
	m.device = device
	m.logger.Info("Microphone started",
		slog.Int("sample_rate", m.sampleRate),
		slog.Int("block_size", m.blockSize),
	)
	return nil
}

// Stop closes the capture device. It is safe to call when not running.
// The device teardown happens outside the lock: Uninit waits for the
// data callback to return, and the callback takes the same lock.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	device := m.device
	ctx := m.ctx
	m.device = nil
	m.ctx = nil
	m.deliver = nil
	m.pending = nil
	m.mu.Unlock()

	if device == nil {
		return nil
	}

	device.Uninit()
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}

	m.logger.Info("Microphone stopped")
	return nil
}

// onFrames runs on the audio backend's thread. It decodes the raw
// float32 frames, accumulates them and flushes whole blocks.
func (m *Microphone) onFrames(_, input []byte, frameCount uint32) {
	m.mu.Lock()
	deliver := m.deliver
	if deliver == nil {
		m.mu.Unlock()
		return
	}

	for i := uint32(0); i < frameCount; i++ {
		bits := binary.LittleEndian.Uint32(input[i*4 : i*4+4])
		m.pending = append(m.pending, math.Float32frombits(bits))
	}

	var blocks [][]float32
	for len(m.pending) >= m.blockSize {
		block := make([]float32, m.blockSize)
		copy(block, m.pending[:m.blockSize])
		m.pending = m.pending[:copy(m.pending, m.pending[m.blockSize:])]
		blocks = append(blocks, block)
	}
	m.mu.Unlock()

	// Deliver outside the lock so Stop cannot deadlock against a
	// callback in flight.
	for _, block := range blocks {
		deliver(block)
	}
}
