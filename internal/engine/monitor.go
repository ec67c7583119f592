package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NeleBiH/LIno-Sleep-tracker/internal/audio"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/level"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/metrics"
	"github.com/NeleBiH/LIno-Sleep-tracker/internal/segment"
)

var (
	// ErrSourceUnavailable wraps audio-source open/start failures so the
	// host can tell a device problem apart from engine misuse. The engine
	// never retries; backoff, if wanted, is the host's job.
	ErrSourceUnavailable = errors.New("audio source unavailable")

	// ErrAlreadyRunning is returned by Start when monitoring is active.
	ErrAlreadyRunning = errors.New("monitor already running")
)

// Source is the external audio-block producer. Start must return quickly
// and then invoke deliver once per block from the device's own context,
// until Stop is called. The delivered slice is only valid for the
// duration of the call.
type Source interface {
	Start(deliver func(samples []float32)) error
	Stop() error
}

// DefaultQueueDepth bounds the producer/consumer hand-off queue. At 1024
// samples per block and 44.1 kHz this is roughly six seconds of audio.
const DefaultQueueDepth = 256

// Config carries the fixed stream parameters of a Monitor.
type Config struct {
	SampleRate int
	BlockSize  int
	QueueDepth int
}

// Monitor owns one capture pipeline: a block queue fed by the source
// callback and a consumer goroutine running meter and segmenter. The
// producer side never blocks and never touches detection state.
type Monitor struct {
	cfg    Config
	source Source
	sink   segment.Sink
	meter  *level.Meter
	seg    *segment.Segmenter
	logger *slog.Logger
	m      *metrics.Metrics

	queue  chan audio.Block
	stopCh chan struct{}
	doneCh chan struct{}

	running   bool
	startedAt time.Time
	mu        sync.Mutex

	// Counters updated from both producer and consumer contexts.
	blocksReceived  atomic.Uint64
	blocksProcessed atomic.Uint64
	overruns        atomic.Uint64
	sinkFailures    atomic.Uint64
}

// Statistics is a snapshot of monitor counters for the status API.
type Statistics struct {
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	BlocksReceived  uint64    `json:"blocks_received"`
	BlocksProcessed uint64    `json:"blocks_processed"`
	Overruns        uint64    `json:"overruns"`
	SinkFailures    uint64    `json:"sink_failures"`
	QueueSize       int       `json:"queue_size"`
	QueueCapacity   int       `json:"queue_capacity"`
}

// NewMonitor wires a monitor from its collaborators. The metrics handle
// may be nil, e.g. in tests.
func NewMonitor(cfg Config, source Source, sink segment.Sink, meter *level.Meter,
	seg *segment.Segmenter, logger *slog.Logger, m *metrics.Metrics) (*Monitor, error) {

	if source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}

	return &Monitor{
		cfg:    cfg,
		source: source,
		sink:   sink,
		meter:  meter,
		seg:    seg,
		logger: logger,
		m:      m,
	}, nil
}

// Start resets all detection state and begins pulling blocks from the
// source. Source failures are wrapped in ErrSourceUnavailable.
func (mo *Monitor) Start() error {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	if mo.running {
		return ErrAlreadyRunning
	}

	mo.meter.Reset()
	mo.seg.Reset()
	mo.blocksReceived.Store(0)
	mo.blocksProcessed.Store(0)
	mo.overruns.Store(0)
	mo.sinkFailures.Store(0)

	mo.queue = make(chan audio.Block, mo.cfg.QueueDepth)
	mo.stopCh = make(chan struct{})
	mo.doneCh = make(chan struct{})

	if err := mo.source.Start(mo.enqueue); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	mo.running = true
	mo.startedAt = time.Now()
	go mo.run()

	mo.logger.Info("Monitoring started",
		slog.Int("sample_rate", mo.cfg.SampleRate),
		slog.Int("block_size", mo.cfg.BlockSize),
		slog.Int("queue_depth", mo.cfg.QueueDepth),
	)

	return nil
}

// Stop halts the source and force-finalizes any in-progress capture.
// Already-queued blocks are processed first, so the forced finalize sees
// every block the device delivered. Calling Stop while idle is a no-op.
func (mo *Monitor) Stop() error {
	mo.mu.Lock()
	if !mo.running {
		mo.mu.Unlock()
		return nil
	}
	mo.running = false
	stopCh, doneCh := mo.stopCh, mo.doneCh
	mo.mu.Unlock()

	if err := mo.source.Stop(); err != nil {
		mo.logger.Warn("Error stopping audio source", slog.String("error", err.Error()))
	}

	close(stopCh)
	<-doneCh

	mo.logger.Info("Monitoring stopped",
		slog.Uint64("blocks_received", mo.blocksReceived.Load()),
		slog.Uint64("blocks_processed", mo.blocksProcessed.Load()),
		slog.Uint64("overruns", mo.overruns.Load()),
	)

	return nil
}

// Running reports whether monitoring is active.
func (mo *Monitor) Running() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.running
}

// StartedAt returns when the current monitoring session began, or the
// zero time if not running.
func (mo *Monitor) StartedAt() time.Time {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if !mo.running {
		return time.Time{}
	}
	return mo.startedAt
}

// Statistics returns a snapshot of monitor counters.
func (mo *Monitor) Statistics() Statistics {
	mo.mu.Lock()
	running := mo.running
	startedAt := mo.startedAt
	queue := mo.queue
	mo.mu.Unlock()

	stats := Statistics{
		Running:         running,
		BlocksReceived:  mo.blocksReceived.Load(),
		BlocksProcessed: mo.blocksProcessed.Load(),
		Overruns:        mo.overruns.Load(),
		SinkFailures:    mo.sinkFailures.Load(),
	}
	if running {
		stats.StartedAt = startedAt
	}
	if queue != nil {
		stats.QueueSize = len(queue)
		stats.QueueCapacity = cap(queue)
	}
	return stats
}

// Tuning returns the segmenter's current parameters.
func (mo *Monitor) Tuning() segment.Tuning {
	return mo.seg.Tuning()
}

// UpdateTuning validates and applies new detection parameters. The
// change takes effect on the next processed block.
func (mo *Monitor) UpdateTuning(t segment.Tuning) error {
	return mo.seg.UpdateTuning(t)
}

// Level returns a snapshot of the meter state.
func (mo *Monitor) Level() level.MeterStats {
	return mo.meter.Stats()
}

// SegmentState returns the segmenter's current detection state.
func (mo *Monitor) SegmentState() segment.State {
	return mo.seg.State()
}

// SegmentStats returns the segmenter's capture counters.
func (mo *Monitor) SegmentStats() segment.Stats {
	return mo.seg.Stats()
}

// enqueue is invoked from the device callback. It copies the block and
// performs a non-blocking hand-off; when the queue is full the oldest
// queued block is dropped so the callback never stalls the device.
func (mo *Monitor) enqueue(samples []float32) {
	block := audio.Block(samples).Clone()
	mo.blocksReceived.Add(1)

	select {
	case mo.queue <- block:
		return
	default:
	}

	// Queue full: drop the oldest block to make room, count the overrun.
	select {
	case <-mo.queue:
	default:
	}
	mo.overruns.Add(1)
	mo.m.RecordQueueOverrun()

	select {
	case mo.queue <- block:
	default:
		// Consumer gone; nothing more to do from the device context.
	}
}

// run is the consumer loop. It owns the meter, the segmenter and both
// audio buffers; no other goroutine touches them while it lives.
func (mo *Monitor) run() {
	defer close(mo.doneCh)

	for {
		select {
		case block := <-mo.queue:
			mo.process(block)
		case <-mo.stopCh:
			mo.drainAndFinish()
			return
		}
	}
}

// drainAndFinish processes everything still queued, then force-finalizes
// any in-progress capture.
func (mo *Monitor) drainAndFinish() {
	for {
		select {
		case block := <-mo.queue:
			mo.process(block)
		default:
			before := mo.seg.Stats()
			clip := mo.seg.Finish()
			if mo.seg.Stats().ClipsDiscarded > before.ClipsDiscarded {
				mo.m.RecordClipDiscarded()
			}
			if clip != nil {
				mo.emit(clip)
			}
			return
		}
	}
}

func (mo *Monitor) process(block audio.Block) {
	lvl := mo.meter.Observe(block)
	mo.blocksProcessed.Add(1)
	mo.m.RecordBlockProcessed(lvl.SmoothedDB, len(mo.queue))

	before := mo.seg.Stats()
	clip := mo.seg.Process(block, lvl)
	after := mo.seg.Stats()
	if after.CapturesStarted > before.CapturesStarted {
		mo.m.RecordCaptureStarted()
	}
	if after.ClipsDiscarded > before.ClipsDiscarded {
		mo.m.RecordClipDiscarded()
	}
	if clip != nil {
		mo.emit(clip)
	}
}

// emit hands a finished clip to the sink. The engine's buffers are
// already clean, so a sink failure is logged and counted but does not
// disturb detection state.
func (mo *Monitor) emit(clip *segment.Clip) {
	if err := mo.sink.WriteClip(clip); err != nil {
		mo.sinkFailures.Add(1)
		mo.m.RecordClipWriteFailure()
		mo.logger.Error("Failed to write clip",
			slog.Float64("duration", clip.Duration.Seconds()),
			slog.Bool("forced", clip.Forced),
			slog.String("error", err.Error()),
		)
		return
	}

	mo.m.RecordClipWritten(clip.Duration.Seconds(), len(clip.Samples))
	mo.logger.Info("Clip written",
		slog.Float64("duration", clip.Duration.Seconds()),
		slog.Int("samples", len(clip.Samples)),
		slog.Bool("forced", clip.Forced),
	)
}
