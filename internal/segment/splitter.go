package segment

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mnazzaro/voice-client/internal/metrics"
	"github.com/mnazzaro/voice-client/internal/pipeline"
)

// SplitterConfig contains the duration-mode parameters.
type SplitterConfig struct {
	FrameDuration   time.Duration
	TargetFrames    int           // frames per chunk, ceil(target / frame duration)
	PollTimeout     time.Duration // defaulted if zero
	StopGrace       time.Duration // defaulted if zero
}

func (c *SplitterConfig) withDefaults() SplitterConfig {
	out := *c
	if out.PollTimeout <= 0 {
		out.PollTimeout = defaultPollTimeout
	}
	if out.StopGrace <= 0 {
		out.StopGrace = defaultStopGrace
	}
	return out
}

// SplitterStats is a snapshot of splitter state for monitoring.
type SplitterStats struct {
	ChunksSaved    uint64 `json:"chunks_saved"`
	BufferedFrames int    `json:"buffered_frames"`
	StorageErrors  uint64 `json:"storage_errors"`
}

// Splitter is the duration-mode consumer: it batches frames into chunks of a
// fixed frame count regardless of speech content. Duration accounting is by
// frame counting, not wall-clock polling, so chunk length is deterministic
// even under scheduling jitter. Mutually exclusive with the Segmenter.
type Splitter struct {
	cfg        SplitterConfig
	queue      *pipeline.FrameQueue
	suppressor Suppressor // optional
	sink       Sink
	logger     *slog.Logger
	metrics    *metrics.Metrics // optional

	// Consumer-goroutine state.
	current *Segment

	// Lifecycle.
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	chunksSaved    atomic.Uint64
	storageErrors  atomic.Uint64
	bufferedFrames atomic.Int64
}

// NewSplitter creates a duration-mode splitter. Suppressor and metrics may
// be nil.
func NewSplitter(cfg SplitterConfig, queue *pipeline.FrameQueue, suppressor Suppressor,
	sink Sink, logger *slog.Logger, m *metrics.Metrics) *Splitter {

	return &Splitter{
		cfg:        cfg.withDefaults(),
		queue:      queue,
		suppressor: suppressor,
		sink:       sink,
		logger:     logger,
		metrics:    m,
	}
}

// Start launches the consumer goroutine. Starting twice is an error.
func (sp *Splitter) Start() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.running {
		return fmt.Errorf("splitter already running")
	}
	if sp.cfg.TargetFrames < 1 {
		return fmt.Errorf("target frames must be at least 1, got %d", sp.cfg.TargetFrames)
	}

	sp.current = nil
	sp.bufferedFrames.Store(0)
	sp.stop = make(chan struct{})
	sp.done = make(chan struct{})
	sp.running = true

	go sp.run()

	sp.logger.Info("Duration splitter started",
		slog.Int("target_frames", sp.cfg.TargetFrames),
		slog.Duration("frame_duration", sp.cfg.FrameDuration),
	)

	return nil
}

// Stop signals the consumer, waits up to the grace period for it to flush
// any partial chunk and exit. A second Stop is a no-op.
func (sp *Splitter) Stop() {
	sp.mu.Lock()
	if !sp.running {
		sp.mu.Unlock()
		return
	}
	sp.running = false
	sp.mu.Unlock()

	close(sp.stop)

	select {
	case <-sp.done:
	case <-time.After(sp.cfg.StopGrace):
		sp.logger.Warn("Splitter did not stop within grace period",
			slog.Duration("grace", sp.cfg.StopGrace),
		)
	}

	sp.logger.Info("Duration splitter stopped",
		slog.Uint64("chunks_saved", sp.chunksSaved.Load()),
	)
}

// Stats returns a monitoring snapshot.
func (sp *Splitter) Stats() SplitterStats {
	return SplitterStats{
		ChunksSaved:    sp.chunksSaved.Load(),
		BufferedFrames: int(sp.bufferedFrames.Load()),
		StorageErrors:  sp.storageErrors.Load(),
	}
}

func (sp *Splitter) run() {
	defer close(sp.done)

	for {
		select {
		case <-sp.stop:
			if sp.current != nil && len(sp.current.Frames) > 0 {
				sp.logger.Info("Stopping, flushing partial chunk",
					slog.Int("frames", len(sp.current.Frames)),
				)
				sp.closeAndPersist(time.Now())
			}
			return
		default:
		}

		frame, ok := sp.queue.Dequeue(sp.cfg.PollTimeout)
		if !ok {
			continue
		}
		sp.handleFrame(frame, time.Now())

		if sp.metrics != nil {
			sp.metrics.QueueDepth.Set(float64(sp.queue.Len()))
		}
	}
}

// handleFrame appends the frame to the current chunk, closing it once the
// target frame count is reached.
func (sp *Splitter) handleFrame(frame []byte, now time.Time) {
	if sp.suppressor != nil {
		frame = sp.suppressor.Suppress(frame)
	}

	if sp.current == nil {
		sp.current = newSegment(nil, now)
		sp.logger.Debug("Starting new chunk",
			slog.String("segment_id", sp.current.ID),
			slog.Time("start", now),
		)
	}

	sp.current.Append(frame)
	sp.bufferedFrames.Store(int64(len(sp.current.Frames)))

	if sp.metrics != nil {
		sp.metrics.FramesProcessed.Inc()
	}

	if len(sp.current.Frames) >= sp.cfg.TargetFrames {
		sp.closeAndPersist(now)
	}
}

func (sp *Splitter) closeAndPersist(end time.Time) {
	seg := sp.current
	sp.current = nil
	sp.bufferedFrames.Store(0)

	if seg == nil || len(seg.Frames) == 0 {
		return
	}

	seg.EndTime = end
	if !seg.EndTime.After(seg.StartTime) {
		seg.EndTime = seg.StartTime.Add(time.Duration(len(seg.Frames)) * sp.cfg.FrameDuration)
	}

	if err := sp.sink.Persist(seg); err != nil {
		sp.storageErrors.Add(1)
		if sp.metrics != nil {
			sp.metrics.StorageFailures.Inc()
		}
		sp.logger.Error("Failed to persist chunk",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	sp.chunksSaved.Add(1)
	if sp.metrics != nil {
		sp.metrics.SegmentsSaved.Inc()
		sp.metrics.SegmentDuration.Observe(seg.Duration().Seconds())
		sp.metrics.SegmentBytes.Observe(float64(seg.Bytes()))
	}

	sp.logger.Info("Chunk saved",
		slog.String("segment_id", seg.ID),
		slog.Int("frames", len(seg.Frames)),
		slog.Duration("duration", seg.Duration()),
	)
}
