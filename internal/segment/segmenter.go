package segment

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mnazzaro/voice-client/internal/metrics"
	"github.com/mnazzaro/voice-client/internal/pipeline"
	"github.com/mnazzaro/voice-client/internal/vad"
)

// Default poll and shutdown tuning, matching the capture cadence comfortably.
const (
	defaultPollTimeout = 100 * time.Millisecond
	defaultStopGrace   = 2 * time.Second
)

// SegmenterConfig contains the speech segmentation parameters.
type SegmenterConfig struct {
	SampleRate      int
	FrameDuration   time.Duration
	PreRollFrames   int           // pre-roll ring capacity
	MaxSilentChunks int           // silence frames tolerated before closing
	PollTimeout     time.Duration // queue poll interval; defaulted if zero
	StopGrace       time.Duration // bounded wait for the consumer to exit
}

func (c *SegmenterConfig) withDefaults() SegmenterConfig {
	out := *c
	if out.PollTimeout <= 0 {
		out.PollTimeout = defaultPollTimeout
	}
	if out.StopGrace <= 0 {
		out.StopGrace = defaultStopGrace
	}
	return out
}

// SegmenterStats is a snapshot of segmenter state for monitoring.
type SegmenterStats struct {
	State         string `json:"state"`
	SegmentsSaved uint64 `json:"segments_saved"`
	ForcedCloses  uint64 `json:"forced_closes"`
	StorageErrors uint64 `json:"storage_errors"`
}

// Segmenter consumes frames from the queue on a dedicated goroutine,
// classifies each, and emits completed speech segments to the sink.
// All segmentation state is owned by that goroutine; only Start, Stop and
// Stats may be called from outside.
type Segmenter struct {
	cfg        SegmenterConfig
	queue      *pipeline.FrameQueue
	classifier vad.Classifier
	suppressor Suppressor // optional
	sink       Sink
	logger     *slog.Logger
	metrics    *metrics.Metrics // optional

	// Consumer-goroutine state.
	triggered    bool
	preroll      *preRoll
	current      *Segment
	silentChunks int
	emptyPolls   int

	// Lifecycle.
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	// Observable counters, read by Stats across goroutines.
	segmentsSaved atomic.Uint64
	forcedCloses  atomic.Uint64
	storageErrors atomic.Uint64
	triggeredFlag atomic.Bool
}

// NewSegmenter creates a segmenter. The suppressor and metrics may be nil.
func NewSegmenter(cfg SegmenterConfig, queue *pipeline.FrameQueue, classifier vad.Classifier,
	suppressor Suppressor, sink Sink, logger *slog.Logger, m *metrics.Metrics) *Segmenter {

	return &Segmenter{
		cfg:        cfg.withDefaults(),
		queue:      queue,
		classifier: classifier,
		suppressor: suppressor,
		sink:       sink,
		logger:     logger,
		metrics:    m,
	}
}

// Start launches the consumer goroutine. Starting twice is an error.
func (s *Segmenter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("segmenter already running")
	}

	s.triggered = false
	s.triggeredFlag.Store(false)
	s.current = nil
	s.silentChunks = 0
	s.emptyPolls = 0
	s.preroll = newPreRoll(s.cfg.PreRollFrames)

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run()

	s.logger.Info("Segmenter started",
		slog.Int("pre_roll_frames", s.cfg.PreRollFrames),
		slog.Int("max_silent_chunks", s.cfg.MaxSilentChunks),
		slog.Duration("frame_duration", s.cfg.FrameDuration),
	)

	return nil
}

// Stop signals the consumer goroutine, waits up to the grace period for it
// to force-close any active segment and exit, and returns. A second Stop is
// a no-op.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)

	select {
	case <-s.done:
	case <-time.After(s.cfg.StopGrace):
		s.logger.Warn("Segmenter did not stop within grace period",
			slog.Duration("grace", s.cfg.StopGrace),
		)
	}

	s.logger.Info("Segmenter stopped",
		slog.Uint64("segments_saved", s.segmentsSaved.Load()),
	)
}

// Stats returns a monitoring snapshot.
func (s *Segmenter) Stats() SegmenterStats {
	state := "idle"
	if s.triggeredFlag.Load() {
		state = "triggered"
	}
	return SegmenterStats{
		State:         state,
		SegmentsSaved: s.segmentsSaved.Load(),
		ForcedCloses:  s.forcedCloses.Load(),
		StorageErrors: s.storageErrors.Load(),
	}
}

// run is the consumer loop. The stop signal is checked once per poll cycle;
// on stop any active segment is force-closed and saved before exiting.
func (s *Segmenter) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			if s.triggered {
				s.logger.Info("Stopping while recording, saving final segment")
				s.closeAndPersist(time.Now())
			}
			return
		default:
		}

		frame, ok := s.queue.Dequeue(s.cfg.PollTimeout)
		if !ok {
			s.onEmptyPoll()
			continue
		}
		s.emptyPolls = 0
		s.handleFrame(frame, time.Now())

		if s.metrics != nil {
			s.metrics.QueueDepth.Set(float64(s.queue.Len()))
		}
	}
}

// onEmptyPoll handles capture stalls: if the queue stays empty for more than
// twice the silence threshold while a segment is active, the capture source
// has likely stopped, so the segment is saved rather than held open
// indefinitely.
func (s *Segmenter) onEmptyPoll() {
	if !s.triggered {
		return
	}

	s.emptyPolls++
	stalled := time.Duration(s.emptyPolls) * s.cfg.PollTimeout
	threshold := time.Duration(s.cfg.MaxSilentChunks) * s.cfg.FrameDuration

	if stalled > 2*threshold {
		s.logger.Warn("Capture appears to have stalled during speech, saving segment",
			slog.Duration("stalled", stalled),
		)
		s.forcedCloses.Add(1)
		if s.metrics != nil {
			s.metrics.ForcedCloses.Inc()
		}
		s.closeAndPersist(time.Now())
		s.emptyPolls = 0
	}
}

// handleFrame processes one frame through suppression, classification and
// the Idle/Triggered state machine.
func (s *Segmenter) handleFrame(frame []byte, now time.Time) {
	if s.suppressor != nil {
		frame = s.suppressor.Suppress(frame)
	}

	isSpeech, err := s.classifier.Classify(frame, s.cfg.SampleRate)
	if err != nil {
		s.logger.Warn("Classifier failed, skipping frame", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.ClassifierErrors.Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.FramesProcessed.Inc()
		if isSpeech {
			s.metrics.SpeechFrames.Inc()
		}
	}

	if !s.triggered {
		if isSpeech {
			s.trigger(frame, now)
		} else {
			s.preroll.Push(frame)
		}
		return
	}

	s.current.Append(frame)
	if isSpeech {
		s.silentChunks = 0
		return
	}

	s.silentChunks++
	if s.silentChunks > s.cfg.MaxSilentChunks {
		// Back-date the end to when speech actually stopped, excluding the
		// silence tail used for hysteresis.
		end := now.Add(-time.Duration(s.silentChunks) * s.cfg.FrameDuration)
		s.closeAndPersist(end)
	}
}

// trigger seeds a new segment from the pre-roll snapshot plus the frame
// that fired the classifier. The start time is back-dated by the seed length
// to estimate when speech actually began.
func (s *Segmenter) trigger(frame []byte, now time.Time) {
	frames := append(s.preroll.Snapshot(), frame)
	start := now.Add(-time.Duration(len(frames)) * s.cfg.FrameDuration)

	s.current = newSegment(frames, start)
	s.triggered = true
	s.triggeredFlag.Store(true)
	s.silentChunks = 0

	s.logger.Info("Speech detected, recording",
		slog.String("segment_id", s.current.ID),
		slog.Time("estimated_start", start),
		slog.Int("seed_frames", len(frames)),
	)
}

// closeAndPersist hands the active segment to the sink and resets to Idle.
// Persist failures are logged and the state machine proceeds regardless; the
// pre-roll ring keeps accumulating from the live stream, not from the closed
// segment.
func (s *Segmenter) closeAndPersist(end time.Time) {
	seg := s.current

	s.current = nil
	s.triggered = false
	s.triggeredFlag.Store(false)
	s.silentChunks = 0

	if seg == nil || len(seg.Frames) == 0 {
		return
	}

	seg.EndTime = end
	if !seg.EndTime.After(seg.StartTime) {
		// Timestamps are estimates; keep the end strictly after the start.
		seg.EndTime = seg.StartTime.Add(time.Duration(len(seg.Frames)) * s.cfg.FrameDuration)
	}

	if err := s.sink.Persist(seg); err != nil {
		s.storageErrors.Add(1)
		if s.metrics != nil {
			s.metrics.StorageFailures.Inc()
		}
		s.logger.Error("Failed to persist segment",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.segmentsSaved.Add(1)
	if s.metrics != nil {
		s.metrics.SegmentsSaved.Inc()
		s.metrics.SegmentDuration.Observe(seg.Duration().Seconds())
		s.metrics.SegmentBytes.Observe(float64(seg.Bytes()))
	}

	s.logger.Info("Segment saved",
		slog.String("segment_id", seg.ID),
		slog.Int("frames", len(seg.Frames)),
		slog.Duration("duration", seg.Duration()),
	)
}
