package capture

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mnazzaro/voice-client/internal/metrics"
	"github.com/mnazzaro/voice-client/internal/pipeline"
)

// FileSource replays a raw 16-bit mono PCM file into the queue at frame
// cadence, for offline reprocessing and testing without an audio device.
// A trailing partial frame is discarded. The source stops by itself at EOF.
type FileSource struct {
	path          string
	frameBytes    int
	frameDuration time.Duration

	queue   *pipeline.FrameQueue
	logger  *slog.Logger
	metrics *metrics.Metrics // optional

	file *os.File
	stop chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewFileSource creates a file replay source.
func NewFileSource(path string, frameBytes int, frameDuration time.Duration,
	queue *pipeline.FrameQueue, logger *slog.Logger, m *metrics.Metrics) *FileSource {

	return &FileSource{
		path:          path,
		frameBytes:    frameBytes,
		frameDuration: frameDuration,
		queue:         queue,
		logger:        logger,
		metrics:       m,
	}
}

// Start opens the file and begins replay.
func (s *FileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("file source already running")
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", s.path, err)
	}

	s.file = file
	s.stop = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.replayLoop()

	s.logger.Info("File capture source started",
		slog.String("path", s.path),
		slog.Duration("frame_duration", s.frameDuration),
	)

	return nil
}

// Stop ends replay and closes the file.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()

	if err := s.file.Close(); err != nil {
		s.logger.Warn("Error closing capture file", slog.String("error", err.Error()))
	}

	s.logger.Info("File capture source stopped")
	return nil
}

func (s *FileSource) replayLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		frame := make([]byte, s.frameBytes)
		if _, err := io.ReadFull(s.file, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				s.logger.Info("Capture file exhausted")
			} else {
				s.logger.Warn("Capture file read error", slog.String("error", err.Error()))
			}
			return
		}

		s.queue.Enqueue(frame)

		if s.metrics != nil {
			s.metrics.FramesCaptured.Inc()
			s.metrics.QueueDepth.Set(float64(s.queue.Len()))
		}
	}
}
