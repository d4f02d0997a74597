package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mnazzaro/voice-client/internal/metrics"
	"github.com/mnazzaro/voice-client/internal/pipeline"
)

// Source produces frames into the queue between Start and Stop.
type Source interface {
	Start() error
	Stop() error
}

// UDPSource receives PCM frames as UDP datagrams, one frame per datagram.
// Datagrams whose size differs from the configured frame size are dropped
// and counted; device-level framing is the sender's responsibility.
type UDPSource struct {
	bindAddress string
	port        int
	bufferSize  int
	frameBytes  int

	queue   *pipeline.FrameQueue
	logger  *slog.Logger
	metrics *metrics.Metrics // optional

	conn   *net.UDPConn
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewUDPSource creates a UDP capture source.
func NewUDPSource(bindAddress string, port, bufferSize, frameBytes int,
	queue *pipeline.FrameQueue, logger *slog.Logger, m *metrics.Metrics) *UDPSource {

	return &UDPSource{
		bindAddress: bindAddress,
		port:        port,
		bufferSize:  bufferSize,
		frameBytes:  frameBytes,
		queue:       queue,
		logger:      logger,
		metrics:     m,
	}
}

// Start begins listening for frames.
func (s *UDPSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("udp source already running")
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.bindAddress, s.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.conn = conn

	if err := s.conn.SetReadBuffer(s.bufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.bufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go s.receiveLoop()

	s.logger.Info("UDP capture source started",
		slog.String("address", addr.String()),
		slog.Int("frame_bytes", s.frameBytes),
	)

	return nil
}

// Stop closes the socket and waits for the receive loop to exit.
func (s *UDPSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if err := s.conn.Close(); err != nil {
		s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
	}
	s.wg.Wait()

	s.logger.Info("UDP capture source stopped")
	return nil
}

func (s *UDPSource) receiveLoop() {
	defer s.wg.Done()

	buffer := make([]byte, s.bufferSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			s.logger.Warn("Failed to set read deadline", slog.String("error", err.Error()))
		}

		n, _, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("UDP read error", slog.String("error", err.Error()))
			continue
		}

		if n != s.frameBytes {
			if s.metrics != nil {
				s.metrics.CaptureDrops.Inc()
			}
			s.logger.Debug("Dropping datagram with unexpected size",
				slog.Int("got", n),
				slog.Int("want", s.frameBytes),
			)
			continue
		}

		frame := make([]byte, n)
		copy(frame, buffer[:n])
		s.queue.Enqueue(frame)

		if s.metrics != nil {
			s.metrics.FramesCaptured.Inc()
			s.metrics.QueueDepth.Set(float64(s.queue.Len()))
		}
	}
}
