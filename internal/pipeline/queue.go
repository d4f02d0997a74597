package pipeline

import (
	"sync"
	"time"
)

// FrameQueue is an unbounded FIFO of raw PCM frames with a single producer
// and a single consumer. Enqueue never blocks; unbounded growth is the
// accepted degradation mode when the consumer falls behind, in preference to
// dropping audio.
type FrameQueue struct {
	mu     sync.Mutex
	frames [][]byte

	// Capacity-1 channel used to wake a blocked Dequeue.
	signal chan struct{}
}

// NewFrameQueue creates an empty frame queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{
		frames: make([][]byte, 0, 256),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a frame to the queue. It never blocks and never fails;
// frame contents are not validated here, that is the consumer's job.
func (q *FrameQueue) Enqueue(frame []byte) {
	q.mu.Lock()
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest frame. It blocks for up to timeout
// when the queue is empty and returns (nil, false) if no frame arrived in
// time, letting the caller check its stop signal between polls.
func (q *FrameQueue) Dequeue(timeout time.Duration) ([]byte, bool) {
	if frame, ok := q.pop(); ok {
		return frame, true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-q.signal:
			if frame, ok := q.pop(); ok {
				return frame, true
			}
			// Signal raced with an earlier pop; keep waiting.
		case <-deadline.C:
			return nil, false
		}
	}
}

func (q *FrameQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}

	frame := q.frames[0]
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		// Drop the backing array so a long burst does not pin memory.
		q.frames = make([][]byte, 0, 256)
	}
	return frame, true
}

// Len returns the number of frames currently queued.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
