package segment

import (
	"time"

	"github.com/google/uuid"
)

// Segment is one continuous span of audio destined for a single stored file.
// Frames are contiguous in arrival order; StartTime and EndTime are estimates
// of the audible speech boundaries, not wall-clock frame arrival times.
type Segment struct {
	ID        string
	Frames    [][]byte
	StartTime time.Time
	EndTime   time.Time
}

func newSegment(frames [][]byte, start time.Time) *Segment {
	return &Segment{
		ID:        uuid.NewString(),
		Frames:    frames,
		StartTime: start,
	}
}

// Append adds one frame to the segment.
func (s *Segment) Append(frame []byte) {
	s.Frames = append(s.Frames, frame)
}

// Bytes returns the total audio payload size.
func (s *Segment) Bytes() int {
	n := 0
	for _, f := range s.Frames {
		n += len(f)
	}
	return n
}

// Duration returns EndTime - StartTime.
func (s *Segment) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Sink persists a completed segment. Implementations return errors rather
// than panicking; a failed persist is logged at the call site and must leave
// the consumer's state machine untouched. Delivery is at-most-once, the
// pipeline never retries a failed segment.
type Sink interface {
	Persist(seg *Segment) error
}

// Suppressor applies best-effort noise reduction to one frame, returning a
// frame of identical length. Implementations never fail; degraded operation
// is pass-through.
type Suppressor interface {
	Suppress(frame []byte) []byte
}
