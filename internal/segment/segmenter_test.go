package segment

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mnazzaro/voice-client/internal/pipeline"
)

// Test frames carry their classification in the first byte: 1 = speech,
// 0 = silence, 0xEE = classifier error. The remaining bytes identify the
// frame.
func speechFrame(id int) []byte {
	return []byte{1, byte(id), byte(id >> 8)}
}

func silenceFrame(id int) []byte {
	return []byte{0, byte(id), byte(id >> 8)}
}

func badFrame() []byte {
	return []byte{0xEE, 0, 0}
}

type markClassifier struct{}

func (markClassifier) Classify(frame []byte, sampleRate int) (bool, error) {
	if frame[0] == 0xEE {
		return false, fmt.Errorf("unclassifiable frame")
	}
	return frame[0] == 1, nil
}

type recordingSink struct {
	mu    sync.Mutex
	segs  []*Segment
	fail  bool
	saved chan *Segment
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saved: make(chan *Segment, 16)}
}

func (rs *recordingSink) Persist(seg *Segment) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.fail {
		return fmt.Errorf("disk full")
	}
	rs.segs = append(rs.segs, seg)
	rs.saved <- seg
	return nil
}

func (rs *recordingSink) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.segs)
}

func (rs *recordingSink) setFail(fail bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.fail = fail
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newIdleSegmenter builds a segmenter with its consumer state initialized,
// for driving handleFrame directly without the goroutine.
func newIdleSegmenter(cfg SegmenterConfig, sink Sink) *Segmenter {
	s := NewSegmenter(cfg, pipeline.NewFrameQueue(), markClassifier{}, nil, sink, testLogger(), nil)
	s.preroll = newPreRoll(s.cfg.PreRollFrames)
	return s
}

func TestSegmenterSeedsSegmentFromPreRoll(t *testing.T) {
	sink := newRecordingSink()
	s := newIdleSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   10,
		MaxSilentChunks: 66,
	}, sink)

	now := time.Now()

	// More silence than the ring holds; only the last 10 frames survive.
	for i := 0; i < 15; i++ {
		s.handleFrame(silenceFrame(i), now)
	}
	if s.triggered {
		t.Fatal("silence alone must not trigger")
	}

	s.handleFrame(speechFrame(100), now)

	if !s.triggered {
		t.Fatal("speech frame must trigger")
	}
	if len(s.current.Frames) != 11 {
		t.Fatalf("expected 11 seed frames (10 pre-roll + trigger), got %d", len(s.current.Frames))
	}

	// Pre-roll contents oldest to newest: silence frames 5..14.
	for i := 0; i < 10; i++ {
		f := s.current.Frames[i]
		id := int(f[1]) + int(f[2])<<8
		if id != 5+i {
			t.Errorf("seed frame %d: expected id %d, got %d", i, 5+i, id)
		}
	}

	trigger := s.current.Frames[10]
	if trigger[0] != 1 || trigger[1] != 100 {
		t.Error("last seed frame must be the triggering speech frame")
	}

	wantStart := now.Add(-11 * 30 * time.Millisecond)
	if !s.current.StartTime.Equal(wantStart) {
		t.Errorf("expected back-dated start %v, got %v", wantStart, s.current.StartTime)
	}
}

func TestSegmenterSilenceThresholdBoundary(t *testing.T) {
	sink := newRecordingSink()
	s := newIdleSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 3,
	}, sink)

	now := time.Now()
	s.handleFrame(speechFrame(0), now)

	// Exactly the threshold: counter reaches 3 but never exceeds it.
	for i := 0; i < 3; i++ {
		s.handleFrame(silenceFrame(i), now)
	}
	if !s.triggered {
		t.Fatal("segment must stay open at exactly max_silent_chunks")
	}
	if sink.count() != 0 {
		t.Fatal("no segment may be persisted at the threshold")
	}

	// Speech at the boundary resets the counter; the segment survives.
	s.handleFrame(speechFrame(1), now)
	if s.silentChunks != 0 {
		t.Errorf("speech must reset the silence counter, got %d", s.silentChunks)
	}

	// Now exceed the threshold: the 4th consecutive silence frame closes.
	for i := 0; i < 4; i++ {
		s.handleFrame(silenceFrame(10+i), now)
	}
	if s.triggered {
		t.Fatal("segment must close once the counter exceeds max_silent_chunks")
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly 1 persisted segment, got %d", sink.count())
	}
}

func TestSegmenterConcreteScenario(t *testing.T) {
	// sample_rate=16000, frame=30ms, silence_threshold=2000ms (66 chunks),
	// pre_roll=300ms (10 frames): 10 silence + 1 speech + 5 speech + 67
	// silence must yield exactly one segment of 11+5+67 = 83 frames.
	sink := newRecordingSink()
	s := newIdleSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   10,
		MaxSilentChunks: 66,
	}, sink)

	base := time.Now()
	frameAt := func(i int) time.Time {
		return base.Add(time.Duration(i) * 30 * time.Millisecond)
	}

	n := 0
	for i := 0; i < 10; i++ {
		s.handleFrame(silenceFrame(n), frameAt(n))
		n++
	}
	if sink.count() != 0 || s.triggered {
		t.Fatal("pre-roll fill must not produce a segment")
	}

	for i := 0; i < 6; i++ { // trigger + 5 more speech frames
		s.handleFrame(speechFrame(n), frameAt(n))
		n++
	}
	if !s.triggered {
		t.Fatal("expected active segment")
	}
	if s.silentChunks != 0 {
		t.Errorf("silence counter must be 0 during speech, got %d", s.silentChunks)
	}

	for i := 0; i < 66; i++ {
		s.handleFrame(silenceFrame(n), frameAt(n))
		n++
	}
	if !s.triggered {
		t.Fatal("segment must stay open at 66 silent chunks")
	}

	s.handleFrame(silenceFrame(n), frameAt(n)) // 67th silence closes
	n++

	if s.triggered {
		t.Fatal("segment must close on the 67th silent chunk")
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly 1 persisted segment, got %d", sink.count())
	}

	seg := sink.segs[0]
	if len(seg.Frames) != 83 {
		t.Errorf("expected 83 frames (11 seed + 5 speech + 67 silence), got %d", len(seg.Frames))
	}

	// With the back-dating of both boundaries, the audible span is the seed
	// plus the speech frames: 16 frames of 30ms.
	want := 16 * 30 * time.Millisecond
	if seg.Duration() != want {
		t.Errorf("expected duration %v, got %v", want, seg.Duration())
	}
}

func TestSegmenterClassifierErrorSkipsFrame(t *testing.T) {
	sink := newRecordingSink()
	s := newIdleSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   5,
		MaxSilentChunks: 3,
	}, sink)

	now := time.Now()
	s.handleFrame(badFrame(), now)

	if s.preroll.Len() != 0 {
		t.Error("unclassifiable frame must not enter the pre-roll buffer")
	}
	if s.triggered {
		t.Error("unclassifiable frame must not trigger")
	}

	// During an active segment the frame is skipped entirely.
	s.handleFrame(speechFrame(0), now)
	s.handleFrame(badFrame(), now)
	if len(s.current.Frames) != 1 {
		t.Errorf("expected 1 frame in segment after skipped frame, got %d", len(s.current.Frames))
	}
}

func TestSegmenterPersistFailureLeavesStateClean(t *testing.T) {
	sink := newRecordingSink()
	sink.setFail(true)

	s := newIdleSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 2,
	}, sink)

	now := time.Now()
	s.handleFrame(speechFrame(0), now)
	for i := 0; i < 3; i++ {
		s.handleFrame(silenceFrame(i), now)
	}

	if s.triggered {
		t.Fatal("state machine must return to idle even when persist fails")
	}
	if got := s.Stats().StorageErrors; got != 1 {
		t.Errorf("expected 1 storage error, got %d", got)
	}

	// The next segment proceeds normally.
	sink.setFail(false)
	s.handleFrame(speechFrame(1), now)
	for i := 0; i < 3; i++ {
		s.handleFrame(silenceFrame(10+i), now)
	}

	if sink.count() != 1 {
		t.Fatalf("expected the next segment to persist, got %d", sink.count())
	}
}

func TestSegmenterStopSavesActiveSegment(t *testing.T) {
	sink := newRecordingSink()
	queue := pipeline.NewFrameQueue()
	s := NewSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 100, // never closes on its own
		PollTimeout:     10 * time.Millisecond,
	}, queue, markClassifier{}, nil, sink, testLogger(), nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	queue.Enqueue(speechFrame(1))
	queue.Enqueue(speechFrame(2))

	waitFor(t, time.Second, func() bool { return s.Stats().State == "triggered" })

	s.Stop()

	if sink.count() != 1 {
		t.Fatalf("expected stop to save the partial segment, got %d", sink.count())
	}

	// Second stop is a no-op: no duplicate persistence.
	s.Stop()
	if sink.count() != 1 {
		t.Errorf("double stop must not persist again, got %d segments", sink.count())
	}
}

func TestSegmenterStopWithoutSpeechSavesNothing(t *testing.T) {
	sink := newRecordingSink()
	queue := pipeline.NewFrameQueue()
	s := NewSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 3,
		PollTimeout:     10 * time.Millisecond,
	}, queue, markClassifier{}, nil, sink, testLogger(), nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	queue.Enqueue(silenceFrame(1))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if sink.count() != 0 {
		t.Errorf("expected no persisted segments, got %d", sink.count())
	}
}

func TestSegmenterStallForcesClose(t *testing.T) {
	sink := newRecordingSink()
	queue := pipeline.NewFrameQueue()
	s := NewSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   10 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 2, // silence threshold 20ms, stall bound 40ms
		PollTimeout:     10 * time.Millisecond,
	}, queue, markClassifier{}, nil, sink, testLogger(), nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	queue.Enqueue(speechFrame(1))

	// Feed nothing further; the stall heuristic must save the segment.
	select {
	case <-sink.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("expected stalled segment to be force-closed and saved")
	}

	if got := s.Stats().ForcedCloses; got != 1 {
		t.Errorf("expected 1 forced close, got %d", got)
	}
}

func TestSegmenterStartTwiceErrors(t *testing.T) {
	queue := pipeline.NewFrameQueue()
	s := NewSegmenter(SegmenterConfig{
		SampleRate:      16000,
		FrameDuration:   30 * time.Millisecond,
		PreRollFrames:   2,
		MaxSilentChunks: 3,
		PollTimeout:     10 * time.Millisecond,
	}, queue, markClassifier{}, nil, newRecordingSink(), testLogger(), nil)

	if err := s.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start must fail while running")
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
