package denoise

import (
	"log/slog"

	"github.com/mnazzaro/voice-client/internal/audio"
)

// Transform is the external noise-reduction boundary. It receives normalized
// samples plus the learned noise profile and returns an array of identical
// length. Errors are best-effort signals, never fatal.
type Transform interface {
	Denoise(samples []float64, sampleRate int, profile []float64) ([]float64, error)
}

// Suppressor orchestrates profile capture and per-frame suppression.
// LearnProfile must be called before the consumer starts; the profile is
// immutable once learned. Without a profile every frame passes through
// unchanged.
type Suppressor struct {
	transform  Transform
	sampleRate int
	profile    []float64
	logger     *slog.Logger
}

// NewSuppressor creates a suppressor without a noise profile.
func NewSuppressor(transform Transform, sampleRate int, logger *slog.Logger) *Suppressor {
	return &Suppressor{
		transform:  transform,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// LearnProfile captures the noise profile from a contiguous stretch of
// silence (at least 2 s recommended). Empty input is logged and leaves the
// profile unset, so suppression degrades to pass-through rather than
// erroring.
func (s *Suppressor) LearnProfile(frames [][]byte) {
	total := 0
	for _, f := range frames {
		total += len(f)
	}

	if total == 0 {
		s.logger.Warn("Noise profile learn called with no audio, suppression disabled")
		return
	}

	profile := make([]float64, 0, total/2)
	for _, f := range frames {
		profile = append(profile, audio.BytesToFloat64(f)...)
	}

	s.profile = profile
	s.logger.Info("Noise profile learned",
		slog.Int("frames", len(frames)),
		slog.Int("samples", len(profile)),
	)
}

// HasProfile reports whether a noise profile has been learned.
func (s *Suppressor) HasProfile() bool {
	return s.profile != nil
}

// Suppress applies the noise-reduction transform to one frame and returns a
// frame of identical length. With no profile, or on any transform failure,
// the original frame is returned unchanged.
func (s *Suppressor) Suppress(frame []byte) []byte {
	if s.profile == nil {
		return frame
	}

	samples := audio.BytesToFloat64(frame)

	cleaned, err := s.transform.Denoise(samples, s.sampleRate, s.profile)
	if err != nil {
		s.logger.Warn("Noise suppression failed, passing frame through",
			slog.String("error", err.Error()),
		)
		return frame
	}

	if len(cleaned) != len(samples) {
		s.logger.Warn("Noise suppression returned wrong length, passing frame through",
			slog.Int("want", len(samples)),
			slog.Int("got", len(cleaned)),
		)
		return frame
	}

	return audio.Float64ToBytes(cleaned)
}
