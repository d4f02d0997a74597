package vad

import (
	"fmt"
	"math"
	"sync"

	"github.com/mnazzaro/voice-client/internal/audio"
)

// Classifier decides whether a single PCM frame contains speech.
// Implementations must complete in well under one frame period; a returned
// error is treated as a transient frame error by the caller, never fatal.
type Classifier interface {
	Classify(frame []byte, sampleRate int) (bool, error)
}

// ValidFrame reports whether the classifier supports the given frame
// duration and sample rate combination. An invalid combination is a
// configuration error, checked at startup rather than per frame.
func ValidFrame(frameDurationMS, sampleRate int) error {
	switch frameDurationMS {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame duration must be 10, 20 or 30 ms, got %d", frameDurationMS)
	}

	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("sample rate must be 8000, 16000, 32000 or 48000 Hz, got %d", sampleRate)
	}

	return nil
}

// Stats represents classifier statistics for monitoring
type Stats struct {
	TotalFrames      uint64  `json:"total_frames"`
	SpeechFrames     uint64  `json:"speech_frames"`
	SpeechPercentage float64 `json:"speech_percentage"`
}

// EnergyClassifier is an RMS-energy speech classifier. Aggressiveness 0-3
// selects the detection threshold: higher levels require more energy to call
// a frame speech, filtering out more noise at the cost of clipping quiet
// speech.
type EnergyClassifier struct {
	threshold float32
	smoothing float32

	lastEnergy   float32
	totalFrames  uint64
	speechFrames uint64

	mu sync.Mutex
}

// Normalized RMS thresholds per aggressiveness level.
var aggressivenessThresholds = [4]float32{0.010, 0.020, 0.040, 0.075}

// NewEnergyClassifier creates a classifier for the given aggressiveness
// level (0 = least aggressive, 3 = most aggressive).
func NewEnergyClassifier(aggressiveness int) (*EnergyClassifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", aggressiveness)
	}

	return &EnergyClassifier{
		threshold: aggressivenessThresholds[aggressiveness],
		smoothing: 0.3, // light smoothing across frames
	}, nil
}

// Classify reports whether the frame contains speech.
func (c *EnergyClassifier) Classify(frame []byte, sampleRate int) (bool, error) {
	if len(frame) == 0 || len(frame)%2 != 0 {
		return false, fmt.Errorf("frame length must be a positive even byte count, got %d", len(frame))
	}

	samples := audio.BytesToSamples(frame)

	var energy float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		energy += v * v
	}
	rms := float32(math.Sqrt(energy / float64(len(samples))))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalFrames > 0 {
		rms = c.smoothing*rms + (1-c.smoothing)*c.lastEnergy
	}
	c.lastEnergy = rms

	isSpeech := rms >= c.threshold

	c.totalFrames++
	if isSpeech {
		c.speechFrames++
	}

	return isSpeech, nil
}

// GetStats returns current classifier statistics
func (c *EnergyClassifier) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	pct := float64(0)
	if c.totalFrames > 0 {
		pct = float64(c.speechFrames) / float64(c.totalFrames) * 100
	}

	return Stats{
		TotalFrames:      c.totalFrames,
		SpeechFrames:     c.speechFrames,
		SpeechPercentage: pct,
	}
}

// Reset clears smoothing state and statistics.
func (c *EnergyClassifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastEnergy = 0
	c.totalFrames = 0
	c.speechFrames = 0
}
