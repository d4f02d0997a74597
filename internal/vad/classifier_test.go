package vad

import (
	"math"
	"testing"

	"github.com/mnazzaro/voice-client/internal/audio"
)

func toneFrame(amplitude float64, sampleRate, ms int) []byte {
	n := sampleRate * ms / 1000
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*300*float64(i)/float64(sampleRate)))
	}
	return audio.SamplesToBytes(samples)
}

func silentTestFrame(sampleRate, ms int) []byte {
	return make([]byte, sampleRate*ms/1000*2)
}

func TestValidFrame(t *testing.T) {
	tests := []struct {
		name       string
		durationMS int
		sampleRate int
		wantErr    bool
	}{
		{"10ms at 8kHz", 10, 8000, false},
		{"20ms at 16kHz", 20, 16000, false},
		{"30ms at 32kHz", 30, 32000, false},
		{"30ms at 48kHz", 30, 48000, false},
		{"unsupported duration", 25, 16000, true},
		{"zero duration", 0, 16000, true},
		{"unsupported rate", 30, 44100, true},
		{"zero rate", 30, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidFrame(tt.durationMS, tt.sampleRate)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidFrame(%d, %d): error = %v, wantErr = %v",
					tt.durationMS, tt.sampleRate, err, tt.wantErr)
			}
		})
	}
}

func TestNewEnergyClassifierAggressiveness(t *testing.T) {
	for _, a := range []int{0, 1, 2, 3} {
		if _, err := NewEnergyClassifier(a); err != nil {
			t.Errorf("aggressiveness %d: unexpected error %v", a, err)
		}
	}
	for _, a := range []int{-1, 4, 100} {
		if _, err := NewEnergyClassifier(a); err == nil {
			t.Errorf("aggressiveness %d: expected error", a)
		}
	}
}

func TestClassifySilenceAndSpeech(t *testing.T) {
	c, err := NewEnergyClassifier(0)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	isSpeech, err := c.Classify(silentTestFrame(16000, 30), 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if isSpeech {
		t.Error("all-zero frame classified as speech")
	}

	isSpeech, err = c.Classify(toneFrame(0.5, 16000, 30), 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !isSpeech {
		t.Error("loud tone classified as silence")
	}
}

func TestClassifyRejectsBadFrames(t *testing.T) {
	c, err := NewEnergyClassifier(0)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	if _, err := c.Classify(nil, 16000); err == nil {
		t.Error("expected error for empty frame")
	}
	if _, err := c.Classify([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("expected error for odd-length frame")
	}
}

func TestAggressivenessOrdersThresholds(t *testing.T) {
	// A quiet tone below the level-3 threshold but above level 0.
	frame := toneFrame(0.03, 16000, 30)

	lax, err := NewEnergyClassifier(0)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}
	strict, err := NewEnergyClassifier(3)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	got, err := lax.Classify(frame, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !got {
		t.Error("level 0 should accept the quiet tone")
	}

	got, err = strict.Classify(frame, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got {
		t.Error("level 3 should reject the quiet tone")
	}
}

func TestClassifierStatsAndReset(t *testing.T) {
	c, err := NewEnergyClassifier(0)
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Classify(toneFrame(0.5, 16000, 30), 16000); err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
	}
	if _, err := c.Classify(silentTestFrame(16000, 30), 16000); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	stats := c.GetStats()
	if stats.TotalFrames != 4 {
		t.Errorf("expected 4 total frames, got %d", stats.TotalFrames)
	}
	if stats.SpeechFrames == 0 {
		t.Error("expected speech frames counted")
	}
	if stats.SpeechPercentage <= 0 || stats.SpeechPercentage > 100 {
		t.Errorf("speech percentage out of range: %v", stats.SpeechPercentage)
	}

	c.Reset()
	stats = c.GetStats()
	if stats.TotalFrames != 0 || stats.SpeechFrames != 0 {
		t.Errorf("expected zeroed stats after reset, got %+v", stats)
	}
}
