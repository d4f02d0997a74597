package audio

import (
	"math"
	"testing"
)

func TestBytesToSamplesLittleEndian(t *testing.T) {
	// 0x0102 and -2 (0xFFFE) in little-endian byte order.
	data := []byte{0x02, 0x01, 0xFE, 0xFF}

	samples := BytesToSamples(data)
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 0x0102 {
		t.Errorf("sample 0: expected 0x0102, got %#04x", samples[0])
	}
	if samples[1] != -2 {
		t.Errorf("sample 1: expected -2, got %d", samples[1])
	}
}

func TestBytesToSamplesDropsOddByte(t *testing.T) {
	data := []byte{0x02, 0x01, 0xFF}
	if got := len(BytesToSamples(data)); got != 1 {
		t.Errorf("expected 1 sample from 3 bytes, got %d", got)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}

	got := BytesToSamples(SamplesToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestBytesToFloat64Normalization(t *testing.T) {
	data := SamplesToBytes([]int16{0, 16384, -32768})

	out := BytesToFloat64(data)
	if out[0] != 0 {
		t.Errorf("expected 0, got %v", out[0])
	}
	if math.Abs(out[1]-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", out[1])
	}
	if out[2] != -1.0 {
		t.Errorf("expected -1.0, got %v", out[2])
	}
}

func TestFloat64ToBytesClamping(t *testing.T) {
	out := BytesToSamples(Float64ToBytes([]float64{2.0, -2.0, 0}))

	if out[0] != 32767 {
		t.Errorf("expected clamp to 32767, got %d", out[0])
	}
	if out[1] != -32768 {
		t.Errorf("expected clamp to -32768, got %d", out[1])
	}
	if out[2] != 0 {
		t.Errorf("expected 0, got %d", out[2])
	}
}
