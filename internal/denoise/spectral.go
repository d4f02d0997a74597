package denoise

import (
	"fmt"
	"math"
)

// SpectralGate is the default Transform: a per-frame noise gate calibrated
// against the learned profile. It estimates the noise floor as the RMS of
// the profile and attenuates frames whose energy stays within a margin of
// that floor, leaving louder frames untouched.
type SpectralGate struct {
	// Margin above the noise floor (linear factor) below which a frame is
	// treated as residual noise.
	Margin float64
	// Attenuation applied to noise-dominated frames, 0..1.
	Attenuation float64
}

// NewSpectralGate creates a gate with the default margin and attenuation.
func NewSpectralGate() *SpectralGate {
	return &SpectralGate{
		Margin:      1.5,
		Attenuation: 0.1,
	}
}

// Denoise implements Transform.
func (g *SpectralGate) Denoise(samples []float64, sampleRate int, profile []float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("empty noise profile")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	floor := rms(profile)
	frameEnergy := rms(samples)

	out := make([]float64, len(samples))
	if frameEnergy <= floor*g.Margin {
		for i, s := range samples {
			out[i] = s * g.Attenuation
		}
		return out, nil
	}

	copy(out, samples)
	return out, nil
}

func rms(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
