package audio

// Raw frames are 16-bit signed little-endian mono PCM throughout the
// pipeline. The suppression transform works on amplitude-normalized float64
// samples in [-1, 1].

// BytesToSamples converts raw little-endian PCM bytes to int16 samples.
// A trailing odd byte is dropped.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples back to raw little-endian PCM bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// BytesToFloat64 converts raw PCM bytes to normalized float64 samples.
func BytesToFloat64(data []byte) []float64 {
	samples := BytesToSamples(data)
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// Float64ToBytes converts normalized float64 samples to raw PCM bytes,
// clamping to the int16 range.
func Float64ToBytes(samples []float64) []byte {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return SamplesToBytes(out)
}
