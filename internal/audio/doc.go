// Package audio handles PCM sample conversion and WAV encoding.
// It converts between raw 16-bit little-endian frame bytes, int16 samples and
// the normalized float domain used by the noise suppression transform, and
// encodes completed recordings to WAV.
package audio
