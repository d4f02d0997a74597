// Package vad provides the speech/non-speech classifier boundary.
// The classifier operates on single fixed-size PCM frames of 10, 20 or 30 ms
// at 8, 16, 32 or 48 kHz. The default implementation is an energy-based
// classifier with aggressiveness levels mapping to detection thresholds.
package vad
