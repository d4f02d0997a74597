// Package storage persists completed segments as WAV files, optionally
// gzip-compressed, named after the segment's start and end timestamps.
// Failures are returned as errors and never disturb the calling pipeline.
package storage
