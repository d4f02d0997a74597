// Package metrics defines the Prometheus metrics for the voice capture
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice capture service
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	CaptureDrops   prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Consumer metrics
	FramesProcessed  prometheus.Counter
	SpeechFrames     prometheus.Counter
	ClassifierErrors prometheus.Counter
	ForcedCloses     prometheus.Counter

	// Segment metrics
	SegmentsSaved   prometheus.Counter
	SegmentDuration prometheus.Histogram
	SegmentBytes    prometheus.Histogram
	StorageFailures prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_frames_captured_total",
			Help: "Total number of audio frames received from the capture source",
		}),
		CaptureDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_capture_drops_total",
			Help: "Total number of malformed or oversize capture reads dropped",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_frame_queue_depth",
			Help: "Current number of frames waiting in the queue",
		}),

		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_frames_processed_total",
			Help: "Total number of frames consumed by the active processor",
		}),
		SpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_speech_frames_total",
			Help: "Total number of frames classified as speech",
		}),
		ClassifierErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_classifier_errors_total",
			Help: "Total number of frames skipped due to classifier errors",
		}),
		ForcedCloses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_forced_closes_total",
			Help: "Total number of segments force-closed due to capture stalls",
		}),

		SegmentsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_segments_saved_total",
			Help: "Total number of segments handed to storage successfully",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_segment_duration_seconds",
			Help:    "Duration of saved segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
		}),
		SegmentBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_segment_size_bytes",
			Help:    "Audio payload size of saved segments",
			Buckets: prometheus.ExponentialBuckets(8192, 2, 12), // 8KB to ~16MB
		}),
		StorageFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_storage_failures_total",
			Help: "Total number of failed segment persist attempts",
		}),
	}
}
