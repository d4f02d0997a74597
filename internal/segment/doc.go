// Package segment contains the two frame consumers: the speech segmenter
// (voice-activity state machine with pre-roll buffer and silence hysteresis)
// and the duration splitter (fixed-length batching). Exactly one consumer
// reads the frame queue at a time; all segmentation state is owned by the
// consumer goroutine and frames are processed in strict arrival order.
package segment
