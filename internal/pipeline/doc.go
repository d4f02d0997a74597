// Package pipeline provides the frame queue connecting the capture boundary
// to the active consumer. The queue is an unbounded FIFO: the producer never
// blocks, and the consumer dequeues with a timeout so it can poll its stop
// signal cooperatively.
package pipeline
