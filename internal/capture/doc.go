// Package capture implements the capture boundary: sources that push
// fixed-size PCM frames into the frame queue. The physical audio device is
// external; the sources here receive frames over UDP or replay them from a
// raw PCM file at frame cadence.
package capture
