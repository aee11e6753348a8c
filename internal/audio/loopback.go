package audio

import (
	"context"
	"fmt"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// LoopbackIO is an in-process IO with no sound card: WriteSamples converts
// its float32 waveform straight to int16 PCM and pushes it onto a channel
// that ReadChunk drains protocol.ChunkSize samples at a time, padding with
// silence when starved. It exists for tests and for running a full node
// process without audio hardware (the --loopback flag).
type LoopbackIO struct {
	samples chan int16
	closed  chan struct{}
}

// NewLoopbackIO constructs a LoopbackIO with the given channel buffer
// depth, in samples.
func NewLoopbackIO(bufferedSamples int) *LoopbackIO {
	return &LoopbackIO{
		samples: make(chan int16, bufferedSamples),
		closed:  make(chan struct{}),
	}
}

// ReadChunk returns exactly protocol.ChunkSize samples, pulling from
// whatever has been written so far and padding the rest with silence so a
// node with nothing feeding its loopback still makes steady progress.
func (l *LoopbackIO) ReadChunk(ctx context.Context) ([]int16, error) {
	out := make([]int16, protocol.ChunkSize)
	for i := range out {
		select {
		case s, ok := <-l.samples:
			if !ok {
				return out, nil
			}
			out[i] = s
		case <-ctx.Done():
			return out, ctx.Err()
		default:
			// no sample ready: treat as silence rather than blocking the
			// whole chunk on a single slow producer.
		}
	}
	return out, nil
}

// WriteSamples converts float32 samples to int16 PCM and enqueues them for
// a future ReadChunk, blocking only if the internal buffer is full.
func (l *LoopbackIO) WriteSamples(ctx context.Context, samples []float32) error {
	for _, f := range samples {
		select {
		case l.samples <- floatToInt16(f):
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return fmt.Errorf("audio: loopback closed")
		}
	}
	return nil
}

// Close marks the loopback closed; pending WriteSamples calls unblock with
// an error.
func (l *LoopbackIO) Close() error {
	close(l.closed)
	return nil
}

func floatToInt16(f float32) int16 {
	if f > 1 {
		f = 1
	}
	if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}
