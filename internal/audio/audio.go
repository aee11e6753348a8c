// Package audio wraps the external audio device collaborator: blocking
// capture of mono 16-bit PCM and blocking playback of mono float32 PCM,
// both at the protocol sample rate.
package audio

import "context"

// IO is the capture/playback surface the rest of the system depends on.
// PortAudioIO is the production implementation; LoopbackIO is an
// in-process fake for tests and CI environments without a sound card.
type IO interface {
	// ReadChunk returns protocol.ChunkSize captured samples. PortAudioIO
	// blocks for roughly one chunk duration while capturing; LoopbackIO
	// returns at once.
	ReadChunk(ctx context.Context) ([]int16, error)

	// WriteSamples blocks until every sample has been played.
	WriteSamples(ctx context.Context, samples []float32) error

	Close() error
}
