// Package node wires the Tone Codec, Line Coder, Framer, Receiver State
// Machine and MAC/Transmitter together into one running process (the Node
// Runtime, spec §5/§9): it owns the audio device, the sequence
// counter, and the received-set, and arbitrates exclusive device access
// between the Receiver and Transmitter roles.
package node

import (
	"context"
	"fmt"

	"github.com/jeongseonghan/acoustic-mac/internal/audio"
	"github.com/jeongseonghan/acoustic-mac/internal/line"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
	"github.com/jeongseonghan/acoustic-mac/internal/tone"
)

// symbolSource adapts audio.IO into the classified-symbol-per-call shape
// both receiver.SymbolSource and mac.SymbolSource require.
type symbolSource struct {
	io audio.IO
}

func (s symbolSource) NextSymbol(ctx context.Context) (protocol.Symbol, error) {
	samples, err := s.io.ReadChunk(ctx)
	if err != nil {
		return protocol.SymNone, fmt.Errorf("node: read chunk: %w", err)
	}
	return tone.Classify(samples), nil
}

// framePlayer adapts audio.IO into mac.FramePlayer: the waveform has
// already been line-coded by the caller (mac.Transmitter.Transmit).
type framePlayer struct {
	io audio.IO
}

func (p framePlayer) Play(ctx context.Context, waveform []float32) error {
	if err := p.io.WriteSamples(ctx, waveform); err != nil {
		return fmt.Errorf("node: play frame: %w", err)
	}
	return nil
}

// ackPlayer adapts audio.IO into receiver.ACKPlayer, line-coding the fixed
// ACK frame on every call.
type ackPlayer struct {
	io audio.IO
}

func (p ackPlayer) PlayACK(ctx context.Context) error {
	waveform := line.Encode(protocol.ACKFrame)
	if err := p.io.WriteSamples(ctx, waveform); err != nil {
		return fmt.Errorf("node: play ACK: %w", err)
	}
	return nil
}
