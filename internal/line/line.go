// Package line implements the Line Coder: mapping a bit sequence to an
// alternating (bit, delimiter) tone sequence for playback, and the
// symmetric edge-triggered demodulator that recovers bits from a stream
// of classified symbols.
package line

import (
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
	"github.com/jeongseonghan/acoustic-mac/internal/tone"
)

// Encode emits pairs (bit_tone, delimiter_tone) for each input bit, each
// held for one symbol duration. The final delimiter is always emitted, so
// every bit, including the last, is followed by a delimiter.
func Encode(bits []int) []float32 {
	out := make([]float32, 0, len(bits)*2*protocol.ChunkSize)
	for _, b := range bits {
		out = append(out, tone.SynthesizeSymbol(protocol.SymbolOf(b))...)
		out = append(out, tone.SynthesizeSymbol(protocol.SymDelimiter)...)
	}
	return out
}

// Decoder is the streaming, edge-triggered demodulator described in
// spec §4.2: information is carried by transitions bit<->delimiter, so
// repeated classifications of the same tone collapse to one logical
// symbol and brief misclassifications self-heal on the next transition.
type Decoder struct {
	prev protocol.Symbol
}

// NewDecoder creates a Decoder whose initial "previous symbol" is supplied
// by the caller, matching the different entry conditions of the main
// receiver (prior symbol is the preamble's closing delimiter) and the ACK
// receiver (prior symbol is forced to SymDelimiter at READ entry).
func NewDecoder(initialPrev protocol.Symbol) *Decoder {
	return &Decoder{prev: initialPrev}
}

// Feed consumes one classified symbol. It returns (bit, true) exactly when
// s is a new data symbol (s != prev and s is 0 or 1). A transition into
// DELIMITER, or a repeat of prev, or SymNone, produces no output but may
// still update prev.
func (d *Decoder) Feed(s protocol.Symbol) (bit int, ok bool) {
	if s == protocol.SymNone || s == d.prev {
		return 0, false
	}
	d.prev = s
	if s.IsBit() {
		return s.Bit(), true
	}
	return 0, false
}

// Prev returns the decoder's current "previous symbol" state, useful for
// diagnostics and tests.
func (d *Decoder) Prev() protocol.Symbol { return d.prev }
