package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
	"github.com/jeongseonghan/acoustic-mac/internal/tone"
)

// classifiedSymbols turns an Encode()'d waveform back into the symbol
// stream a receiver would see, by re-running Classify on each
// protocol.ChunkSize window. This proves Decode(Encode(x)) = x end to end
// through the Tone Codec, not just against a hand-built symbol list.
func classifiedSymbols(samples []float32) []protocol.Symbol {
	var out []protocol.Symbol
	for i := 0; i+protocol.ChunkSize <= len(samples); i += protocol.ChunkSize {
		chunk := samples[i : i+protocol.ChunkSize]
		ints := make([]int16, len(chunk))
		for j, s := range chunk {
			ints[j] = int16(s * 32767)
		}
		out = append(out, tone.Classify(ints))
	}
	return out
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.SliceOf(rapid.IntRange(0, 1)).Draw(t, "bits")

		waveform := Encode(bits)
		symbols := classifiedSymbols(waveform)

		dec := NewDecoder(protocol.SymDelimiter)
		var got []int
		for _, s := range symbols {
			if bit, ok := dec.Feed(s); ok {
				got = append(got, bit)
			}
		}

		if len(bits) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, bits, got)
		}
	})
}

func TestDecoderIgnoresRepeatsAndNone(t *testing.T) {
	dec := NewDecoder(protocol.SymDelimiter)

	_, ok := dec.Feed(protocol.SymDelimiter)
	assert.False(t, ok, "repeat of prev should not emit")

	_, ok = dec.Feed(protocol.SymNone)
	assert.False(t, ok, "SymNone should never emit")

	bit, ok := dec.Feed(protocol.SymOne)
	assert.True(t, ok)
	assert.Equal(t, 1, bit)

	_, ok = dec.Feed(protocol.SymOne)
	assert.False(t, ok, "repeat of the same bit should not re-emit")
}
