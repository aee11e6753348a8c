package tone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

func TestClassifyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		sym  protocol.Symbol
	}{
		{"zero", protocol.SymZero},
		{"one", protocol.SymOne},
		{"delimiter", protocol.SymDelimiter},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			samples := SynthesizeSymbol(c.sym)
			require.Len(t, samples, protocol.ChunkSize)

			ints := make([]int16, len(samples))
			for i, s := range samples {
				ints[i] = int16(s * 32767)
			}

			got := Classify(ints)
			assert.Equal(t, c.sym, got)
		})
	}
}

func TestClassifySilenceIsNone(t *testing.T) {
	silence := make([]int16, protocol.ChunkSize)
	assert.Equal(t, protocol.SymNone, Classify(silence))
}

func TestClassifyWrongLengthPanics(t *testing.T) {
	assert.Panics(t, func() {
		Classify(make([]int16, protocol.ChunkSize-1))
	})
}

func TestSynthesizeLength(t *testing.T) {
	samples := Synthesize(protocol.FreqZero, protocol.BitDuration.Seconds())
	assert.Len(t, samples, protocol.ChunkSize)
}
