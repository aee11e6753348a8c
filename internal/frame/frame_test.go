package frame

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

func bitVec(t *rapid.T, label string) []int {
	return rapid.SliceOf(rapid.IntRange(0, 1)).Draw(t, label)
}

func TestBitStuffRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := bitVec(t, "x")
		stuffed := BitStuff(x)
		assert.Equal(t, x, RemoveBitStuff(stuffed))
	})
}

func TestBitStuffNoFiveZeroRun(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := bitVec(t, "x")
		stuffed := BitStuff(x)

		run := 0
		for _, b := range stuffed {
			if b == 0 {
				run++
				assert.Lessf(t, run, 5, "run of %d zeros in %v", run, stuffed)
			} else {
				run = 0
			}
		}
	})
}

func TestBitStuffExactlyFourLeadingZeros(t *testing.T) {
	in := []int{0, 0, 0, 0, 1, 0, 1}
	got := BitStuff(in)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 0, 1}, got)
}

func TestBitStuffSpecExampleS2(t *testing.T) {
	in := []int{0, 0, 0, 0, 0, 0, 1}
	got := BitStuff(in)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 0, 0, 1}, got)
	assert.Equal(t, in, RemoveBitStuff(got))
}

func TestTransformParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := bitVec(t, "msg")
		n := rapid.IntRange(0, 100).Draw(t, "n")
		destChoice := rapid.SampledFrom([]protocol.Address{protocol.Broadcast, protocol.Node01, protocol.Node10, protocol.Node11}).Draw(t, "dest")
		srcChoice := rapid.SampledFrom([]protocol.Address{protocol.Node01, protocol.Node10, protocol.Node11}).Draw(t, "src")
		if destChoice == srcChoice {
			t.Skip("sender never addresses itself")
		}

		wire := Transform(msg, srcChoice, destChoice, n)

		// The receiver strips the preamble and stops reading at the 6-bit
		// trailer tail, never seeing the sender's seventh trailer bit;
		// hand that exact slice to Parse.
		body := wire[len(protocol.Preamble) : len(wire)-1]

		parsed, err := Parse(body)
		require.NoError(t, err)
		assert.Equal(t, msg, parsed.Payload)
		assert.Equal(t, n%protocol.CounterModulus, parsed.Counter)
		assert.Equal(t, srcChoice, parsed.Source)
		assert.Equal(t, destChoice, parsed.Dest)
		assert.True(t, protocol.ValidSourceCheck(parsed.Source, parsed.Check))
	})
}

func TestParseRejectsShortFrame(t *testing.T) {
	_, err := Parse([]int{0, 0, 0, 0, 0, 1})
	assert.Error(t, err)
}

func TestTransformS1Example(t *testing.T) {
	// spec.md S1: node 01 sends payload 1010 to dest 10, first message
	// (counter=0); stuffing is vacuous.
	wire := Transform([]int{1, 0, 1, 0}, protocol.Node01, protocol.Node10, 0)
	expected := []int{
		0, 0, 0, 0, 0, 1, // preamble
		0, 0, 0, // counter
		0, 0, 1, 1, // check for src 01
		0, 1, // src
		1, 0, // dest
		1, 0, 1, 0, // payload
		0, 0, 0, 0, 0, 1, 1, // trailer
	}
	assert.Equal(t, expected, wire)
}

func TestParseS1ExampleStruct(t *testing.T) {
	// Same scenario as TestTransformS1Example, but parsing the wire back and
	// comparing the full Parsed struct at once: go-cmp flags which field (including which slice
	// element) diverges, which plain == on a struct with slice fields
	// can't do.
	wire := Transform([]int{1, 0, 1, 0}, protocol.Node01, protocol.Node10, 0)
	body := wire[len(protocol.Preamble) : len(wire)-1]

	parsed, err := Parse(body)
	require.NoError(t, err)

	want := Parsed{
		Counter: 0,
		Check:   []int{0, 0, 1, 1},
		Source:  protocol.Node01,
		Dest:    protocol.Node10,
		Payload: []int{1, 0, 1, 0},
	}
	if diff := cmp.Diff(want, parsed); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}
