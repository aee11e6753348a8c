package receiver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/acoustic-mac/internal/frame"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// fakeSymbolSource replays a fixed symbol sequence, then blocks (returns
// SymNone forever) so the rolling timeout can fire in tests that want it
// to.
type fakeSymbolSource struct {
	symbols []protocol.Symbol
	i       int
}

func (f *fakeSymbolSource) NextSymbol(ctx context.Context) (protocol.Symbol, error) {
	if f.i < len(f.symbols) {
		s := f.symbols[f.i]
		f.i++
		return s, nil
	}
	return protocol.SymNone, nil
}

type fakeACKPlayer struct{ plays int }

func (f *fakeACKPlayer) PlayACK(ctx context.Context) error {
	f.plays++
	return nil
}

// frameSymbols turns a bit-level wire frame into the symbol stream the
// Line Coder would produce feeding it to the decoder: each bit bracketed
// by its tone then a delimiter.
func frameSymbols(bits []int) []protocol.Symbol {
	out := make([]protocol.Symbol, 0, len(bits)*2)
	for _, b := range bits {
		out = append(out, protocol.SymbolOf(b), protocol.SymDelimiter)
	}
	return out
}

func runOneShot(t *testing.T, self protocol.Address, wire []int) ([]Delivery, *fakeACKPlayer) {
	t.Helper()
	var deliveries []Delivery
	ack := &fakeACKPlayer{}
	m := &Machine{
		Self:     self,
		Symbols:  &fakeSymbolSource{symbols: frameSymbols(wire)},
		ACK:      ack,
		Received: NewReceivedSet(),
		OnDeliver: func(d Delivery) {
			deliveries = append(deliveries, d)
		},
		Sleep: func(time.Duration) {}, // don't actually wait seconds in tests
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := m.huntOne(ctx)
	require.NoError(t, err)
	return deliveries, ack
}

func TestUnicastDeliveryS1(t *testing.T) {
	wire := frame.Transform([]int{1, 0, 1, 0}, protocol.Node01, protocol.Node10, 0)
	deliveries, ack := runOneShot(t, protocol.Node10, wire)

	require.Len(t, deliveries, 1)
	assert.Equal(t, []int{1, 0, 1, 0}, deliveries[0].Payload)
	assert.Equal(t, protocol.Node01, deliveries[0].Source)
	assert.Equal(t, 1, ack.plays)
}

func TestNotAddressedToUsNoDeliveryNoACK(t *testing.T) {
	wire := frame.Transform([]int{1, 1}, protocol.Node01, protocol.Node10, 0)
	deliveries, ack := runOneShot(t, protocol.Node11, wire)

	assert.Empty(t, deliveries)
	assert.Equal(t, 0, ack.plays)
}

func TestDuplicateSuppressionS3(t *testing.T) {
	wire := frame.Transform([]int{1, 1, 0}, protocol.Node01, protocol.Node10, 3)

	received := NewReceivedSet()
	var deliveries []Delivery
	ack := &fakeACKPlayer{}

	for i := 0; i < 2; i++ {
		m := &Machine{
			Self:      protocol.Node10,
			Symbols:   &fakeSymbolSource{symbols: frameSymbols(wire)},
			ACK:       ack,
			Received:  received,
			OnDeliver: func(d Delivery) { deliveries = append(deliveries, d) },
			Sleep:     func(time.Duration) {},
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := m.huntOne(ctx)
		cancel()
		require.NoError(t, err)
	}

	assert.Len(t, deliveries, 1, "duplicate (counter,source) must be delivered exactly once")
	assert.Equal(t, 2, ack.plays, "receiver ACKs every valid frame even if already delivered")
}

func TestBroadcastACKOrdering(t *testing.T) {
	wire := frame.Transform([]int{0, 1}, protocol.Node01, protocol.Broadcast, 1)

	cases := []struct {
		self protocol.Address
		want time.Duration
	}{
		{protocol.Node10, protocol.SenderInitTime},
		{protocol.Node11, protocol.ACKSendTime},
	}
	for _, c := range cases {
		var waited time.Duration
		ack := &fakeACKPlayer{}
		m := &Machine{
			Self:      c.self,
			Symbols:   &fakeSymbolSource{symbols: frameSymbols(wire)},
			ACK:       ack,
			Received:  NewReceivedSet(),
			OnDeliver: func(Delivery) {},
			Sleep:     func(d time.Duration) { waited = d },
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, m.huntOne(ctx))
		cancel()

		assert.Equal(t, c.want, waited)
		assert.Equal(t, 1, ack.plays)
	}
}

func TestUnidentifiedSenderDropsFrame(t *testing.T) {
	wire := frame.Transform([]int{1}, protocol.Node01, protocol.Node10, 0)
	// Corrupt the check pattern bits (indices 9..12, right after the
	// 6-bit preamble and 3-bit counter).
	wire[9], wire[10], wire[11], wire[12] = 1, 1, 1, 1

	deliveries, ack := runOneShot(t, protocol.Node10, wire)
	assert.Empty(t, deliveries)
	assert.Equal(t, 0, ack.plays)
}

func TestTimeoutReturnsToHuntOneWithNoOutput(t *testing.T) {
	// S6: silence only; huntOne should return nil once TO_R elapses,
	// having produced no output.
	m := &Machine{
		Self:      protocol.Node10,
		Symbols:   &fakeSymbolSource{symbols: nil},
		ACK:       &fakeACKPlayer{},
		Received:  NewReceivedSet(),
		OnDeliver: func(Delivery) { t.Fatal("must not deliver on pure silence") },
		Now:       func() time.Time { return fixedClock.now() },
		Sleep:     func(time.Duration) {},
	}
	fixedClock.reset()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.huntOne(ctx))
}

// fixedClock lets the timeout test advance time deterministically instead
// of sleeping TO_R wall-clock seconds.
var fixedClock = &manualClock{}

type manualClock struct{ t time.Time }

func (m *manualClock) reset() { m.t = time.Unix(0, 0) }
func (m *manualClock) now() time.Time {
	m.t = m.t.Add(400 * time.Millisecond)
	return m.t
}
