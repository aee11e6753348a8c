package mac

import (
	"context"
	"time"

	"github.com/jeongseonghan/acoustic-mac/internal/line"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// SymbolSource produces one classified symbol per call, blocking for
// roughly one chunk duration. Shared shape with receiver.SymbolSource;
// both are satisfied by the same audio-backed implementation since the
// Transmitter and Receiver never listen concurrently (spec §5).
type SymbolSource interface {
	NextSymbol(ctx context.Context) (protocol.Symbol, error)
}

type rollingTimeout struct {
	deadline time.Time
	now      func() time.Time
	limit    time.Duration
}

func newRollingTimeout(now func() time.Time, limit time.Duration) *rollingTimeout {
	r := &rollingTimeout{now: now, limit: limit}
	r.reset()
	return r
}

func (r *rollingTimeout) reset()        { r.deadline = r.now().Add(r.limit) }
func (r *rollingTimeout) expired() bool { return r.now().After(r.deadline) }

// AwaitACK implements the ACK Receiver (spec §4.6): HUNT_ZERO -> SKIP_ZEROS
// -> READ, with a rolling timeout TO_A reset on any classified symbol. It
// returns true only on an exact match of the ACK payload.
func AwaitACK(ctx context.Context, symbols SymbolSource, now func() time.Time) (bool, error) {
	if now == nil {
		now = time.Now
	}
	timeout := newRollingTimeout(now, protocol.TimeoutACK)

	// HUNT_ZERO
	for {
		sym, err := symbols.NextSymbol(ctx)
		if err != nil {
			return false, err
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if sym == protocol.SymZero {
			break
		}
		if timeout.expired() {
			return false, nil
		}
	}

	// SKIP_ZEROS
	for {
		sym, err := symbols.NextSymbol(ctx)
		if err != nil {
			return false, err
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if sym == protocol.SymDelimiter {
			break
		}
		if timeout.expired() {
			return false, nil
		}
	}

	// READ
	dec := line.NewDecoder(protocol.SymDelimiter)
	var decoded []int
	for {
		sym, err := symbols.NextSymbol(ctx)
		if err != nil {
			return false, err
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if bit, ok := dec.Feed(sym); ok {
			decoded = append(decoded, bit)
			if len(decoded) > len(protocol.ACKPayload) {
				return false, nil
			}
			if len(decoded) == len(protocol.ACKPayload) {
				return bitsEqual(decoded, protocol.ACKPayload), nil
			}
		}
		if timeout.expired() {
			return false, nil
		}
	}
}

func bitsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
