// Package receiver implements the Receiver State Machine (spec §4.4):
// continuously listen, synchronize to a preamble, decode one frame,
// validate, deduplicate, and dispatch an ACK.
package receiver

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jeongseonghan/acoustic-mac/internal/frame"
	"github.com/jeongseonghan/acoustic-mac/internal/line"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// State names the Receiver State Machine's current phase, mirroring the
// teacher's TransportState enum + String() shape.
type State int32

const (
	StateHuntOne State = iota
	StateSkipPreamble
	StateRead
	StateDispatch
)

func (s State) String() string {
	switch s {
	case StateHuntOne:
		return "HUNT_ONE"
	case StateSkipPreamble:
		return "SKIP_PREAMBLE"
	case StateRead:
		return "READ"
	case StateDispatch:
		return "DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// SymbolSource produces one classified symbol per call, blocking for
// roughly one chunk duration. It is the receiver's only view of the
// acoustic medium; in production it wraps audio capture + tone.Classify.
type SymbolSource interface {
	NextSymbol(ctx context.Context) (protocol.Symbol, error)
}

// ACKPlayer plays the fixed ACK waveform through the shared audio output.
type ACKPlayer interface {
	PlayACK(ctx context.Context) error
}

// Delivery is one newly-delivered, deduplicated frame.
type Delivery struct {
	Payload []int
	Source  protocol.Address
	Counter int
	At      time.Time
}

// Machine is the Receiver State Machine for one node.
type Machine struct {
	Self     protocol.Address
	Symbols  SymbolSource
	ACK      ACKPlayer
	Received *ReceivedSet

	// OnDeliver is invoked once per newly delivered frame, never for
	// duplicates. Required.
	OnDeliver func(Delivery)

	// Sleep and Now are overridable for tests; default to time.Sleep and
	// time.Now.
	Sleep func(time.Duration)
	Now   func() time.Time

	// Lock and Unlock, if set, bracket each full HUNT_ONE..DELIVER cycle
	// in Run. The Node Runtime uses these to arbitrate exclusive access
	// to the shared audio device with the Transmitter (spec §5).
	Lock   func()
	Unlock func()

	state atomic.Int32
}

// CurrentState reports the machine's phase, exposed for the monitor
// endpoint (SPEC_FULL §6.3).
func (m *Machine) CurrentState() State { return State(m.state.Load()) }

func (m *Machine) setState(s State) { m.state.Store(int32(s)) }

func (m *Machine) sleep(d time.Duration) {
	if m.Sleep != nil {
		m.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// rollingTimeout tracks a wall-clock deadline that resets on every
// classified symbol in {0,1,DELIMITER}, per spec §4.4/§5.
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

// Run drives the state machine until ctx is cancelled or the symbol
// source returns an error (audio device failure, which is fatal per
// spec §7).
func (m *Machine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if m.Lock != nil {
			m.Lock()
		}
		err := m.huntOne(ctx)
		if m.Unlock != nil {
			m.Unlock()
		}
		if err != nil {
			return err
		}
	}
}

// huntOne is HUNT_ONE -> SKIP_PREAMBLE -> READ -> VALIDATE -> DISPATCH ->
// DELIVER, returning to its caller (which loops back to HUNT_ONE) on any
// non-fatal outcome.
func (m *Machine) huntOne(ctx context.Context) error {
	m.setState(StateHuntOne)
	timeout := newRollingTimeout(m.now, protocol.TimeoutReceiver)

	for {
		sym, err := m.Symbols.NextSymbol(ctx)
		if err != nil {
			return fmt.Errorf("receiver: symbol source: %w", err)
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if sym == protocol.SymOne {
			break
		}
		if timeout.expired() {
			return nil // back to HUNT_ONE
		}
	}

	return m.skipPreamble(ctx)
}

func (m *Machine) skipPreamble(ctx context.Context) error {
	m.setState(StateSkipPreamble)
	timeout := newRollingTimeout(m.now, protocol.TimeoutReceiver)
	prev := protocol.SymOne

	for {
		sym, err := m.Symbols.NextSymbol(ctx)
		if err != nil {
			return fmt.Errorf("receiver: symbol source: %w", err)
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if sym != prev && sym == protocol.SymDelimiter {
			return m.read(ctx)
		}
		if sym != protocol.SymNone {
			prev = sym
		}
		if timeout.expired() {
			return nil
		}
	}
}

func (m *Machine) read(ctx context.Context) error {
	m.setState(StateRead)
	timeout := newRollingTimeout(m.now, protocol.TimeoutReceiver)
	dec := line.NewDecoder(protocol.SymDelimiter)

	var decoded []int
	for {
		sym, err := m.Symbols.NextSymbol(ctx)
		if err != nil {
			return fmt.Errorf("receiver: symbol source: %w", err)
		}
		if sym != protocol.SymNone {
			timeout.reset()
		}
		if bit, ok := dec.Feed(sym); ok {
			decoded = append(decoded, bit)
			// A 000001 tail inside the header (e.g. counter 000 followed
			// by check 0011) is not the trailer: keep reading until at
			// least a full header plus trailer has been decoded.
			if len(decoded) >= frame.MinBodyBits && hasTrailerTail(decoded) {
				return m.validate(ctx, decoded)
			}
		}
		if timeout.expired() {
			return nil
		}
	}
}

func hasTrailerTail(decoded []int) bool {
	if len(decoded) < len(protocol.TrailerRecv) {
		return false
	}
	tail := decoded[len(decoded)-len(protocol.TrailerRecv):]
	for i, b := range protocol.TrailerRecv {
		if tail[i] != b {
			return false
		}
	}
	return true
}

func (m *Machine) validate(ctx context.Context, decoded []int) error {
	if len(decoded) < frame.MinBodyBits {
		return nil // too short, back to HUNT_ONE
	}

	parsed, err := frame.Parse(decoded)
	if err != nil {
		return nil
	}

	if !protocol.ValidSourceCheck(parsed.Source, parsed.Check) {
		log.Printf("UNIDENTIFIED SENDER: source=%v check=%v", parsed.Source, parsed.Check)
		return nil
	}

	return m.dispatch(ctx, parsed)
}

func (m *Machine) dispatch(ctx context.Context, p frame.Parsed) error {
	m.setState(StateDispatch)
	addressedToSelf := p.Dest == m.Self
	addressedBroadcast := p.Dest == protocol.Broadcast && p.Source != m.Self

	switch {
	case addressedToSelf:
		m.sleep(protocol.ACKSendInit)
		if err := m.ACK.PlayACK(ctx); err != nil {
			return fmt.Errorf("receiver: play ACK: %w", err)
		}
	case addressedBroadcast:
		m.sleep(broadcastACKWait(m.Self, p.Source))
		if err := m.ACK.PlayACK(ctx); err != nil {
			return fmt.Errorf("receiver: play ACK: %w", err)
		}
	}

	if addressedToSelf || addressedBroadcast {
		m.deliver(p)
	}
	return nil
}

// broadcastACKWait implements the address-dependent broadcast ACK
// ordering of spec §4.4: node 01 always waits SENDER_INIT_TIME; node 10
// waits SENDER_INIT_TIME if the broadcaster is 01 and ACK_SEND_TIME if
// the broadcaster is 11; node 11 always waits ACK_SEND_TIME. This yields
// one non-overlapping ACK slot per responder.
func broadcastACKWait(self, source protocol.Address) time.Duration {
	switch self {
	case protocol.Node01:
		return protocol.SenderInitTime
	case protocol.Node10:
		if source == protocol.Node01 {
			return protocol.SenderInitTime
		}
		return protocol.ACKSendTime
	default: // protocol.Node11
		return protocol.ACKSendTime
	}
}

func (m *Machine) deliver(p frame.Parsed) {
	if !m.Received.AddIfNew(p.Counter, p.Source) {
		return
	}
	if m.OnDeliver != nil {
		m.OnDeliver(Delivery{
			Payload: p.Payload,
			Source:  p.Source,
			Counter: p.Counter,
			At:      m.now(),
		})
	}
}
