// Package mac implements the MAC/Transmitter (spec §4.5, CSMA/CA) and the
// ACK Receiver (spec §4.6) it depends on.
package mac

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jeongseonghan/acoustic-mac/internal/line"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// State names the Transmitter's current CSMA/CA phase, mirroring the
// teacher's TransportState enum + String() shape.
type State int32

const (
	StateIdle State = iota
	StateCarrierSense
	StateDIFS
	StateBackoff
	StateSIFS
	StateTransmitting
	StateAwaitingACK
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCarrierSense:
		return "CARRIER_SENSE"
	case StateDIFS:
		return "DIFS"
	case StateBackoff:
		return "BACKOFF"
	case StateSIFS:
		return "SIFS"
	case StateTransmitting:
		return "TRANSMITTING"
	case StateAwaitingACK:
		return "AWAITING_ACK"
	default:
		return "UNKNOWN"
	}
}

// FramePlayer emits a synthesized waveform through the shared audio
// output, returning only after the last sample is written (spec §5:
// "audio playback is synchronous").
type FramePlayer interface {
	Play(ctx context.Context, waveform []float32) error
}

// Transmitter implements CSMA/CA channel access for one node.
type Transmitter struct {
	Self    protocol.Address
	Symbols SymbolSource
	Player  FramePlayer
	RNG     *rand.Rand

	// DIFS, SIFS and Slot override the protocol package's defaults when
	// set (Node Config's timing section, SPEC_FULL §6.2); zero means use
	// the default.
	DIFS time.Duration
	SIFS time.Duration
	Slot time.Duration

	cw    int // current contention window; zero value is replaced with CWMin lazily
	state atomic.Int32

	Sleep func(time.Duration)
	Now   func() time.Time
}

// CurrentState reports the transmitter's phase, exposed for the monitor
// endpoint (SPEC_FULL §6.3).
func (tx *Transmitter) CurrentState() State { return State(tx.state.Load()) }

func (tx *Transmitter) setState(s State) { tx.state.Store(int32(s)) }

func (tx *Transmitter) difs() time.Duration {
	if tx.DIFS != 0 {
		return tx.DIFS
	}
	return protocol.DIFS
}

func (tx *Transmitter) sifs() time.Duration {
	if tx.SIFS != 0 {
		return tx.SIFS
	}
	return protocol.SIFS
}

func (tx *Transmitter) slot() time.Duration {
	if tx.Slot != 0 {
		return tx.Slot
	}
	return protocol.SlotDuration
}

func (tx *Transmitter) sleep(d time.Duration) {
	if tx.Sleep != nil {
		tx.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (tx *Transmitter) now() time.Time {
	if tx.Now != nil {
		return tx.Now()
	}
	return time.Now()
}

// CW reports the transmitter's current contention window, exposed for the
// monitor endpoint and tests.
func (tx *Transmitter) CW() int { return tx.contentionWindow() }

func (tx *Transmitter) contentionWindow() int {
	if tx.cw == 0 {
		tx.cw = protocol.CWMin
	}
	return tx.cw
}

func (tx *Transmitter) doubleCW() {
	cw := tx.contentionWindow() * 2
	if cw > protocol.CWMax {
		cw = protocol.CWMin
	}
	tx.cw = cw
}

// carrierSense captures one chunk and reports whether it classifies as a
// data or delimiter symbol (spec §4.5's CarrierSense).
func (tx *Transmitter) carrierSense(ctx context.Context) (bool, error) {
	sym, err := tx.Symbols.NextSymbol(ctx)
	if err != nil {
		return false, err
	}
	return sym == protocol.SymZero || sym == protocol.SymOne || sym == protocol.SymDelimiter, nil
}

// senseFor repeatedly senses for wall-clock duration d, returning true on
// the first detection or false once d elapses with none (spec §4.5's
// SenseFor).
func (tx *Transmitter) senseFor(ctx context.Context, d time.Duration) (bool, error) {
	deadline := tx.now().Add(d)
	for tx.now().Before(deadline) {
		busy, err := tx.carrierSense(ctx)
		if err != nil {
			return false, err
		}
		if busy {
			return true, nil
		}
	}
	return false, nil
}

// Transmit runs the full CSMA/CA procedure for one already-framed wire
// vector, retrying from step 1 on any channel contention or ACK failure,
// until success or ctx is cancelled. It returns the timestamp at which
// the transmission was confirmed.
func (tx *Transmitter) Transmit(ctx context.Context, wireFrame []int, dest protocol.Address) (time.Time, error) {
	waveform := line.Encode(wireFrame)

	var ack1, ack2 bool // broadcast ACK latches, scoped to this logical message across all retries

	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}

		// Step 1: wait out a currently busy channel.
		tx.setState(StateCarrierSense)
		for {
			busy, err := tx.carrierSense(ctx)
			if err != nil {
				return time.Time{}, fmt.Errorf("mac: carrier sense: %w", err)
			}
			if !busy {
				break
			}
		}

		// Step 2: DIFS.
		tx.setState(StateDIFS)
		busyDuringDIFS, err := tx.senseFor(ctx, tx.difs())
		if err != nil {
			return time.Time{}, fmt.Errorf("mac: DIFS sense: %w", err)
		}
		if busyDuringDIFS {
			continue
		}

		// Step 3: random backoff, only idle slots decrement.
		tx.setState(StateBackoff)
		slots := tx.RNG.Intn(tx.contentionWindow() + 1)
		for slots > 0 {
			busy, err := tx.senseFor(ctx, tx.slot())
			if err != nil {
				return time.Time{}, fmt.Errorf("mac: slot sense: %w", err)
			}
			if !busy {
				slots--
			}
		}

		// Step 4: SIFS.
		tx.setState(StateSIFS)
		busyDuringSIFS, err := tx.senseFor(ctx, tx.sifs())
		if err != nil {
			return time.Time{}, fmt.Errorf("mac: SIFS sense: %w", err)
		}
		if busyDuringSIFS {
			log.Printf("channel busy at SIFS, doubling CW from %d", tx.contentionWindow())
			tx.doubleCW()
			continue
		}

		// Step 5: transmit.
		tx.setState(StateTransmitting)
		if err := tx.Player.Play(ctx, waveform); err != nil {
			return time.Time{}, fmt.Errorf("mac: play frame: %w", err)
		}

		tx.setState(StateAwaitingACK)
		if dest == protocol.Broadcast {
			ok, err := tx.awaitBroadcastACKs(ctx, &ack1, &ack2)
			if err != nil {
				return time.Time{}, fmt.Errorf("mac: await broadcast ACKs: %w", err)
			}
			if ok {
				tx.setState(StateIdle)
				return tx.now(), nil
			}
			continue
		}

		ok, err := AwaitACK(ctx, tx.Symbols, tx.Now)
		if err != nil {
			return time.Time{}, fmt.Errorf("mac: await ACK: %w", err)
		}
		if ok {
			tx.setState(StateIdle)
			return tx.now(), nil
		}
		log.Printf("ACK not received for frame to %v", dest)
	}
}

// awaitBroadcastACKs implements spec §4.5 step 7: two ACKs are expected in
// sequence with an inter-ACK gap of RECEIVER_INIT_TIME. Once one of the
// two latches confirmed on a prior attempt, subsequent attempts wait out
// ACK_SEND_TIME in its place rather than listening again (see DESIGN.md's
// Open Question 2).
func (tx *Transmitter) awaitBroadcastACKs(ctx context.Context, ack1, ack2 *bool) (bool, error) {
	if !*ack1 {
		ok, err := AwaitACK(ctx, tx.Symbols, tx.Now)
		if err != nil {
			return false, err
		}
		*ack1 = ok
	} else {
		tx.sleep(protocol.ACKSendTime)
	}

	tx.sleep(protocol.ReceiverInitTime)

	if !*ack2 {
		ok, err := AwaitACK(ctx, tx.Symbols, tx.Now)
		if err != nil {
			return false, err
		}
		*ack2 = ok
	} else {
		tx.sleep(protocol.ACKSendTime)
	}

	return *ack1 && *ack2, nil
}
