package node

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jeongseonghan/acoustic-mac/internal/audio"
	"github.com/jeongseonghan/acoustic-mac/internal/frame"
	"github.com/jeongseonghan/acoustic-mac/internal/mac"
	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
	"github.com/jeongseonghan/acoustic-mac/internal/receiver"
)

// Config configures one Runtime. Zero-value timing fields fall back to the
// protocol package's defaults; callers that load a Node Config file (C8)
// populate these from it.
type Config struct {
	Self           protocol.Address
	MessagesPath   string
	SendLogPath    string
	ReceiveLogPath string
	NoConfirm      bool

	DIFS time.Duration
	SIFS time.Duration
	Slot time.Duration
}

// Runtime is the Node Runtime (spec §5/§9): it owns the audio device,
// the sequence counter, and the received-set, and alternates the Receiver
// and Transmitter roles over one mutex-guarded device handle.
type Runtime struct {
	self protocol.Address
	io   audio.IO

	deviceMu sync.Mutex

	received  *receiver.ReceivedSet
	counter   int
	counterMu sync.Mutex

	recv *receiver.Machine
	tx   *mac.Transmitter

	sendLog    *logSink
	receiveLog *logSink

	noConfirm bool
	msgPath   string

	// onEvent, if set, is invoked once per delivered frame and once per
	// sent frame; the Monitor (C9) hangs its
	// WebSocket broadcast off this without the core protocol depending on
	// monitor at all.
	onEvent func(string)
}

// New constructs a Runtime around an already-open audio.IO.
func New(cfg Config, io audio.IO) (*Runtime, error) {
	sendLog, err := openLogSink(cfg.SendLogPath)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	receiveLog, err := openLogSink(cfg.ReceiveLogPath)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	r := &Runtime{
		self:       cfg.Self,
		io:         io,
		received:   receiver.NewReceivedSet(),
		sendLog:    sendLog,
		receiveLog: receiveLog,
		noConfirm:  cfg.NoConfirm,
		msgPath:    cfg.MessagesPath,
	}

	symbols := symbolSource{io: io}

	r.recv = &receiver.Machine{
		Self:     cfg.Self,
		Symbols:  symbols,
		ACK:      ackPlayer{io: io},
		Received: r.received,
		OnDeliver: func(d receiver.Delivery) {
			r.receiveLog.logReceived(d.Payload, d.Source, d.At)
			r.emit(fmt.Sprintf("delivered from %d counter=%d", d.Source, d.Counter))
		},
		Lock:   r.deviceMu.Lock,
		Unlock: r.deviceMu.Unlock,
	}

	r.tx = &mac.Transmitter{
		Self:    cfg.Self,
		Symbols: symbols,
		Player:  framePlayer{io: io},
		RNG:     rand.New(rand.NewSource(time.Now().UnixNano())),
		DIFS:    cfg.DIFS,
		SIFS:    cfg.SIFS,
		Slot:    cfg.Slot,
	}

	return r, nil
}

func (r *Runtime) emit(msg string) {
	if r.onEvent != nil {
		r.onEvent(msg)
	}
}

// OnEvent registers a callback for observational events; used by the
// Monitor (C9) only. Must be called before Run.
func (r *Runtime) OnEvent(f func(string)) { r.onEvent = f }

// ReceivedCount reports the number of distinct frames delivered so far,
// exposed for the monitor endpoint.
func (r *Runtime) ReceivedCount() int { return r.received.Len() }

// ContentionWindow reports the Transmitter's current CW, exposed for the
// monitor endpoint.
func (r *Runtime) ContentionWindow() int { return r.tx.CW() }

// ReceiverState reports the Receiver State Machine's current phase,
// exposed for the monitor endpoint.
func (r *Runtime) ReceiverState() string { return r.recv.CurrentState().String() }

// TransmitterState reports the Transmitter's current CSMA/CA phase,
// exposed for the monitor endpoint.
func (r *Runtime) TransmitterState() string { return r.tx.CurrentState().String() }

// SequenceCounter reports the next outbound message counter value,
// exposed for the monitor endpoint.
func (r *Runtime) SequenceCounter() int {
	r.counterMu.Lock()
	defer r.counterMu.Unlock()
	return r.counter
}

// Close releases the runtime's log files. The audio device is owned by
// the caller (cmd/node), not the Runtime.
func (r *Runtime) Close() error {
	if err := r.sendLog.Close(); err != nil {
		return err
	}
	return r.receiveLog.Close()
}

// Run starts the Receiver State Machine in the background and drives
// messages.txt to completion in the foreground, returning when ctx is
// cancelled or the message file is exhausted and the caller stops.
func (r *Runtime) Run(ctx context.Context) error {
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- r.recv.Run(ctx)
	}()

	if err := r.processMessages(ctx); err != nil {
		return fmt.Errorf("node: process messages: %w", err)
	}

	select {
	case err := <-recvErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (r *Runtime) processMessages(ctx context.Context) error {
	lines, err := loadMessages(r.msgPath)
	if err != nil {
		return err
	}

	confirm := noConfirm()
	if !r.noConfirm {
		confirm = stdinConfirmer()
	}

	for _, ml := range lines {
		confirm()

		// The counter advances for every loaded line, skipped or not --
		// Sender_n.py's process_messages increments MESSAGE_COUNT
		// unconditionally and only gates the transmit call on dest != -1.
		n := r.nextCounter()
		if ml.Dest == -1 {
			continue
		}

		dest := addressFromDest(ml.Dest)
		wire := frame.Transform(ml.Bits, r.self, dest, n)

		r.deviceMu.Lock()
		at, err := r.tx.Transmit(ctx, wire, dest)
		r.deviceMu.Unlock()
		if err != nil {
			return fmt.Errorf("transmit to %d: %w", dest, err)
		}

		r.sendLog.logSent(ml.Bits, dest, at)
		r.emit(fmt.Sprintf("sent to %d counter=%d", dest, n))

		if err := ctx.Err(); err != nil {
			return nil
		}
	}
	return nil
}

func (r *Runtime) nextCounter() int {
	r.counterMu.Lock()
	defer r.counterMu.Unlock()
	n := r.counter
	r.counter = (r.counter + 1) % protocol.CounterModulus
	return n
}
