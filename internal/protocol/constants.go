package protocol

import "time"

// Audio / tone constants. Defaults from the configuration table; a Node
// config may override DIFS, SIFS and the slot duration but not the tone
// frequencies or sample rate, which are baked into the wire format.
const (
	SampleRate  = 44100
	BitDuration = 200 * time.Millisecond
	ChunkSize   = SampleRate / 5 // sample_rate * bit_duration = 8820

	FreqZero      = 440.0
	FreqOne       = 1320.0
	FreqDelimiter = 880.0
	Tolerance     = 50.0
)

// MAC timing constants. Of these, only SIFS, DIFS and SlotDuration can be
// overridden per node via config.
const (
	CWMin = 4
	CWMax = 1024

	SIFS         = 300 * time.Millisecond
	DIFS         = 1500 * time.Millisecond
	SlotDuration = 1 * time.Second

	TimeoutReceiver = 1500 * time.Millisecond
	TimeoutACK      = 1500 * time.Millisecond

	ACKSendInit      = 1 * time.Second
	ACKSendTime      = 6400 * time.Millisecond
	ReceiverInitTime = 500 * time.Millisecond
	SenderInitTime   = 1 * time.Second
)

// FrequencyFor returns the tone frequency associated with a data/delimiter
// symbol. Panics on SymNone, which never goes out on the wire.
func FrequencyFor(s Symbol) float64 {
	switch s {
	case SymZero:
		return FreqZero
	case SymOne:
		return FreqOne
	case SymDelimiter:
		return FreqDelimiter
	default:
		panic("protocol: FrequencyFor called on SymNone")
	}
}
