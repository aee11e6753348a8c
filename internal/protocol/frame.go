package protocol

// Fixed bit vectors that appear literally on the wire. Unlike the header
// fields (counter, check, source, dest), these never vary per frame.
var (
	// Preamble precedes every data frame: five 0-bits followed by a
	// closing 1 (each with its delimiter on the wire).
	Preamble = []int{0, 0, 0, 0, 0, 1}

	// TrailerSend is what the sender emits after the payload.
	TrailerSend = []int{0, 0, 0, 0, 0, 1, 1}

	// TrailerRecv is the prefix of TrailerSend the receiver matches
	// against; the seventh bit is absorbed by the rolling decode of
	// whatever follows (see the trailer-asymmetry open question).
	TrailerRecv = []int{0, 0, 0, 0, 0, 1}
)

// ACKFrame is the complete, fixed literal bit vector a receiver plays back
// to acknowledge a frame.
var ACKFrame = []int{1, 1, 1, 1, 0, 1, 0, 0, 0, 1, 1}

// ACKPayload is ACKFrame[5:10], the portion the ACK receiver's READ state
// accumulates and matches against after HUNT_ZERO/SKIP_ZEROS has consumed
// the leading four 1s, the 0 that ends them, and their delimiters.
var ACKPayload = []int{1, 0, 0, 0, 1}

// CounterBits, CheckBits, SourceBits, DestBits are the field widths used
// throughout the framer and receiver state machine.
const (
	CounterBits = 3
	CheckBits   = 4
	SourceBits  = 2
	DestBits    = 2

	// HeaderBits is the combined width of counter+check+source+dest,
	// the "11" referenced by the receiver's VALIDATE minimum-length check.
	HeaderBits = CounterBits + CheckBits + SourceBits + DestBits

	// CounterModulus is the wrap point of the 3-bit sequence counter.
	CounterModulus = 8
)
