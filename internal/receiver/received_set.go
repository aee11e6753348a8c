package receiver

import (
	"sync"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// ReceivedSet is the process-lifetime dedup set of (counter, source)
// tuples for frames already delivered. Per spec §9's design note on
// global mutable state, it is owned by the Node Runtime and handed to the
// Receiver State Machine by reference; only the Receiver role mutates it.
type ReceivedSet struct {
	mu   sync.Mutex
	seen map[key]struct{}
}

type key struct {
	counter int
	source  protocol.Address
}

// NewReceivedSet creates an empty dedup set.
func NewReceivedSet() *ReceivedSet {
	return &ReceivedSet{seen: make(map[key]struct{})}
}

// AddIfNew records (counter, source) and reports whether it was newly
// added. A false return means this exact frame has already been
// delivered and must not be delivered again.
func (s *ReceivedSet) AddIfNew(counter int, source protocol.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{counter, source}
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	return true
}

// Len reports the number of distinct frames delivered so far, exposed for
// the monitor endpoint.
func (s *ReceivedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
