package node

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// logSink appends one line per sent or received frame to a log file and
// echoes the same line to stdout, per spec §6's send.txt/receive.txt
// contract.
type logSink struct {
	mu   sync.Mutex
	file *os.File
}

func openLogSink(path string) (*logSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", path)
	}
	return &logSink{file: f}, nil
}

func (s *logSink) Close() error {
	return s.file.Close()
}

func (s *logSink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.file, line)
	fmt.Println(line)
}

func bitsList(bits []int) string {
	out := "["
	for i, b := range bits {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", b)
	}
	return out + "]"
}

// logSent formats and writes one [SENT] line, per spec §6.
func (s *logSink) logSent(payload []int, dest protocol.Address, at time.Time) {
	s.writeLine(fmt.Sprintf("[SENT]: %s %d %s", bitsList(payload), dest, at.Format("15:04:05")))
}

// logReceived formats and writes one [RECVD] line, per spec §6.
func (s *logSink) logReceived(payload []int, source protocol.Address, at time.Time) {
	s.writeLine(fmt.Sprintf("[RECVD]: %s %d %s", bitsList(payload), source, at.Format("15:04:05")))
}
