package node

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeongseonghan/acoustic-mac/internal/protocol"
)

// messageLine is one parsed line of messages.txt: a message to transmit,
// or a skip (Dest == -1) that still consumes a line and a confirmation but
// never reaches the Transmitter.
type messageLine struct {
	Bits []int
	Dest int // -1 means skip
}

// loadMessages parses messages.txt per spec §6: each line is
// "<bits> <dest>" where bits is a string of 0/1 and dest is 0-3 or -1.
// Any malformed line is fatal, per spec §7.
func loadMessages(path string) ([]messageLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open messages file %s", path)
	}
	defer f.Close()

	var lines []messageLine
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		ml, err := parseMessageLine(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "messages.txt line %d: %q", lineNo, raw)
		}
		lines = append(lines, ml)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read messages file %s", path)
	}
	return lines, nil
}

func parseMessageLine(raw string) (messageLine, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return messageLine{}, fmt.Errorf("expected \"<bits> <dest>\", got %d fields", len(fields))
	}

	bits := make([]int, len(fields[0]))
	for i, c := range fields[0] {
		switch c {
		case '0':
			bits[i] = 0
		case '1':
			bits[i] = 1
		default:
			return messageLine{}, fmt.Errorf("bit string contains non-binary character %q", c)
		}
	}
	if len(bits) == 0 {
		return messageLine{}, fmt.Errorf("empty bit string")
	}

	dest, err := strconv.Atoi(fields[1])
	if err != nil {
		return messageLine{}, fmt.Errorf("dest %q is not an integer", fields[1])
	}
	if dest != -1 && (dest < 0 || dest > 3) {
		return messageLine{}, fmt.Errorf("dest %d out of range (-1, 0-3)", dest)
	}

	return messageLine{Bits: bits, Dest: dest}, nil
}

// confirmer pauses for an interactive confirmation before every line of
// messages.txt, including skipped lines, matching Sender_n.py's
// process_messages. A no-op confirmer (used with --no-confirm) is just a
// function that returns immediately.
type confirmer func()

func stdinConfirmer() confirmer {
	reader := bufio.NewReader(os.Stdin)
	return func() {
		fmt.Print("Press Enter to continue...")
		reader.ReadString('\n')
	}
}

func noConfirm() confirmer {
	return func() {}
}

func addressFromDest(dest int) protocol.Address {
	return protocol.Address(dest)
}
