package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// StatusSource reports the Node Runtime's live state; internal/node.Runtime
// satisfies it without importing this package.
type StatusSource interface {
	ContentionWindow() int
	ReceivedCount() int
	ReceiverState() string
	TransmitterState() string
	SequenceCounter() int
}

// Status is the JSON body of GET /api/status.
type Status struct {
	Address          int    `json:"address"`
	ContentionWindow int    `json:"contentionWindow"`
	ReceivedCount    int    `json:"receivedCount"`
	ReceiverState    string `json:"receiverState"`
	TransmitterState string `json:"transmitterState"`
	SequenceCounter  int    `json:"sequenceCounter"`
}

// Server is the monitor's HTTP+WebSocket endpoint.
type Server struct {
	mux     *http.ServeMux
	addr    string
	source  StatusSource
	address int
	hub     *hub
}

// NewServer builds a monitor Server bound to addr, reporting status from
// source and tagged with this node's own address.
func NewServer(addr string, address int, source StatusSource) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		addr:    addr,
		source:  source,
		address: address,
		hub:     newHub(),
	}
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/ws", s.hub.handleWebSocket)
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(Status{
		Address:          s.address,
		ContentionWindow: s.source.ContentionWindow(),
		ReceivedCount:    s.source.ReceivedCount(),
		ReceiverState:    s.source.ReceiverState(),
		TransmitterState: s.source.TransmitterState(),
		SequenceCounter:  s.source.SequenceCounter(),
	})
}

// Publish broadcasts one observational event to connected WebSocket
// clients. Safe to call from any goroutine; with no client connected it
// returns at once, and a slow client delays it until its write completes.
func (s *Server) Publish(eventType, message string) {
	s.hub.broadcast(Event{Type: eventType, Message: message, At: time.Now()})
}

// Start runs the HTTP server, blocking until it errors. Intended to be run
// in its own goroutine by cmd/node; a failure here must never take down
// the acoustic protocol goroutines.
func (s *Server) Start() error {
	log.Printf("monitor: listening on %s", s.addr)
	if err := http.ListenAndServe(s.addr, s.mux); err != nil {
		return fmt.Errorf("monitor: serve: %w", err)
	}
	return nil
}
