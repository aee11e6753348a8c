// Package monitor is the optional, non-authoritative observability
// endpoint (spec SPEC_FULL §6.3, C9): it exposes the Node Runtime's
// current status over HTTP and streams the events handed to
// Server.Publish over a WebSocket. It never participates in the acoustic protocol; its absence
// or failure must not affect the Tone Codec, Line Coder, Framer, Receiver
// State Machine or MAC/Transmitter.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local observability tool, no cross-origin concern
	},
}

// Event is one broadcast message, as passed to Server.Publish (cmd/node
// publishes one per sent or received frame).
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// hub fans Events out to every connected WebSocket client, one broadcast
// at a time, dropping any client whose write fails. Writes have no
// deadline, so a slow client delays the goroutine that calls Publish.
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

func (h *hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("monitor: marshal event: %v", err)
		return
	}

	// A full lock, not a read lock: a websocket.Conn supports only one
	// concurrent writer, and Publish may be called from several goroutines.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			go h.remove(conn)
		}
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade: %v", err)
		return
	}
	h.add(conn)

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
