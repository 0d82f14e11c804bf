// Package specwatch is the optional read-only spectator feed: a
// WebSocket broadcast of tick summaries for a companion dashboard,
// gated behind SvSpectatorFeed. A hub fans a broadcast channel out to
// every registered connection; it never reads anything a client sends
// back — this feed is strictly outbound.
package specwatch

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// TickSummary is the read-only payload broadcast once per DoSnapshot.
type TickSummary struct {
	Tick        int32 `json:"tick"`
	Players     int   `json:"players"`
	Instances   int   `json:"instances"`
	BytesPerSec int   `json:"bytesPerSec"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans a broadcast channel out to every connected spectator.
// Clients cannot inject input: the only path is register/unregister/
// broadcast, there is no inbound command channel.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewHub builds an idle hub. Call Run on its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run drains register/unregister/broadcast until ctx-less shutdown via
// process exit.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, conn)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount reports the current spectator count, so the tick loop
// can skip building a broadcast payload when nobody is watching.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends one tick summary frame to every connected spectator.
// Called from the tick loop after each DoSnapshot; non-blocking under
// backpressure.
func (h *Hub) Publish(summary TickSummary) {
	if h.ClientCount() == 0 {
		return
	}
	frame, err := json.Marshal(map[string]any{
		"event": "tick",
		"data":  summary,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		log.Printf("⚠️ spectator broadcast channel full, dropping tick frame")
	}
}

// HandleSpectate upgrades GET /spectate to a WebSocket and registers
// the connection. It never reads commands back from the client: the
// read loop exists only to notice disconnects.
func (h *Hub) HandleSpectate(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ spectator upgrade failed: %v", err)
		return
	}

	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
