package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/camrover/internal/log"
	"github.com/ayusman/camrover/internal/server/api"
)

// DefaultStatusEvery is how often status snapshots are pushed.
const DefaultStatusEvery = 500 * time.Millisecond

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusHandler pushes arbiter snapshots to websocket clients.
type StatusHandler struct {
	ctl     api.Controller
	every   time.Duration
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	once    sync.Once
	stop    chan struct{}
}

// NewStatusHandler creates a StatusHandler and starts its broadcaster.
func NewStatusHandler(c api.Controller, every time.Duration) *StatusHandler {
	h := &StatusHandler{
		ctl:     c,
		every:   every,
		clients: make(map[*websocket.Conn]bool),
		stop:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests. The current snapshot is
// sent immediately after the upgrade.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	if msg, err := json.Marshal(h.ctl.Snapshot()); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *StatusHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster and disconnects every client.
func (h *StatusHandler) Close() {
	h.once.Do(func() {
		close(h.stop)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

// broadcast sends the latest snapshot to all connected clients.
func (h *StatusHandler) broadcast() {
	ticker := time.NewTicker(h.every)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, err := json.Marshal(h.ctl.Snapshot())
		if err != nil {
			log.Warn("failed to encode status", "err", err)
			continue
		}

		// Writes are serialized by holding the write lock.
		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}
