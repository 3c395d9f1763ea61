// Package stream fans rendered board views out to server-sent event clients.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"stopboard.app/internal/clock"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/rotation"
)

const (
	// KeepAliveInterval is how often an idle stream receives a comment line.
	KeepAliveInterval = 15 * time.Second

	clientBuffer = 10
)

type client struct {
	send chan []byte
}

// Hub is a board renderer that publishes every view to the connected
// clients. A slow client misses views rather than stalling the board.
type Hub struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte
	dropped uint64

	closed    chan struct{}
	closeOnce sync.Once
}

func NewHub(c clock.Clock, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clock:   c,
		logger:  logger.With(slog.String("component", "stream_hub")),
		clients: make(map[*client]struct{}),
		closed:  make(chan struct{}),
	}
}

// Close ends every open stream and makes new ones return right after their
// headers. http.Server.Shutdown does not cancel streaming requests, so the
// server registers Close with RegisterOnShutdown.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Render encodes view once and offers it to every client without blocking.
func (h *Hub) Render(view rotation.ViewModel) {
	data, err := json.Marshal(view)
	if err != nil {
		logging.LogError(h.logger, "failed to encode view for stream", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped++
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many views were skipped for slow clients.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

func (h *Hub) register() (*client, []byte) {
	c := &client{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return c, h.latest
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ServeHTTP streams views as "data:" events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The server's write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c, initial := h.register()
	defer h.unregister(c)

	if initial != nil {
		fmt.Fprintf(w, "data: %s\n\n", initial)
	}
	flusher.Flush()

	keepAlive := h.clock.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closed:
			return
		case data := <-c.send:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
