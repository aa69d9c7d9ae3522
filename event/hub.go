package event

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// client is a single SSE connection scoped to one session.
type client struct {
	session string
	ch      chan []byte
}

// Hub fans session events out to connected SSE clients and in-process
// subscribers. A client only receives events for the session it
// subscribed to. Slow consumers drop events rather than blocking
// publishers.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*client]struct{}
	subscribers map[*subscriber]struct{}
	logger      *slog.Logger
}

// subscriber is an in-process consumer of one session's events.
type subscriber struct {
	session string
	ch      chan Event
}

// NewHub creates a Hub ready to accept connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:     make(map[*client]struct{}),
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

// Publish delivers an event to every consumer subscribed to the session.
func (h *Hub) Publish(sessionID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("hub publish marshal", slog.Any("err", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.session != sessionID {
			continue
		}
		select {
		case c.ch <- data:
		default:
			// Drop event if client is slow — don't block
		}
	}
	for s := range h.subscribers {
		if s.session != sessionID {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Subscribe registers an in-process consumer for a session's events.
// The returned function unsubscribes it.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	s := &subscriber{session: sessionID, ch: make(chan Event, 64)}
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()

	return s.ch, func() {
		h.mu.Lock()
		delete(h.subscribers, s)
		h.mu.Unlock()
	}
}

// ServeSSE handles an SSE connection request for one session.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c := &client{session: sessionID, ch: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.ch)
	}()

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-c.ch:
			if !ok {
				return
			}
			// Each SSE "data:" line must not contain newlines
			for _, line := range strings.Split(string(data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}
