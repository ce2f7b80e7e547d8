package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

// Hub fans transitions out to Server-Sent Events subscribers.
// A subscriber that falls behind loses events rather than blocking the engine.
type Hub struct {
	log    *zap.Logger
	buffer int

	mu   sync.Mutex
	subs map[chan domain.Transition]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: log, buffer: 64, subs: make(map[chan domain.Transition]struct{})}
}

func (h *Hub) Observe(_ context.Context, t domain.Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- t:
		default:
			h.log.Warn("sse_subscriber_lagging", zap.String("check", t.Key.String()))
		}
	}
}

// Subscribe returns a channel of transitions and a func that unsubscribes.
func (h *Hub) Subscribe() (<-chan domain.Transition, func()) {
	ch := make(chan domain.Transition, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	events, cancel := h.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case t := <-events:
			b, err := json.Marshal(t)
			if err != nil {
				h.log.Warn("sse_encode_error", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", t.ID, t.Phase, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
