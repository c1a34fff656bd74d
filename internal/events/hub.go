package events

import (
	"context"
	"sync"
)

// Hub fans calendar events out to per-org subscribers (websocket sessions).
// Implements DeliveryHandler so the outbox deliverer can feed it directly.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Entry]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Entry]struct{}{}}
}

// Subscribe registers a listener for an org's calendar events. The returned
// cancel func must be called when the session ends.
func (h *Hub) Subscribe(orgID string, buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Entry, buffer)
	h.mu.Lock()
	if h.subs[orgID] == nil {
		h.subs[orgID] = map[chan Entry]struct{}{}
	}
	h.subs[orgID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[orgID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, orgID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Handle delivers the entry to every subscriber of its org. Slow subscribers
// with full buffers are skipped rather than blocking delivery.
func (h *Hub) Handle(_ context.Context, entry Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[entry.OrgID] {
		select {
		case ch <- entry:
		default:
		}
	}
	return nil
}
