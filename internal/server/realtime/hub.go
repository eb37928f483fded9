// Package realtime fans committed entry changes out to WebSocket
// subscribers. Subscriptions are filtered by owner and optionally domain;
// scope filtering is left to the clients.
package realtime

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

const DefaultBuffer = 256

type subscription struct {
	id     uint64
	owner  string
	domain string
	ch     chan models.Change
}

// Hub is an in-memory publish/subscribe point for entry changes.
type Hub struct {
	logger logging.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

func NewHub(logger logging.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		logger: logger.With("module", "realtime"),
		buffer: buffer,
		subs:   make(map[uint64]*subscription),
	}
}

// Subscribe returns the changes of owner's rows in domain ("" for all
// domains). The channel is closed by cancel.
func (h *Hub) Subscribe(owner, domain string) (<-chan models.Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscription{
		id:     h.nextID,
		owner:  owner,
		domain: domain,
		ch:     make(chan models.Change, h.buffer),
	}
	h.subs[sub.id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.unsubscribe(sub.id) })
	}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Publish delivers c to every matching subscription without blocking.
func (h *Hub) Publish(c models.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !matches(sub, c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.logger.Warn(context.Background(), "subscriber buffer full, dropping change",
				"subscriber", sub.id, "id", c.Row.ID, "event", c.EventType)
		}
	}
}

func matches(sub *subscription, c models.Change) bool {
	if sub.owner != c.Row.OwnerID {
		return false
	}
	return sub.domain == "" || sub.domain == c.Row.Domain
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
