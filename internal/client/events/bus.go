// Package events is the in-process publish/subscribe channel between the sync
// engine and whatever renders its state.
//
// Every change is published twice: on TopicAll and on the domain topic
// returned by Topic. Publish never blocks; each subscriber has its own
// buffered queue drained by its own goroutine, and a subscriber that falls
// behind loses events rather than stalling the engine.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// TopicAll receives changes of every domain.
const TopicAll = "entries:changed"

// Topic returns the topic of a single domain.
func Topic(domain string) string {
	return TopicAll + ":" + domain
}

type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionReload Action = "reload"
)

// Event carries the complete post-change list of the view that changed.
// Reverted is set when the change undoes an optimistic write.
type Event struct {
	Domain    string
	Action    Action
	Data      []models.Entry
	Timestamp time.Time
	Reverted  bool
}

type Handler func(Event)

const DefaultBuffer = 64

type subscriber struct {
	id    uint64
	topic string
	ch    chan Event
	done  chan struct{}
}

type Bus struct {
	logger logging.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
}

func NewBus(logger logging.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		logger: logger.With("module", "events"),
		buffer: buffer,
		subs:   make(map[string]map[uint64]*subscriber),
	}
}

// Subscribe registers fn on topic and returns a function that removes it.
// Calling the returned function more than once is safe.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	s := &subscriber{
		id:    b.nextID,
		topic: topic,
		ch:    make(chan Event, b.buffer),
		done:  make(chan struct{}),
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*subscriber)
	}
	b.subs[topic][s.id] = s

	go b.drain(s, fn)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s) })
	}
}

// Publish delivers e to the subscribers of TopicAll and of e's domain.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.deliver(TopicAll, e)
	if e.Domain != "" {
		b.deliver(Topic(e.Domain), e)
	}
}

func (b *Bus) deliver(topic string, e Event) {
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- e:
		default:
			b.logger.Warn(context.Background(), "subscriber queue full, dropping event",
				"topic", topic, "subscriber", s.id, "action", e.Action)
		}
	}
}

func (b *Bus) drain(s *subscriber, fn Handler) {
	defer close(s.done)
	for e := range s.ch {
		b.call(s, fn, e)
	}
}

func (b *Bus) call(s *subscriber, fn Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), "subscriber panicked", "topic", s.topic, "subscriber", s.id, "panic", r)
		}
	}()
	fn(e)
}

func (b *Bus) remove(s *subscriber) {
	b.mu.Lock()
	if set, ok := b.subs[s.topic]; ok {
		if _, ok := set[s.id]; ok {
			delete(set, s.id)
			close(s.ch)
		}
		if len(set) == 0 {
			delete(b.subs, s.topic)
		}
	}
	b.mu.Unlock()
}

// Close unsubscribes everyone and waits for queued events to be handled.
// Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var pending []*subscriber
	for _, set := range b.subs {
		for _, s := range set {
			close(s.ch)
			pending = append(pending, s)
		}
	}
	b.subs = make(map[string]map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range pending {
		<-s.done
	}
}
