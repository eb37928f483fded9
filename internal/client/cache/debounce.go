package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

const DefaultDebounceDelay = 300 * time.Millisecond

// Debouncer coalesces bursts of raw writes to one key into a single write
// issued delay after the last one. Reads through it see pending values.
type Debouncer struct {
	store Store
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWrite
}

type pendingWrite struct {
	value []byte
	timer *time.Timer
}

func NewDebouncer(store Store, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{store: store, delay: delay, pending: make(map[string]*pendingWrite)}
}

// SetRaw schedules value to be written under key.
func (d *Debouncer) SetRaw(key string, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingWrite{value: slices.Clone(value)}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

// GetRaw returns the pending value for key if any, else the stored one.
func (d *Debouncer) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	d.mu.Lock()
	p, ok := d.pending[key]
	d.mu.Unlock()
	if ok {
		return slices.Clone(p.value), true
	}
	return d.store.GetRaw(ctx, key)
}

// Flush writes every pending value now.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		d.store.SetRaw(ctx, key, p.value)
		delete(d.pending, key)
	}
}

func (d *Debouncer) fire(key string, p *pendingWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[key] != p {
		return
	}
	delete(d.pending, key)
	d.store.SetRaw(context.Background(), key, p.value)
}
