// Package realtime keeps the engine informed about changes made by other
// writers (other devices, other tabs, server-side jobs).
//
// A Listener owns one subscription for a (domain, scope) pair. It filters
// every incoming change on the client side, because the server only filters
// by domain and owner, then hands deletes to the engine directly and turns
// inserts and updates into a reload of the domain. Transport errors never
// reach the caller: the listener resubscribes with exponential backoff until
// it is closed.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	"github.com/sethvargo/go-retry"
)

type State int32

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

// Feed opens change streams. An empty domain subscribes to every domain.
type Feed interface {
	Subscribe(ctx context.Context, domain, scope string) (Stream, error)
}

type Stream interface {
	Recv(ctx context.Context) (models.Change, error)
	Close() error
}

// Handler receives the changes that passed the filter.
type Handler interface {
	HandleDelete(ctx context.Context, row models.Entry)
	HandleUpsert(ctx context.Context, row models.Entry)
}

// Filter decides which rows are relevant to the current view.
type Filter struct {
	Domain string
	Scope  string
	Owner  string
}

// Accept reports whether row belongs to the owner, the scope (legacy rows
// only in the default scope) and, unless Domain is empty, the domain.
func (f Filter) Accept(row models.Entry) bool {
	if row.OwnerID != f.Owner {
		return false
	}
	if !models.ScopeMatches(row.ScopeID, models.ScopeOrDefault(f.Scope)) {
		return false
	}
	return f.Domain == "" || row.Domain == f.Domain
}

type Options struct {
	// RetryBase is the first resubscribe delay; later ones double up to
	// RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
	// ResetAfter is how long a stream must stay up for the delay to drop
	// back to RetryBase. A stream that delivered a change resets it too.
	ResetAfter time.Duration
}

func (o Options) resetAfter() time.Duration {
	if o.ResetAfter <= 0 {
		return 10 * time.Second
	}
	return o.ResetAfter
}

func (o Options) backoff() retry.Backoff {
	base, max := o.RetryBase, o.RetryMax
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return retry.WithCappedDuration(max, retry.WithJitterPercent(10, retry.NewExponential(base)))
}

type Listener struct {
	feed    Feed
	filter  Filter
	handler Handler
	logger  logging.Logger
	opts    Options

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	// sleep waits d and reports false if ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func NewListener(feed Feed, filter Filter, handler Handler, logger logging.Logger, opts Options) *Listener {
	return &Listener{
		feed:    feed,
		filter:  filter,
		handler: handler,
		logger:  logger.With("module", "realtime", "domain", filter.Domain, "scope", filter.Scope),
		opts:    opts,
		done:    make(chan struct{}),
		sleep:   sleepContext,
	}
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Start subscribes in the background. Starting twice, or after Close, does
// nothing.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	l.state = Subscribing

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	go l.run(ctx)
}

// Close stops the subscription and waits for the background goroutine. It
// may be called any number of times, in any state.
func (l *Listener) Close() {
	l.mu.Lock()
	l.closed = true
	started := l.started
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	if started {
		<-l.done
	}
	l.setState(Unsubscribed)
}

// run keeps one backoff across dial failures and dropped streams, so a feed
// that accepts and then fails at once is retried at a growing interval.
func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer l.setState(Unsubscribed)

	b := l.opts.backoff()
	for ctx.Err() == nil {
		l.setState(Subscribing)
		stream, err := l.feed.Subscribe(ctx, l.filter.Domain, l.filter.Scope)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn(ctx, "realtime subscribe failed", "error", err)
			if !l.backOff(ctx, b) {
				return
			}
			continue
		}

		l.setState(Subscribed)
		l.logger.Debug(ctx, "realtime subscribed")

		up := time.Now()
		delivered, err := l.consume(ctx, stream)
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}
		l.setState(Subscribing)
		if delivered > 0 || time.Since(up) >= l.opts.resetAfter() {
			b = l.opts.backoff()
		}
		l.logger.Warn(ctx, "realtime stream dropped, resubscribing", "error", err, "delivered", delivered)
		if !l.backOff(ctx, b) {
			return
		}
	}
}

func (l *Listener) backOff(ctx context.Context, b retry.Backoff) bool {
	d, stop := b.Next()
	if stop {
		return false
	}
	return l.sleep(ctx, d)
}

// consume reads stream until it fails and returns how many changes it saw.
func (l *Listener) consume(ctx context.Context, stream Stream) (int, error) {
	n := 0
	for {
		change, err := stream.Recv(ctx)
		if err != nil {
			return n, err
		}
		n++
		l.dispatch(ctx, change)
	}
}

func (l *Listener) dispatch(ctx context.Context, change models.Change) {
	if !l.filter.Accept(change.Row) {
		l.logger.Debug(ctx, "realtime change ignored", "id", change.Row.ID, "event", change.EventType)
		return
	}

	switch change.EventType {
	case models.ChangeDelete:
		l.handler.HandleDelete(ctx, change.Row)
	case models.ChangeInsert, models.ChangeUpdate:
		l.handler.HandleUpsert(ctx, change.Row)
	default:
		l.logger.Warn(ctx, "unknown realtime event type", "event", change.EventType)
	}
}
