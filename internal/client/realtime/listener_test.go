package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	changes chan models.Change
	errs    chan error
	once    sync.Once
	closed  chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{changes: make(chan models.Change, 8), errs: make(chan error, 1), closed: make(chan struct{})}
}

func (s *fakeStream) Recv(ctx context.Context) (models.Change, error) {
	select {
	case c := <-s.changes:
		return c, nil
	case err := <-s.errs:
		return models.Change{}, err
	case <-ctx.Done():
		return models.Change{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	failures int
	calls    int
	streams  chan *fakeStream
	gotScope string
}

func newFakeFeed(failures int) *fakeFeed {
	return &fakeFeed{failures: failures, streams: make(chan *fakeStream, 8)}
}

func (f *fakeFeed) Subscribe(_ context.Context, _ string, scope string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotScope = scope
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("dial refused")
	}
	s := newFakeStream()
	f.streams <- s
	return s, nil
}

func (f *fakeFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingHandler struct {
	mu      sync.Mutex
	deletes []string
	upserts []string
}

func (h *recordingHandler) HandleDelete(_ context.Context, row models.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes = append(h.deletes, row.ID)
}

func (h *recordingHandler) HandleUpsert(_ context.Context, row models.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.upserts = append(h.upserts, row.ID)
}

func (h *recordingHandler) snapshot() ([]string, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.deletes...), append([]string(nil), h.upserts...)
}

var fastRetry = Options{RetryBase: time.Millisecond, RetryMax: 5 * time.Millisecond}

func row(id, owner string, scope *string, domain string) models.Entry {
	return models.Entry{ID: id, OwnerID: owner, ScopeID: scope, Domain: domain}
}

func TestFilter_Accept(t *testing.T) {
	home := models.StringPtr("home")
	def := models.StringPtr(models.DefaultScope)

	tests := []struct {
		name   string
		filter Filter
		row    models.Entry
		want   bool
	}{
		{"own row same scope", Filter{Domain: "vehicles", Scope: "home", Owner: "u1"}, row("1", "u1", home, "vehicles"), true},
		{"other owner", Filter{Domain: "vehicles", Scope: "home", Owner: "u1"}, row("1", "u2", home, "vehicles"), false},
		{"other scope", Filter{Domain: "vehicles", Scope: "work", Owner: "u1"}, row("1", "u1", home, "vehicles"), false},
		{"legacy row in default scope", Filter{Domain: "vehicles", Scope: models.DefaultScope, Owner: "u1"}, row("1", "u1", nil, "vehicles"), true},
		{"legacy row with empty scope filter", Filter{Domain: "vehicles", Owner: "u1"}, row("1", "u1", nil, "vehicles"), true},
		{"legacy row in named scope", Filter{Domain: "vehicles", Scope: "home", Owner: "u1"}, row("1", "u1", nil, "vehicles"), false},
		{"explicit default row", Filter{Domain: "vehicles", Scope: models.DefaultScope, Owner: "u1"}, row("1", "u1", def, "vehicles"), true},
		{"other domain", Filter{Domain: "vehicles", Scope: "home", Owner: "u1"}, row("1", "u1", home, "health"), false},
		{"all domains", Filter{Scope: "home", Owner: "u1"}, row("1", "u1", home, "health"), true},
		{"anonymous listener", Filter{Scope: "home"}, row("1", "u1", home, "health"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Accept(tt.row))
		})
	}
}

func TestListener_DispatchesFilteredChanges(t *testing.T) {
	feed := newFakeFeed(0)
	h := &recordingHandler{}
	l := NewListener(feed, Filter{Domain: "vehicles", Scope: "home", Owner: "u1"}, h, logging.Nop(), fastRetry)
	l.Start(context.Background())
	defer l.Close()

	s := <-feed.streams
	require.Eventually(t, func() bool { return l.State() == Subscribed }, time.Second, time.Millisecond)

	home := models.StringPtr("home")
	s.changes <- models.Change{EventType: models.ChangeDelete, Row: row("gone", "u1", home, "vehicles")}
	s.changes <- models.Change{EventType: models.ChangeInsert, Row: row("new", "u1", home, "vehicles")}
	s.changes <- models.Change{EventType: models.ChangeUpdate, Row: row("edited", "u1", home, "vehicles")}
	s.changes <- models.Change{EventType: models.ChangeUpdate, Row: row("foreign", "u2", home, "vehicles")}
	s.changes <- models.Change{EventType: models.ChangeDelete, Row: row("work", "u1", models.StringPtr("work"), "vehicles")}
	s.changes <- models.Change{EventType: "truncate", Row: row("odd", "u1", home, "vehicles")}

	require.Eventually(t, func() bool {
		d, u := h.snapshot()
		return len(d) == 1 && len(u) == 2
	}, time.Second, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	d, u := h.snapshot()
	assert.Equal(t, []string{"gone"}, d)
	assert.Equal(t, []string{"new", "edited"}, u)
	assert.Equal(t, "home", feed.gotScope)
}

func TestListener_ResubscribesAfterErrors(t *testing.T) {
	feed := newFakeFeed(2)
	h := &recordingHandler{}
	l := NewListener(feed, Filter{Domain: "health", Scope: "home", Owner: "u1"}, h, logging.Nop(), fastRetry)
	l.Start(context.Background())
	defer l.Close()

	first := <-feed.streams
	assert.Equal(t, 3, feed.callCount(), "two failed dials then success")

	first.errs <- errors.New("connection reset")
	second := <-feed.streams

	select {
	case <-first.closed:
	case <-time.After(time.Second):
		t.Fatal("dropped stream must be closed")
	}

	second.changes <- models.Change{EventType: models.ChangeInsert, Row: row("x", "u1", models.StringPtr("home"), "health")}
	require.Eventually(t, func() bool {
		_, u := h.snapshot()
		return len(u) == 1
	}, time.Second, time.Millisecond)
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	feed := newFakeFeed(0)
	l := NewListener(feed, Filter{Scope: "home", Owner: "u1"}, &recordingHandler{}, logging.Nop(), fastRetry)

	l.Close()
	l.Close()
	assert.Equal(t, Unsubscribed, l.State())

	l.Start(context.Background())
	assert.Equal(t, 0, feed.callCount(), "start after close does nothing")
}

func TestListener_CloseWhileSubscribed(t *testing.T) {
	feed := newFakeFeed(0)
	l := NewListener(feed, Filter{Scope: "home", Owner: "u1"}, &recordingHandler{}, logging.Nop(), fastRetry)
	l.Start(context.Background())
	l.Start(context.Background())

	s := <-feed.streams
	require.Eventually(t, func() bool { return l.State() == Subscribed }, time.Second, time.Millisecond)

	l.Close()
	l.Close()
	assert.Equal(t, Unsubscribed, l.State())
	<-s.closed
	assert.Equal(t, 1, feed.callCount())
}

func TestListener_CloseWhileRetrying(t *testing.T) {
	feed := newFakeFeed(1 << 30)
	l := NewListener(feed, Filter{Scope: "home", Owner: "u1"}, &recordingHandler{}, logging.Nop(), fastRetry)
	l.Start(context.Background())

	require.Eventually(t, func() bool { return feed.callCount() > 2 }, time.Second, time.Millisecond)
	assert.Equal(t, Subscribing, l.State())

	done := make(chan struct{})
	go func() {
		l.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked while retrying")
	}
}

// brokenFeed hands out streams that fail right away, optionally after one
// change.
type brokenFeed struct {
	mu      sync.Mutex
	calls   int
	deliver bool
}

func (f *brokenFeed) Subscribe(context.Context, string, string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &brokenStream{pending: f.deliver}, nil
}

func (f *brokenFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type brokenStream struct {
	pending bool
}

func (s *brokenStream) Recv(context.Context) (models.Change, error) {
	if s.pending {
		s.pending = false
		return models.Change{EventType: models.ChangeUpdate, Row: row("r", "u1", models.StringPtr("home"), "bills")}, nil
	}
	return models.Change{}, errors.New("frame could not be decoded")
}

func (s *brokenStream) Close() error { return nil }

// recordSleeps replaces the listener's wait with one that records delays and
// stops the loop after n of them.
func recordSleeps(l *Listener, n int) (delays func() []time.Duration) {
	var mu sync.Mutex
	var got []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, d)
		return len(got) < n && ctx.Err() == nil
	}
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), got...)
	}
}

func TestListener_DroppedStreamsBackOffExponentially(t *testing.T) {
	feed := &brokenFeed{}
	opts := Options{RetryBase: 20 * time.Millisecond, RetryMax: time.Second, ResetAfter: time.Hour}
	l := NewListener(feed, Filter{Domain: "bills", Scope: "home", Owner: "u1"}, &recordingHandler{}, logging.Nop(), opts)
	delays := recordSleeps(l, 5)

	l.Start(context.Background())
	<-l.done
	l.Close()

	got := delays()
	require.Len(t, got, 5)
	assert.Equal(t, 5, feed.callCount())
	assert.GreaterOrEqual(t, got[0], 18*time.Millisecond)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "delay %d must grow", i)
	}
}

func TestListener_DeliveringStreamResetsBackoff(t *testing.T) {
	feed := &brokenFeed{deliver: true}
	h := &recordingHandler{}
	opts := Options{RetryBase: 20 * time.Millisecond, RetryMax: time.Second, ResetAfter: time.Hour}
	l := NewListener(feed, Filter{Domain: "bills", Scope: "home", Owner: "u1"}, h, logging.Nop(), opts)
	delays := recordSleeps(l, 4)

	l.Start(context.Background())
	<-l.done
	l.Close()

	for _, d := range delays() {
		assert.LessOrEqual(t, d, 22*time.Millisecond)
	}
	_, upserts := h.snapshot()
	assert.Len(t, upserts, 4)
}

func TestListener_FailingStreamsDoNotSpin(t *testing.T) {
	feed := &brokenFeed{}
	opts := Options{RetryBase: 50 * time.Millisecond, RetryMax: time.Second}
	l := NewListener(feed, Filter{Domain: "bills", Scope: "home", Owner: "u1"}, &recordingHandler{}, logging.Nop(), opts)

	l.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	l.Close()

	assert.LessOrEqual(t, feed.callCount(), 4)
	assert.GreaterOrEqual(t, feed.callCount(), 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unsubscribed", Unsubscribed.String())
	assert.Equal(t, "subscribing", Subscribing.String())
	assert.Equal(t, "subscribed", Subscribed.String())
}
