package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/cache"
	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/client/realtime"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

var (
	localNow  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	serverNow = time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)

	vehiclesKey = cache.Key("lifedash", "vehicles", models.DefaultScope)
	allKey      = cache.Key("lifedash", "", models.DefaultScope)
)

func row(id, domain, title string, scope *string) models.Entry {
	created := localNow.Add(-time.Hour)
	return models.Entry{
		ID:        id,
		Domain:    domain,
		Title:     title,
		Metadata:  map[string]any{"plate": "AB-" + id},
		OwnerID:   "user-1",
		ScopeID:   scope,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

type fakeRemote struct {
	mu         sync.Mutex
	authed     bool
	principal  string
	rows       []models.Entry
	seq        int
	calls      map[string]int
	listErr    error
	createErr  error
	updateErr  error
	deleteErrs map[string]error

	// listGate, when set, holds every List call until it is closed.
	listGate chan struct{}
	// updateHook runs before an update is applied and may block.
	updateHook func(ctx context.Context, patch models.Patch) error
}

func newFakeRemote(authed bool, rows ...models.Entry) *fakeRemote {
	return &fakeRemote{
		authed:     authed,
		principal:  "user-1",
		rows:       models.CloneEntries(rows),
		calls:      map[string]int{},
		deleteErrs: map[string]error{},
	}
}

func (f *fakeRemote) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) Authenticated() bool { return f.authed }

func (f *fakeRemote) Principal() string { return f.principal }

func (f *fakeRemote) List(ctx context.Context, domain, scope string) ([]models.Entry, error) {
	f.count("list")
	if f.listGate != nil {
		select {
		case <-f.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.Entry{}
	for _, e := range f.rows {
		if domain != "" && e.Domain != domain {
			continue
		}
		if !models.ScopeMatches(e.ScopeID, scope) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (f *fakeRemote) Create(_ context.Context, entry models.Entry, scope string) (models.Entry, error) {
	f.count("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Entry{}, f.createErr
	}
	f.seq++
	e := entry.Clone()
	e.ID = fmt.Sprintf("srv-%d", f.seq)
	e.OwnerID = f.principal
	e.ScopeID = models.StringPtr(scope)
	e.CreatedAt = serverNow
	e.UpdatedAt = serverNow
	f.rows = append(f.rows, e)
	return e.Clone(), nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error) {
	f.count("update")
	if f.updateHook != nil {
		if err := f.updateHook(ctx, patch); err != nil {
			return models.Entry{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return models.Entry{}, f.updateErr
	}
	i := models.IndexOf(f.rows, id)
	if i < 0 {
		return models.Entry{}, common.ErrNotFound
	}
	f.rows[i] = models.ApplyPatch(f.rows[i], patch, serverNow)
	return f.rows[i].Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.count("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrs[id]; err != nil {
		return err
	}
	if i := models.IndexOf(f.rows, id); i >= 0 {
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
	}
	return nil
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	r.got = append(r.got, e)
	r.mu.Unlock()
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.got...)
}

type harness struct {
	store  *Store
	cache  *cache.KVStore
	bus    *events.Bus
	rec    *recorder
	remote *fakeRemote
}

func newHarness(t *testing.T, remote *fakeRemote, seed map[string][]models.Entry, mod func(*Config)) *harness {
	t.Helper()
	ctx := context.Background()

	c := cache.NewMemoryStore(logging.Nop())
	for k, v := range seed {
		c.Set(ctx, k, v)
	}
	bus := events.NewBus(logging.Nop(), 1024)
	rec := &recorder{}
	bus.Subscribe(events.TopicAll, rec.handle)

	cfg := Config{
		Remote: remote,
		Cache:  c,
		Bus:    bus,
		Logger: logging.Nop(),
		Options: Options{
			Now:            func() time.Time { return localNow },
			FetchRetries:   1,
			FetchRetryBase: time.Millisecond,
		},
	}
	if mod != nil {
		mod(&cfg)
	}

	s := New(ctx, cfg)
	t.Cleanup(func() {
		s.Close()
		bus.Close()
	})
	return &harness{store: s, cache: c, bus: bus, rec: rec, remote: remote}
}

// events stops the store and the bus and returns everything delivered.
func (h *harness) events() []events.Event {
	h.store.Close()
	h.bus.Close()
	return h.rec.all()
}

func (h *harness) cached(t *testing.T, key string) []models.Entry {
	t.Helper()
	got, ok := h.cache.Get(context.Background(), key)
	if !ok {
		return []models.Entry{}
	}
	return got
}

type fixedResolver string

func (r fixedResolver) Resolve(context.Context) string { return string(r) }

type fakeStream struct {
	ch chan models.Change
}

func (s *fakeStream) Recv(ctx context.Context) (models.Change, error) {
	select {
	case c := <-s.ch:
		return c, nil
	case <-ctx.Done():
		return models.Change{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error { return nil }

type fakeFeed struct {
	stream *fakeStream
	mu     sync.Mutex
	subs   []string
}

func (f *fakeFeed) Subscribe(_ context.Context, domain, scope string) (realtime.Stream, error) {
	f.mu.Lock()
	f.subs = append(f.subs, domain+"|"+scope)
	f.mu.Unlock()
	return f.stream, nil
}

func (f *fakeFeed) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}
