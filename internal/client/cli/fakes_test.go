package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/client/client"
	"github.com/dmitrijs2005/lifedash/internal/client/engine"
	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/client/scope"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

type fakeStore struct {
	entryStore

	scope     string
	entries   map[string][]models.Entry
	opened    []string
	created   []engine.NewEntry
	updates   []models.Patch
	deleted   []string
	batch     engine.BatchResult
	refreshed int
	reloadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{scope: models.DefaultScope, entries: map[string][]models.Entry{}}
}

func (f *fakeStore) Open(_ context.Context, domain string) { f.opened = append(f.opened, domain) }

func (f *fakeStore) List(domain string) []models.Entry { return f.entries[domain] }

func (f *fakeStore) Get(domain, id string) (models.Entry, bool) {
	i := models.IndexOf(f.entries[domain], id)
	if i < 0 {
		return models.Entry{}, false
	}
	return f.entries[domain][i], true
}

func (f *fakeStore) Create(_ context.Context, domain string, in engine.NewEntry) (models.Entry, error) {
	f.created = append(f.created, in)
	return models.Entry{ID: "srv-1", Domain: domain, Title: in.Title}, nil
}

func (f *fakeStore) Update(_ context.Context, domain, id string, p models.Patch) (models.Entry, error) {
	if _, ok := f.Get(domain, id); !ok {
		return models.Entry{}, &engine.MutationError{Op: engine.OpUpdate, Domain: domain, ID: id, Err: common.ErrNotFound}
	}
	f.updates = append(f.updates, p)
	return models.Entry{ID: id, Domain: domain}, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) DeleteMany(_ context.Context, _ string, ids []string) engine.BatchResult {
	f.deleted = append(f.deleted, ids...)
	return f.batch
}

func (f *fakeStore) ReloadDomain(context.Context, string) error { return f.reloadErr }

func (f *fakeStore) SwitchScope(_ context.Context, s string) { f.scope = s }

func (f *fakeStore) ResolveScope(context.Context) string { return f.scope }

func (f *fakeStore) Refresh(context.Context) { f.refreshed++ }

func (f *fakeStore) Scope() string { return f.scope }

func (f *fakeStore) SubscribeAll(events.Handler) func() { return func() {} }

type fakeSession struct {
	mu        sync.Mutex
	principal string
	pingErr   error
	presigned client.Presigned
}

func (f *fakeSession) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeSession) SetToken(token string) error {
	f.principal = ""
	if token != "" {
		f.principal = "user-" + token
	}
	return nil
}

func (f *fakeSession) Principal() string { return f.principal }

func (f *fakeSession) PresignUpload(_ context.Context, entryID, _ string) (client.Presigned, error) {
	p := f.presigned
	p.Key = "users/u/" + entryID + "/obj"
	return p, nil
}

type memSettings struct {
	s     scope.Settings
	saves int
}

func (m *memSettings) Settings(context.Context) (scope.Settings, error) { return m.s, nil }

func (m *memSettings) Save(s scope.Settings) error {
	m.s = s
	m.saves++
	return nil
}

func (m *memSettings) SetActiveScope(_ context.Context, sc string) error {
	m.s.ActiveScope = sc
	m.saves++
	return nil
}

func newTestApp(input string) (*App, *fakeStore, *fakeSession, *memSettings, *bytes.Buffer) {
	store := newFakeStore()
	sess := &fakeSession{}
	settings := &memSettings{}
	out := &bytes.Buffer{}
	a := &App{
		store:    store,
		session:  sess,
		settings: settings,
		logger:   logging.Nop(),
		reader:   bufio.NewReader(strings.NewReader(input)),
		out:      out,
	}
	return a, store, sess, settings, out
}
