package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/dbx"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	sc "github.com/dmitrijs2005/lifedash/internal/server/config"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/entries"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/repomanager"
)

var fixedNow = time.Date(2025, 5, 10, 12, 0, 0, 123456789, time.UTC)

const (
	ownerID = "u1"
	rowID   = "0b8f6c1e-3d0a-4f43-9a5e-2f1c7f0e9a11"
)

type fakeEntriesRepo struct {
	entries.Repository

	rows      map[string]models.Entry
	insertErr error
	updateErr error
	deleteErr error
	inserted  []models.Entry
}

func (f *fakeEntriesRepo) List(ctx context.Context, ownerID, domain, scope string) ([]models.Entry, error) {
	out := []models.Entry{}
	for _, e := range f.rows {
		if e.OwnerID == ownerID && (domain == "" || e.Domain == domain) && models.ScopeMatches(e.ScopeID, models.ScopeOrDefault(scope)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntriesRepo) Get(ctx context.Context, ownerID, id string) (models.Entry, error) {
	e, ok := f.rows[id]
	if !ok || e.OwnerID != ownerID {
		return models.Entry{}, common.ErrNotFound
	}
	return e.Clone(), nil
}

func (f *fakeEntriesRepo) Insert(ctx context.Context, e models.Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, e)
	f.rows[e.ID] = e
	return nil
}

func (f *fakeEntriesRepo) Update(ctx context.Context, e models.Entry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rows[e.ID] = e
	return nil
}

func (f *fakeEntriesRepo) Delete(ctx context.Context, ownerID, id string) ([]models.Entry, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	e, ok := f.rows[id]
	if !ok || e.OwnerID != ownerID {
		return nil, nil
	}
	delete(f.rows, id)
	return []models.Entry{e}, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	repo *fakeEntriesRepo
}

func (m *fakeRepoManager) Entries(db dbx.DBTX) entries.Repository { return m.repo }

type recordingPublisher struct {
	mu      sync.Mutex
	changes []models.Change
}

func (p *recordingPublisher) Publish(c models.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) Changes() []models.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Change(nil), p.changes...)
}

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "lifedash",
		PresignTTL:     15 * time.Minute,
	}
}

func newTestService(t *testing.T, rows ...models.Entry) (*EntryService, *fakeEntriesRepo, *recordingPublisher, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &fakeEntriesRepo{rows: map[string]models.Entry{}}
	for _, r := range rows {
		repo.rows[r.ID] = r
	}
	pub := &recordingPublisher{}
	svc := NewEntryService(db, &fakeRepoManager{repo: repo}, testConfig(), pub, logging.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pub, mock
}

func storedRow() models.Entry {
	created := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	return models.Entry{
		ID:        rowID,
		Domain:    "vehicles",
		Title:     "Civic",
		Metadata:  map[string]any{"mileage": float64(1000), "service": map[string]any{"oil": "2025-01-01"}},
		OwnerID:   ownerID,
		ScopeID:   models.StringPtr(models.DefaultScope),
		CreatedAt: created,
		UpdatedAt: created,
	}
}
