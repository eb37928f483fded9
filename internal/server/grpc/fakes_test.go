package grpc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/models"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
)

// fakeEntries keeps rows per user in memory.
type fakeEntries struct {
	EntryService

	mu      sync.Mutex
	rows    map[string]models.Entry
	nextID  int
	failErr error
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{rows: map[string]models.Entry{}}
}

func (f *fakeEntries) List(ctx context.Context, userID, domain, scope string) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := []models.Entry{}
	for _, e := range f.rows {
		if e.OwnerID == userID && (domain == "" || e.Domain == domain) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) Create(ctx context.Context, userID string, draft models.Entry, scope string) (models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if draft.Domain == "" {
		return models.Entry{}, services.ErrInvalidEntry
	}
	f.nextID++
	e := draft
	e.ID = fmt.Sprintf("srv-%d", f.nextID)
	e.OwnerID = userID
	e.ScopeID = models.StringPtr(models.ScopeOrDefault(scope))
	f.rows[e.ID] = e
	return e, nil
}

func (f *fakeEntries) Update(ctx context.Context, userID, id string, patch models.Patch) (models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.OwnerID != userID {
		return models.Entry{}, common.ErrNotFound
	}
	e = models.ApplyPatch(e, patch, e.CreatedAt)
	f.rows[id] = e
	return e, nil
}

func (f *fakeEntries) Delete(ctx context.Context, userID, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.OwnerID != userID {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

func (f *fakeEntries) PresignUpload(ctx context.Context, userID, entryID, contentType string) (services.Presigned, error) {
	key := services.AttachmentPrefix(userID, entryID) + "obj"
	return services.Presigned{Key: key, URL: "http://s3.local/" + key}, nil
}

func (f *fakeEntries) PresignDownload(ctx context.Context, userID, entryID, key string) (services.Presigned, error) {
	if !strings.HasPrefix(key, services.AttachmentPrefix(userID, entryID)) {
		return services.Presigned{}, common.ErrNotFound
	}
	return services.Presigned{Key: key, URL: "http://s3.local/" + key}, nil
}
