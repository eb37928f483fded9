// Package services holds the business logic of the record service: entry
// CRUD scoped to the caller and attachment presigning.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/dbx"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
	sc "github.com/dmitrijs2005/lifedash/internal/server/config"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ErrInvalidEntry is returned for drafts the service refuses to store.
var ErrInvalidEntry = errors.New("invalid entry")

// Publisher receives every committed change. The realtime hub implements it.
type Publisher interface {
	Publish(c models.Change)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.Change) {}

type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	publisher   Publisher
	logger      logging.Logger
	now         func() time.Time
}

func NewEntryService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, publisher Publisher, logger logging.Logger) *EntryService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &EntryService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		publisher:   publisher,
		logger:      logger.With("module", "entries"),
		now:         time.Now,
	}
}

// timestamp is truncated to PostgreSQL's microsecond precision so the row
// returned to the caller equals the stored one.
func (s *EntryService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *EntryService) List(ctx context.Context, userID, domain, scope string) ([]models.Entry, error) {
	return s.repomanager.Entries(s.db).List(ctx, userID, domain, scope)
}

// Create stores draft for userID in scope. Id, owner and timestamps of the
// draft are ignored.
func (s *EntryService) Create(ctx context.Context, userID string, draft models.Entry, scope string) (models.Entry, error) {
	domain := strings.TrimSpace(draft.Domain)
	if domain == "" {
		return models.Entry{}, fmt.Errorf("%w: domain is required", ErrInvalidEntry)
	}
	meta, err := models.NormalizeMetadata(draft.Metadata)
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	title := models.NormalizeTitle(draft.Title)

	now := s.timestamp()
	e := models.Entry{
		ID:          uuid.NewString(),
		Domain:      domain,
		Title:       title,
		Description: draft.Description,
		Metadata:    meta,
		OwnerID:     userID,
		ScopeID:     models.StringPtr(models.ScopeOrDefault(scope)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repomanager.Entries(s.db).Insert(ctx, e); err != nil {
		return models.Entry{}, err
	}

	s.publisher.Publish(models.Change{EventType: models.ChangeInsert, Row: e.Clone()})
	return e, nil
}

// Update applies patch to the caller's row id inside a transaction.
func (s *EntryService) Update(ctx context.Context, userID, id string, patch models.Patch) (models.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Entry{}, common.ErrNotFound
	}
	if patch.Metadata != nil {
		meta, err := models.NormalizeMetadata(patch.Metadata)
		if err != nil {
			return models.Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		patch.Metadata = meta
	}
	if patch.Title != nil {
		patch.Title = models.StringPtr(models.NormalizeTitle(*patch.Title))
	}

	var updated models.Entry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Entries(tx)
		current, err := repo.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		updated = models.ApplyPatch(current, patch, s.timestamp())
		return repo.Update(ctx, updated)
	})
	if err != nil {
		return models.Entry{}, err
	}

	s.publisher.Publish(models.Change{EventType: models.ChangeUpdate, Row: updated.Clone()})
	return updated, nil
}

// Delete removes the caller's row id and reports how many rows went away.
// Unknown ids are not an error.
func (s *EntryService) Delete(ctx context.Context, userID, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		s.logger.Debug(ctx, "delete of malformed id ignored", "id", id)
		return 0, nil
	}
	removed, err := s.repomanager.Entries(s.db).Delete(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	for _, e := range removed {
		s.publisher.Publish(models.Change{EventType: models.ChangeDelete, Row: e})
	}
	return int64(len(removed)), nil
}
