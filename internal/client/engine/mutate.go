package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// NewEntry is what a caller supplies to Create; the store fills in the rest.
type NewEntry struct {
	Title       string
	Description string
	Metadata    map[string]any
}

// applied remembers what one optimistic write did to one view.
type applied struct {
	v       *view
	before  []models.Entry
	after   uint64
	prior   *models.Entry
	index   int
	prevRev uint64
	hadRev  bool
}

type mutation struct {
	op     string
	action events.Action
	domain string
	id     string
	rev    uint64
	views  []applied
}

func (m *mutation) fail(err error) error {
	return &MutationError{Op: m.op, Domain: m.domain, ID: m.id, Err: err}
}

// Create adds an entry under a temporary id, then swaps it for the server's
// row. The active scope is stamped on the entry.
func (s *Store) Create(ctx context.Context, domain string, in NewEntry) (models.Entry, error) {
	if domain == "" {
		return models.Entry{}, &MutationError{Op: OpCreate, Err: ErrDomainRequired}
	}
	meta, err := models.NormalizeMetadata(in.Metadata)
	if err != nil {
		return models.Entry{}, &MutationError{Op: OpCreate, Domain: domain, Err: err}
	}
	title := models.NormalizeTitle(in.Title)

	s.mu.Lock()
	now := s.opts.Now().UTC()
	scope := s.scope
	draft := models.Entry{
		ID:          models.NewTempID(),
		Domain:      domain,
		Title:       title,
		Description: in.Description,
		Metadata:    meta,
		OwnerID:     s.remote.Principal(),
		ScopeID:     models.StringPtr(scope),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.viewLocked(ctx, domain, false)
	m := s.applyLocked(ctx, OpCreate, events.ActionAdd, domain, draft.ID, func(v *view) bool {
		v.entries = append(v.entries, draft.Clone())
		return true
	})
	s.mu.Unlock()

	if !s.remote.Authenticated() {
		s.rollback(ctx, m)
		return models.Entry{}, m.fail(common.ErrAuthRequired)
	}

	created, err := s.remote.Create(ctx, draft, scope)
	if err != nil {
		s.rollback(ctx, m)
		return models.Entry{}, m.fail(err)
	}

	s.reconcile(ctx, m, &created)
	return created, nil
}

// Update merges patch into the entry id. Unknown ids fail with
// common.ErrNotFound before anything is sent.
func (s *Store) Update(ctx context.Context, domain, id string, patch models.Patch) (models.Entry, error) {
	if domain == "" {
		return models.Entry{}, &MutationError{Op: OpUpdate, ID: id, Err: ErrDomainRequired}
	}
	if patch.Metadata != nil {
		meta, err := models.NormalizeMetadata(patch.Metadata)
		if err != nil {
			return models.Entry{}, &MutationError{Op: OpUpdate, Domain: domain, ID: id, Err: err}
		}
		patch.Metadata = meta
	}
	if patch.Title != nil {
		patch.Title = models.StringPtr(models.NormalizeTitle(*patch.Title))
	}

	s.mu.Lock()
	s.viewLocked(ctx, domain, false)
	if !s.containsLocked(domain, id) {
		s.mu.Unlock()
		return models.Entry{}, &MutationError{Op: OpUpdate, Domain: domain, ID: id, Err: common.ErrNotFound}
	}
	now := s.opts.Now().UTC()
	m := s.applyLocked(ctx, OpUpdate, events.ActionUpdate, domain, id, func(v *view) bool {
		i := models.IndexOf(v.entries, id)
		if i < 0 {
			return false
		}
		v.entries[i] = models.ApplyPatch(v.entries[i], patch, now)
		return true
	})
	s.mu.Unlock()

	if !s.remote.Authenticated() {
		s.rollback(ctx, m)
		return models.Entry{}, m.fail(common.ErrAuthRequired)
	}

	updated, err := s.remote.Update(ctx, id, patch)
	if err != nil {
		s.rollback(ctx, m)
		return models.Entry{}, m.fail(err)
	}

	s.reconcile(ctx, m, &updated)
	return updated, nil
}

// Delete removes the entry id. Deleting an id that is not held locally is a
// no-op.
func (s *Store) Delete(ctx context.Context, domain, id string) error {
	if domain == "" {
		return &MutationError{Op: OpDelete, ID: id, Err: ErrDomainRequired}
	}

	s.mu.Lock()
	s.viewLocked(ctx, domain, false)
	if !s.containsLocked(domain, id) {
		s.mu.Unlock()
		s.logger.Debug(ctx, "delete of unknown entry ignored", "domain", domain, "id", id)
		return nil
	}
	m := s.applyLocked(ctx, OpDelete, events.ActionDelete, domain, id, func(v *view) bool {
		i := models.IndexOf(v.entries, id)
		if i < 0 {
			return false
		}
		v.entries = append(v.entries[:i:i], v.entries[i+1:]...)
		return true
	})
	s.mu.Unlock()

	if !s.remote.Authenticated() {
		s.rollback(ctx, m)
		return m.fail(common.ErrAuthRequired)
	}

	if err := s.remote.Delete(ctx, id); err != nil {
		s.rollback(ctx, m)
		return m.fail(err)
	}

	s.reconcile(ctx, m, nil)
	return nil
}

// DeleteMany deletes ids concurrently. Every id runs its own write cycle, so
// failed ids are rolled back individually while the others stay deleted.
func (s *Store) DeleteMany(ctx context.Context, domain string, ids []string) BatchResult {
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.opts.DeleteConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = s.Delete(ctx, domain, id)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Succeeded: []string{}, Failed: []string{}, Errs: map[string]error{}}
	for i, id := range ids {
		if errs[i] != nil {
			res.Failed = append(res.Failed, id)
			res.Errs[id] = errs[i]
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	if len(res.Failed) > 0 {
		s.logger.Warn(ctx, "batch delete partially failed", "domain", domain, "succeeded", len(res.Succeeded), "failed", len(res.Failed))
	}
	return res
}

func (s *Store) containsLocked(domain, id string) bool {
	for _, v := range s.coveringLocked(domain) {
		if models.IndexOf(v.entries, id) >= 0 {
			return true
		}
	}
	return false
}

// applyLocked runs fn on every view covering domain, stamps a fresh revision
// on id and commits each changed view to cache and bus.
func (s *Store) applyLocked(ctx context.Context, op string, action events.Action, domain, id string, fn func(v *view) bool) *mutation {
	s.rev++
	m := &mutation{op: op, action: action, domain: domain, id: id, rev: s.rev}

	for _, v := range s.coveringLocked(domain) {
		a := applied{v: v, before: models.CloneEntries(v.entries), index: models.IndexOf(v.entries, id)}
		if a.index >= 0 {
			p := v.entries[a.index].Clone()
			a.prior = &p
		}
		a.prevRev, a.hadRev = v.revs[id]

		if !fn(v) {
			continue
		}
		v.revs[id] = m.rev
		s.commitLocked(ctx, v, action, false)
		a.after = v.version
		m.views = append(m.views, a)
	}
	return m
}

// rollback undoes m. A view nobody touched since is restored from its
// snapshot; otherwise only the entry is put back, and only if no later write
// or reload claimed it.
func (s *Store) rollback(ctx context.Context, m *mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range m.views {
		v := a.v
		if s.views[v.key] != v {
			continue
		}

		if v.version == a.after {
			v.entries = a.before
		} else {
			if rev, ok := v.revs[m.id]; !ok || rev != m.rev {
				s.logger.Debug(ctx, "rollback superseded", "key", v.key, "id", m.id)
				continue
			}
			s.revertEntryLocked(v, m, a)
		}

		if a.hadRev {
			v.revs[m.id] = a.prevRev
		} else {
			delete(v.revs, m.id)
		}
		s.commitLocked(ctx, v, m.action, true)
	}
}

func (s *Store) revertEntryLocked(v *view, m *mutation, a applied) {
	i := models.IndexOf(v.entries, m.id)
	switch m.op {
	case OpCreate:
		if i >= 0 {
			v.entries = append(v.entries[:i:i], v.entries[i+1:]...)
		}
	case OpUpdate:
		if i >= 0 && a.prior != nil {
			v.entries[i] = a.prior.Clone()
		}
	case OpDelete:
		if i < 0 && a.prior != nil {
			at := min(a.index, len(v.entries))
			v.entries = append(v.entries[:at:at], append([]models.Entry{a.prior.Clone()}, v.entries[at:]...)...)
		}
	}
}

// reconcile replaces the optimistic entry with the server's row. Views whose
// revision for the id moved on are left alone.
func (s *Store) reconcile(ctx context.Context, m *mutation, server *models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range m.views {
		v := a.v
		if s.views[v.key] != v {
			continue
		}
		if rev, ok := v.revs[m.id]; !ok || rev != m.rev {
			s.logger.Debug(ctx, "stale reconcile skipped", "key", v.key, "id", m.id)
			continue
		}
		delete(v.revs, m.id)

		if server != nil {
			i := models.IndexOf(v.entries, m.id)
			if i < 0 {
				continue
			}
			if m.id != server.ID && models.IndexOf(v.entries, server.ID) >= 0 {
				v.entries = append(v.entries[:i:i], v.entries[i+1:]...)
			} else {
				v.entries[i] = server.Clone()
			}
		}
		s.commitLocked(ctx, v, m.action, false)
	}
}
