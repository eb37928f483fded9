package engine

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// ReloadDomain fetches domain from the server and replaces its slice in every
// view that covers it. Entries of other domains are untouched.
func (s *Store) ReloadDomain(ctx context.Context, domain string) error {
	s.mu.Lock()
	s.viewLocked(ctx, domain, false)
	scope, gen := s.scope, s.gen
	s.mu.Unlock()

	if !s.remote.Authenticated() {
		return common.ErrAuthRequired
	}
	return s.reload(ctx, domain, scope, gen)
}

// SwitchScope drops every view of the previous scope and hydrates the open
// domains again in scope. Responses still in flight for the old scope are
// discarded when they arrive.
func (s *Store) SwitchScope(ctx context.Context, scope string) {
	scope = models.ScopeOrDefault(scope)

	s.mu.Lock()
	if scope == s.scope {
		s.mu.Unlock()
		return
	}
	domains := s.domainsLocked()
	listeners := s.listeners
	s.listeners = make(map[string]*realtimeListener)
	s.views = make(map[string]*view)
	s.scope = scope
	s.gen++
	s.mu.Unlock()

	closeListeners(listeners)
	s.logger.Info(ctx, "scope switched", "scope", scope, "domains", len(domains))

	for _, d := range domains {
		s.open(ctx, d, true)
	}
}

// ResolveScope asks the resolver for the active scope and switches to it.
func (s *Store) ResolveScope(ctx context.Context) string {
	scope := s.Scope()
	if s.resolver != nil {
		scope = s.resolver.Resolve(ctx)
	}
	s.SwitchScope(ctx, scope)
	return scope
}

// Refresh refetches every open view and restarts the realtime subscriptions,
// so a new principal takes effect.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	domains := s.domainsLocked()
	listeners := s.listeners
	s.listeners = make(map[string]*realtimeListener)
	s.mu.Unlock()

	closeListeners(listeners)
	for _, d := range domains {
		s.open(ctx, d, false)
	}
}

func (s *Store) open(ctx context.Context, domain string, announce bool) {
	s.mu.Lock()
	s.viewLocked(ctx, domain, announce)
	scope, gen := s.scope, s.gen
	s.listenLocked(domain, scope)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refresh(s.ctx, domain, scope, gen)
	}()
}

// refresh is the background half of hydration. Without a session the cached
// snapshot stays in place.
func (s *Store) refresh(ctx context.Context, domain, scope string, gen uint64) {
	if !s.remote.Authenticated() {
		s.logger.Info(ctx, "not authenticated, serving cached entries", "domain", domain, "scope", scope)
		return
	}
	if err := s.reload(ctx, domain, scope, gen); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "remote fetch failed, keeping cached entries", "domain", domain, "scope", scope, "error", err)
	}
}

func (s *Store) reload(ctx context.Context, domain, scope string, gen uint64) error {
	entries, err := s.fetch(ctx, domain, scope)
	if err != nil {
		return err
	}
	s.replace(ctx, domain, scope, gen, entries)
	return nil
}

// fetch lists domain with retries on transient failures and drops rows that
// do not belong to the requested scope or domain.
func (s *Store) fetch(ctx context.Context, domain, scope string) ([]models.Entry, error) {
	var list []models.Entry
	b := retry.WithMaxRetries(s.opts.FetchRetries, retry.NewExponential(s.opts.FetchRetryBase))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		res, err := s.remote.List(ctx, domain, scope)
		if err != nil {
			if errors.Is(err, common.ErrAuthRequired) || errors.Is(err, common.ErrNotFound) {
				return err
			}
			s.logger.Debug(ctx, "list failed, retrying", "domain", domain, "error", err)
			return retry.RetryableError(err)
		}
		list = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Entry, 0, len(list))
	for _, e := range list {
		if domain != "" && e.Domain != domain {
			continue
		}
		if !models.ScopeMatches(e.ScopeID, scope) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// replace installs a fetched list. It is discarded if the scope changed
// while the request was in flight. Revisions of the replaced entries are
// reset, which turns pending reconciles and rollbacks for them into no-ops.
func (s *Store) replace(ctx context.Context, domain, scope string, gen uint64, fetched []models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.scope != scope {
		s.logger.Debug(ctx, "stale reload discarded", "domain", domain, "scope", scope)
		return
	}

	for _, v := range s.sortedViewsLocked() {
		switch {
		case v.domain == domain:
			v.entries = models.CloneEntries(fetched)
			v.revs = make(map[string]uint64)
		case domain == "":
			v.entries = filterDomain(fetched, v.domain)
			v.revs = make(map[string]uint64)
		case v.domain == "":
			next := make([]models.Entry, 0, len(v.entries)+len(fetched))
			for _, e := range v.entries {
				if e.Domain == domain {
					delete(v.revs, e.ID)
					continue
				}
				next = append(next, e)
			}
			v.entries = append(next, models.CloneEntries(fetched)...)
		default:
			continue
		}
		s.commitLocked(ctx, v, events.ActionReload, false)
	}
}

func filterDomain(entries []models.Entry, domain string) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Domain == domain {
			out = append(out, e.Clone())
		}
	}
	return out
}
