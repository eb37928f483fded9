package engine

import (
	"context"

	"github.com/dmitrijs2005/lifedash/internal/client/cache"
	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/client/realtime"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

type realtimeListener = realtime.Listener

var _ realtime.Handler = (*Store)(nil)

// HandleDelete removes row from every view holding it without a round trip.
func (s *Store) HandleDelete(ctx context.Context, row models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := s.sortedViewsLocked()
	if row.Domain != "" {
		views = s.coveringLocked(row.Domain)
	}
	for _, v := range views {
		i := models.IndexOf(v.entries, row.ID)
		if i < 0 {
			continue
		}
		v.entries = append(v.entries[:i:i], v.entries[i+1:]...)
		delete(v.revs, row.ID)
		s.commitLocked(ctx, v, events.ActionDelete, false)
	}
}

// HandleUpsert reloads the row's domain; the server copy wins.
func (s *Store) HandleUpsert(ctx context.Context, row models.Entry) {
	if row.Domain == "" || !s.remote.Authenticated() {
		return
	}

	s.mu.Lock()
	scope, gen := s.scope, s.gen
	s.mu.Unlock()

	if err := s.reload(ctx, row.Domain, scope, gen); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "realtime reload failed", "domain", row.Domain, "error", err)
	}
}

func (s *Store) listenLocked(domain, scope string) {
	if s.feed == nil || s.ctx.Err() != nil {
		return
	}
	key := cache.Key(s.opts.CachePrefix, domain, scope)
	if _, ok := s.listeners[key]; ok {
		return
	}

	filter := realtime.Filter{Domain: domain, Scope: scope, Owner: s.remote.Principal()}
	l := realtime.NewListener(s.feed, filter, s, s.logger, s.opts.Realtime)
	s.listeners[key] = l
	l.Start(s.ctx)
}

func closeListeners(listeners map[string]*realtimeListener) {
	for _, l := range listeners {
		l.Close()
	}
}
