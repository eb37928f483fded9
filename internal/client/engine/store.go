// Package engine is the client-side sync engine. It keeps, per domain and
// scope, an in-memory list of entries, mirrors it into the local cache and
// reconciles it with the remote record service.
//
// Writes are optimistic: the change is visible in memory, in the cache and on
// the event bus before the remote call is made, and is either replaced by the
// server's answer or rolled back when the call fails. Reads are served from
// memory only. The remote list is authoritative whenever it is fetched.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/cache"
	"github.com/dmitrijs2005/lifedash/internal/client/client"
	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/client/realtime"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// ScopeResolver yields the scope the user currently works in.
type ScopeResolver interface {
	Resolve(ctx context.Context) string
}

type Options struct {
	CachePrefix string

	// Bulk fetches retry transient failures; writes never retry.
	FetchRetries   uint64
	FetchRetryBase time.Duration

	DeleteConcurrency int

	Realtime realtime.Options

	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.CachePrefix == "" {
		o.CachePrefix = "lifedash"
	}
	if o.FetchRetries == 0 {
		o.FetchRetries = 3
	}
	if o.FetchRetryBase <= 0 {
		o.FetchRetryBase = 200 * time.Millisecond
	}
	if o.DeleteConcurrency <= 0 {
		o.DeleteConcurrency = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type Config struct {
	Remote   client.Client
	Cache    cache.Store
	Bus      *events.Bus
	Resolver ScopeResolver
	// Feed is optional; without it no realtime subscriptions are made.
	Feed   realtime.Feed
	Logger logging.Logger

	Options Options
}

// view is the state of one cache key: a domain (or every domain when domain
// is empty) in one scope.
type view struct {
	key     string
	domain  string
	scope   string
	entries []models.Entry
	// revs holds the revision stamped by the latest in-flight write per id.
	revs    map[string]uint64
	version uint64
}

func (v *view) covers(domain string) bool {
	return v.domain == "" || v.domain == domain
}

type Store struct {
	remote   client.Client
	cache    cache.Store
	bus      *events.Bus
	resolver ScopeResolver
	feed     realtime.Feed
	logger   logging.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	scope     string
	gen       uint64
	rev       uint64
	views     map[string]*view
	listeners map[string]*realtimeListener
}

// New builds a store and resolves the initial scope.
func New(ctx context.Context, cfg Config) *Store {
	cfg.Options.setDefaults()
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Store{
		remote:    cfg.Remote,
		cache:     cfg.Cache,
		bus:       cfg.Bus,
		resolver:  cfg.Resolver,
		feed:      cfg.Feed,
		logger:    cfg.Logger.With("module", "engine"),
		opts:      cfg.Options,
		ctx:       base,
		cancel:    cancel,
		views:     make(map[string]*view),
		listeners: make(map[string]*realtimeListener),
	}
	s.scope = models.DefaultScope
	if s.resolver != nil {
		s.scope = s.resolver.Resolve(ctx)
	}
	return s
}

// Scope returns the scope every view currently belongs to.
func (s *Store) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Open makes domain ("" for all domains) available: a non-empty cached
// snapshot is published at once, then the remote list is fetched in the
// background and replaces it. Open also starts the realtime subscription.
func (s *Store) Open(ctx context.Context, domain string) {
	s.open(ctx, domain, false)
}

// List returns a copy of the entries of domain; nil-safe for unopened domains.
func (s *Store) List(domain string) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[s.keyLocked(domain)]
	if !ok {
		return []models.Entry{}
	}
	return models.CloneEntries(v.entries)
}

// Get returns one entry of domain by id.
func (s *Store) Get(domain, id string) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[s.keyLocked(domain)]
	if !ok {
		return models.Entry{}, false
	}
	i := models.IndexOf(v.entries, id)
	if i < 0 {
		return models.Entry{}, false
	}
	return v.entries[i].Clone(), true
}

// Domains lists the opened domains, "" standing for the all-domains view.
func (s *Store) Domains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domainsLocked()
}

func (s *Store) Subscribe(domain string, fn events.Handler) (unsubscribe func()) {
	return s.bus.Subscribe(events.Topic(domain), fn)
}

func (s *Store) SubscribeAll(fn events.Handler) (unsubscribe func()) {
	return s.bus.Subscribe(events.TopicAll, fn)
}

// Wait blocks until background fetches started so far have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close stops realtime subscriptions and background work.
func (s *Store) Close() {
	s.cancel()
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = make(map[string]*realtimeListener)
	s.mu.Unlock()

	closeListeners(listeners)
	s.wg.Wait()
}

func (s *Store) keyLocked(domain string) string {
	return cache.Key(s.opts.CachePrefix, domain, s.scope)
}

// viewLocked returns the view of domain in the current scope, creating it
// from the cached snapshot if needed. A non-empty snapshot is published; with
// announce set an empty one is published as well.
func (s *Store) viewLocked(ctx context.Context, domain string, announce bool) *view {
	key := s.keyLocked(domain)
	if v, ok := s.views[key]; ok {
		return v
	}

	v := &view{key: key, domain: domain, scope: s.scope, entries: []models.Entry{}, revs: make(map[string]uint64)}
	if cached, ok := s.cache.Get(ctx, key); ok && len(cached) > 0 {
		v.entries = cached
	}
	s.views[key] = v

	if len(v.entries) > 0 || announce {
		s.logger.Debug(ctx, "view hydrated from cache", "key", key, "entries", len(v.entries))
		s.publishLocked(v, events.ActionReload, false)
	}
	return v
}

// coveringLocked returns the views affected by a change in domain, sorted by
// key so events are emitted in a stable order.
func (s *Store) coveringLocked(domain string) []*view {
	out := make([]*view, 0, 2)
	for _, v := range s.sortedViewsLocked() {
		if v.covers(domain) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) sortedViewsLocked() []*view {
	out := make([]*view, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (s *Store) domainsLocked() []string {
	out := make([]string, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v.domain)
	}
	sort.Strings(out)
	return out
}

// commitLocked writes v to the cache and announces it. Memory has already
// been changed by the caller; both writes happen under s.mu so they are
// observed in the same order.
func (s *Store) commitLocked(ctx context.Context, v *view, action events.Action, reverted bool) {
	v.version++
	s.cache.Set(context.WithoutCancel(ctx), v.key, v.entries)
	s.publishLocked(v, action, reverted)
}

func (s *Store) publishLocked(v *view, action events.Action, reverted bool) {
	s.bus.Publish(events.Event{
		Domain:    v.domain,
		Action:    action,
		Data:      models.CloneEntries(v.entries),
		Timestamp: s.opts.Now(),
		Reverted:  reverted,
	})
}
