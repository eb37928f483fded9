package cache

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/cryptox"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// AllDomains is the domain segment of keys holding every domain at once.
const AllDomains = "all"

// saltKey holds the argon2 salt of a sealed cache. It is hidden from ListKeys.
const saltKey = "__salt"

// Store is the cache contract used by the engine and the settings source.
type Store interface {
	Get(ctx context.Context, key string) ([]models.Entry, bool)
	Set(ctx context.Context, key string, entries []models.Entry)
	GetRaw(ctx context.Context, key string) ([]byte, bool)
	SetRaw(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	ListKeys(ctx context.Context) []string
}

// Key returns "<prefix>:<domain>:<scope>"; an empty domain means all domains
// and an empty scope means models.DefaultScope.
func Key(prefix, domain, scope string) string {
	if domain == "" {
		domain = AllDomains
	}
	return strings.Join([]string{prefix, domain, models.ScopeOrDefault(scope)}, ":")
}

// KVStore implements Store on top of a kv.Repository.
type KVStore struct {
	repo    kv.Repository
	logger  logging.Logger
	closer  io.Closer
	durable bool

	mu  sync.RWMutex
	key []byte
}

var _ Store = (*KVStore)(nil)

func New(repo kv.Repository, logger logging.Logger) *KVStore {
	return &KVStore{repo: repo, logger: logger.With("module", "cache")}
}

// NewMemoryStore returns a volatile store that lives as long as the process.
func NewMemoryStore(logger logging.Logger) *KVStore {
	return New(kv.NewMemoryRepository(), logger)
}

// Durable reports whether the store is backed by the SQLite file.
func (s *KVStore) Durable() bool { return s.durable }

func (s *KVStore) Close() error {
	s.mu.Lock()
	common.WipeByteArray(s.key)
	s.key = nil
	s.mu.Unlock()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// EnableSealing encrypts every value written from now on with a key derived
// from passphrase. The salt is created on first use and kept in the store.
func (s *KVStore) EnableSealing(ctx context.Context, passphrase []byte) error {
	salt, err := s.repo.Get(ctx, saltKey)
	if err != nil {
		return err
	}
	if len(salt) != cryptox.SaltSize {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := s.repo.Set(ctx, saltKey, salt); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.key = cryptox.DeriveKey(passphrase, salt)
	s.mu.Unlock()
	return nil
}

func (s *KVStore) sealingKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *KVStore) Get(ctx context.Context, key string) ([]models.Entry, bool) {
	raw, ok := s.GetRaw(ctx, key)
	if !ok {
		return nil, false
	}
	var entries []models.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn(ctx, "cache snapshot is corrupt, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, true
}

func (s *KVStore) Set(ctx context.Context, key string, entries []models.Entry) {
	if entries == nil {
		entries = []models.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		s.logger.Warn(ctx, "cache snapshot encode failed", "key", key, "error", err)
		return
	}
	s.SetRaw(ctx, key, raw)
}

func (s *KVStore) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "cache read failed", "key", key, "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	if k := s.sealingKey(); k != nil {
		plain, err := cryptox.Open(k, raw)
		if err != nil {
			s.logger.Warn(ctx, "cache value cannot be unsealed, treating as miss", "key", key, "error", err)
			return nil, false
		}
		raw = plain
	}
	return raw, true
}

func (s *KVStore) SetRaw(ctx context.Context, key string, value []byte) {
	if k := s.sealingKey(); k != nil {
		sealed, err := cryptox.Seal(k, value)
		if err != nil {
			s.logger.Warn(ctx, "cache seal failed", "key", key, "error", err)
			return
		}
		value = sealed
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		s.logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (s *KVStore) Delete(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "cache delete failed", "key", key, "error", err)
	}
}

// Clear removes every snapshot. The salt of a sealed store survives.
func (s *KVStore) Clear(ctx context.Context) {
	for _, key := range s.ListKeys(ctx) {
		s.Delete(ctx, key)
	}
}

func (s *KVStore) ListKeys(ctx context.Context) []string {
	keys, err := s.repo.Keys(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache key listing failed", "error", err)
		return []string{}
	}
	return slices.DeleteFunc(keys, func(k string) bool { return k == saltKey })
}
