package scope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/client/cache"
)

// CacheSettings keeps Settings as JSON in the local cache under
// "<prefix>:settings". Writes go through a debouncer.
type CacheSettings struct {
	key       string
	debouncer *cache.Debouncer
}

func NewCacheSettings(prefix string, debouncer *cache.Debouncer) *CacheSettings {
	return &CacheSettings{key: prefix + ":settings", debouncer: debouncer}
}

// Settings returns the stored settings; a missing document is not an error.
func (c *CacheSettings) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	raw, ok := c.debouncer.GetRaw(ctx, c.key)
	if !ok {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (c *CacheSettings) Save(s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	c.debouncer.SetRaw(c.key, raw)
	return nil
}

// SetActiveScope updates only the explicit active scope.
func (c *CacheSettings) SetActiveScope(ctx context.Context, scope string) error {
	s, err := c.Settings(ctx)
	if err != nil {
		s = Settings{}
	}
	s.ActiveScope = scope
	return c.Save(s)
}
