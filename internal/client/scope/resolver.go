// Package scope decides which profile ("scope") the user is currently
// working in. Entries of other scopes are invisible to the engine.
package scope

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

// Profile is one of the user's profiles (household member, business, ...).
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Active bool   `json:"active,omitempty"`
}

// Settings is the persisted user preference document. Notes is free text the
// user edits often, which is why settings writes are debounced.
type Settings struct {
	ActiveScope string    `json:"active_scope,omitempty"`
	Profiles    []Profile `json:"profiles,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

type Resolver struct {
	source SettingsSource
	logger logging.Logger
}

func NewResolver(source SettingsSource, logger logging.Logger) *Resolver {
	return &Resolver{source: source, logger: logger.With("module", "scope")}
}

// Resolve returns the explicit active scope if set, else the first active
// profile, else models.DefaultScope. It never fails.
func (r *Resolver) Resolve(ctx context.Context) (scope string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn(ctx, "settings source panicked, using default scope", "panic", fmt.Sprint(p))
			scope = models.DefaultScope
		}
	}()

	if r.source == nil {
		return models.DefaultScope
	}

	s, err := r.source.Settings(ctx)
	if err != nil {
		r.logger.Warn(ctx, "settings unavailable, using default scope", "error", err)
		return models.DefaultScope
	}
	return s.Effective()
}

// Effective applies the resolution order to already loaded settings.
func (s Settings) Effective() string {
	if s.ActiveScope != "" {
		return s.ActiveScope
	}
	for _, p := range s.Profiles {
		if p.Active && p.ID != "" {
			return p.ID
		}
	}
	return models.DefaultScope
}
