// Package models defines the record shape shared by the sync engine, the
// wire contract and the reference record service.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is stamped on entries created without a title.
	DefaultTitle = "Untitled"

	// TempIDPrefix marks ids assigned locally before the server answered.
	TempIDPrefix = "tmp-"
)

// Entry is one user-owned record in a domain collection (a vehicle, a bill,
// an insurance policy, ...). Metadata is an open JSON object whose shape is
// owned by the domain editor, not by the engine.
type Entry struct {
	ID          string         `json:"id"`
	Domain      string         `json:"domain"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	ScopeID     *string        `json:"scope_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy; nested metadata maps and slices are not shared.
func (e Entry) Clone() Entry {
	out := e
	if e.ScopeID != nil {
		s := *e.ScopeID
		out.ScopeID = &s
	}
	if e.Metadata != nil {
		out.Metadata = cloneMap(e.Metadata)
	}
	return out
}

// Scope returns the effective scope of the row, treating legacy rows without
// a scope as belonging to DefaultScope.
func (e Entry) Scope() string {
	if e.ScopeID == nil {
		return DefaultScope
	}
	return *e.ScopeID
}

func CloneEntries(in []Entry) []Entry {
	if in == nil {
		return nil
	}
	out := make([]Entry, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// IndexOf returns the position of id in entries or -1.
func IndexOf(entries []Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

// NormalizeTitle trims s and falls back to DefaultTitle when nothing is left.
func NormalizeTitle(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return DefaultTitle
}

func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
