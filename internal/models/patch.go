package models

import "time"

// Patch is a partial update. Nil fields are left untouched; Metadata is
// deep-merged into the existing object (nested objects merge, everything else
// is replaced, a nil value removes the key).
type Patch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && len(p.Metadata) == 0
}

// ApplyPatch returns a copy of e with p applied and UpdatedAt set to now. A
// blank title becomes DefaultTitle, as on create.
func ApplyPatch(e Entry, p Patch, now time.Time) Entry {
	out := e.Clone()
	if p.Title != nil {
		out.Title = NormalizeTitle(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if len(p.Metadata) > 0 {
		out.Metadata = MergeMetadata(out.Metadata, p.Metadata)
	}
	if now.Before(out.CreatedAt) {
		now = out.CreatedAt
	}
	out.UpdatedAt = now
	return out
}

// MergeMetadata deep-merges patch into base and returns a new map. Neither
// argument is modified.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := cloneMap(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		if pm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = MergeMetadata(bm, pm)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
