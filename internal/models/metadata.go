package models

import (
	"encoding/json"
	"fmt"
)

// NormalizeMetadata round-trips m through JSON so it only holds the types a
// decoded cache snapshot or server reply would hold (float64, string, bool,
// []any, map[string]any).
func NormalizeMetadata(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return out, nil
}

// DecodeMetadata converts an entry's open metadata object into a typed view
// owned by a domain editor, e.g.
//
//	type Vehicle struct { Make string `json:"make"`; Mileage int `json:"mileage"` }
//	v, err := models.DecodeMetadata[Vehicle](entry.Metadata)
func DecodeMetadata[T any](m map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
