package models

// DefaultScope is the scope of users without profiles and of every row
// written before scopes existed.
const DefaultScope = "default"

// ScopeMatches reports whether a row tagged with rowScope belongs to current.
// Rows without a scope are legacy data and belong to DefaultScope only.
func ScopeMatches(rowScope *string, current string) bool {
	if rowScope == nil {
		return current == DefaultScope
	}
	return *rowScope == current
}

// ScopeOrDefault maps an empty scope to DefaultScope.
func ScopeOrDefault(scope string) string {
	if scope == "" {
		return DefaultScope
	}
	return scope
}

func StringPtr(s string) *string { return &s }
