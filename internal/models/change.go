package models

// ChangeType is the kind of row change pushed by the realtime feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one message of the realtime feed. For deletes Row carries at
// least ID, Domain, OwnerID and ScopeID.
type Change struct {
	EventType ChangeType `json:"eventType"`
	Row       Entry      `json:"row"`
}
