// Package cache is the local, persistent cache of entry snapshots.
//
// Every snapshot is a complete list of entries stored under a key built by
// Key. Reads and writes never fail from the caller's point of view: backend
// errors are logged and degrade to a miss or a no-op, so the sync engine can
// treat the cache as best effort. When the SQLite database cannot be opened,
// Open returns a store backed by process memory with the same semantics.
package cache
