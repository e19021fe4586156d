package directory

import (
	"sync"

	"github.com/google/uuid"
)

// Store is the per-replica device directory cache. It supports many
// concurrent readers (one per aggregator shard) and a single writer
// (the replicator goroutine).
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewStore constructs an empty directory store.
func NewStore() *Store {
	return &Store{entries: make(map[uuid.UUID]Entry)}
}

// Lookup returns the entry for a device. It never blocks on replication;
// the result is whatever this replica has applied so far.
func (s *Store) Lookup(deviceID uuid.UUID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[deviceID]
	return entry, ok
}

// Upsert stores an entry unconditionally (last write wins).
func (s *Store) Upsert(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.DeviceID] = entry
}

// Delete removes an entry. Deleting an absent device is a no-op.
func (s *Store) Delete(deviceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, deviceID)
}

// Len reports how many devices this replica currently knows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
