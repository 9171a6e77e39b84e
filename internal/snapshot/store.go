// Package snapshot keeps the board's view of the published booking
// records: fetching, strict decoding, and the single owned state value
// the reconciler reads from.
package snapshot

import (
	"sync"
	"time"

	"venueboard/internal/models"
)

// Store is the one holder of the current snapshot. Readers get copies;
// writers go through Apply, which refuses out-of-order snapshots.
type Store struct {
	mu        sync.RWMutex
	records   []models.BookingRecord
	seq       uint64
	fetchedAt time.Time
	loaded    bool
}

func NewStore() *Store {
	return &Store{}
}

// Apply installs a snapshot fetched under sequence seq. It returns
// false when a newer snapshot has already been applied; the caller
// must discard the stale response.
func (s *Store) Apply(seq uint64, records []models.BookingRecord, fetchedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded && seq <= s.seq {
		return false
	}

	s.records = records
	s.seq = seq
	s.fetchedAt = fetchedAt
	s.loaded = true
	return true
}

// Records returns a copy of the current snapshot and whether any
// snapshot has been applied yet.
func (s *Store) Records() ([]models.BookingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BookingRecord, len(s.records))
	copy(out, s.records)
	return out, s.loaded
}

// FetchedAt reports when the current snapshot was applied.
func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Seq reports the sequence number of the applied snapshot.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}
