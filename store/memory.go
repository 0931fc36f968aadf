package store

import (
	"context"
	"sync"
	"time"

	receipts "github.com/x402-foundation/receipt-verifier"
)

// InMemoryStore provides an in-memory implementation of receipts.ProgressStore.
//
// This implementation is suitable for single-instance deployments where
// progress doesn't need to be shared across processes. For load-balanced
// deployments use RedisStore.
//
// Features:
//   - Thread-safe with mutex protection
//   - Per-record expiry fixed at creation
//   - Lazy cleanup of expired entries
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*progressRecord
	now     func() time.Time
}

type progressRecord struct {
	value  uint64
	expiry time.Time
}

// NewInMemoryStore creates an empty in-memory progress store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*progressRecord),
		now:     time.Now,
	}
}

// Ensure creates the record for nonce unless a live one exists.
func (s *InMemoryStore) Ensure(_ context.Context, nonce string, baseline uint64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[nonce]; ok && now.Before(rec.expiry) {
		return nil
	}
	s.records[nonce] = &progressRecord{value: baseline, expiry: now.Add(ttl)}

	s.cleanupExpiredLocked(now)
	return nil
}

// GetAndUpdateIfGreater atomically compares candidate to the stored value
// and raises it when candidate is larger. The expiry is not extended.
func (s *InMemoryStore) GetAndUpdateIfGreater(_ context.Context, nonce string, candidate uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[nonce]
	if !ok {
		return 0, receipts.ErrNonceNotFound
	}
	if !s.now().Before(rec.expiry) {
		// Expired - clean it up
		delete(s.records, nonce)
		return 0, receipts.ErrNonceNotFound
	}

	previous := rec.value
	if candidate > previous {
		rec.value = candidate
	}
	return previous, nil
}

// Get returns the stored progress for nonce, for inspection and tests.
func (s *InMemoryStore) Get(nonce string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[nonce]
	if !ok || !s.now().Before(rec.expiry) {
		return 0, false
	}
	return rec.value, true
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked(now time.Time) {
	for key, rec := range s.records {
		if !now.Before(rec.expiry) {
			delete(s.records, key)
		}
	}
}

// Ensure InMemoryStore implements ProgressStore
var _ receipts.ProgressStore = (*InMemoryStore)(nil)
