package idempotency

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
)

// Store keeps replayable responses in process memory. Records never expire.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[idempotency.Fingerprint]idempotency.Record
}

func NewStore() *Store {
	return &Store{records: make(map[idempotency.Fingerprint]idempotency.Record)}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	rec.Body = append([]byte(nil), rec.Body...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fp] = rec
	return nil
}

// Len reports how many fingerprints are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
