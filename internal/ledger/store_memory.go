package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempts per phone in append order. Suitable for local
// runs and unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string][]Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]Attempt)}
}

func (s *MemoryStore) Append(_ context.Context, attempt Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.Phone] = append(s.attempts[attempt.Phone], attempt)
	return nil
}

func (s *MemoryStore) RecentFor(_ context.Context, phone string, since time.Time, limit int) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.attempts[phone]
	var out []Attempt
	// Walk backwards so the result is most recent first.
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		if history[i].OccurredAt.Before(since) {
			continue
		}
		out = append(out, history[i])
	}
	return out, nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for phone, history := range s.attempts {
		kept := history[:0]
		for _, attempt := range history {
			if attempt.OccurredAt.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, attempt)
		}
		if len(kept) == 0 {
			delete(s.attempts, phone)
			continue
		}
		s.attempts[phone] = kept
	}
	return purged, nil
}
