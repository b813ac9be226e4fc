package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used for local runs and unit tests.
// Each entry carries its own mutex so per-identity read-modify-write is
// serialized without blocking other identities.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu     sync.Mutex
	record Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, record Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[record.Phone]; exists {
		return ErrAlreadyExists
	}
	s.entries[record.Phone] = &memoryEntry{record: cloneIdentity(record)}
	return nil
}

func (s *MemoryStore) FindByPhone(_ context.Context, phone string) (Identity, error) {
	entry, err := s.entry(phone)
	if err != nil {
		return Identity{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneIdentity(entry.record), nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, phone string) (int, *time.Time, error) {
	entry, err := s.entry(phone)
	if err != nil {
		return 0, nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.record.FailedAttempts++
	return entry.record.FailedAttempts, cloneTime(entry.record.LockedUntil), nil
}

func (s *MemoryStore) ApplyLock(_ context.Context, phone string, until time.Time, threshold int) (time.Time, bool, error) {
	entry, err := s.entry(phone)
	if err != nil {
		return time.Time{}, false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.record.FailedAttempts < threshold {
		// Lost the race (or the counter was cleared); report whatever
		// lock is actually stored.
		if entry.record.LockedUntil != nil {
			return *entry.record.LockedUntil, false, nil
		}
		return time.Time{}, false, nil
	}
	entry.record.FailedAttempts = 0
	lock := until
	entry.record.LockedUntil = &lock
	return until, true, nil
}

func (s *MemoryStore) ClearFailures(_ context.Context, phone string, loginAt time.Time) error {
	entry, err := s.entry(phone)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.record.FailedAttempts = 0
	entry.record.LockedUntil = nil
	at := loginAt
	entry.record.LastLoginAt = &at
	return nil
}

func (s *MemoryStore) SaveBinding(_ context.Context, phone string, binding DeviceBinding) error {
	entry, err := s.entry(phone)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	for idx := range entry.record.Devices {
		if entry.record.Devices[idx].Fingerprint == binding.Fingerprint {
			entry.record.Devices[idx].LastUserAgent = binding.LastUserAgent
			entry.record.Devices[idx].LastUsedAt = binding.LastUsedAt
			return nil
		}
	}
	entry.record.Devices = append(entry.record.Devices, binding)
	return nil
}

func (s *MemoryStore) entry(phone string) (*memoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.entries[phone]
	if !exists {
		return nil, ErrNotFound
	}
	return entry, nil
}

func cloneIdentity(record Identity) Identity {
	clone := record
	clone.LockedUntil = cloneTime(record.LockedUntil)
	clone.LastLoginAt = cloneTime(record.LastLoginAt)
	clone.Devices = make([]DeviceBinding, len(record.Devices))
	copy(clone.Devices, record.Devices)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
