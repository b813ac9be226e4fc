// Package lockout implements the per-identity failure state machine:
// Unlocked(0..4) on consecutive failures, Locked(until) once the threshold
// is hit, cycling back to Unlocked(0) on success or natural expiry.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pinguard/internal/identity"
	"pinguard/pkg/privacy"
)

const (
	// DefaultThreshold is the consecutive-failure count that trips a lock.
	DefaultThreshold = 5
	// DefaultLockDuration is how long a tripped lock holds.
	DefaultLockDuration = 30 * time.Minute
)

// Store is the subset of the identity store the state machine drives.
type Store interface {
	RecordFailure(ctx context.Context, phone string) (int, *time.Time, error)
	ApplyLock(ctx context.Context, phone string, until time.Time, threshold int) (time.Time, bool, error)
	ClearFailures(ctx context.Context, phone string, loginAt time.Time) error
}

// Status is the verdict of a pre-verification lock check.
type Status struct {
	Locked bool
	Until  time.Time
}

type Service struct {
	store     Store
	logger    *slog.Logger
	threshold int
	lockFor   time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithThreshold(threshold int) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

func WithLockDuration(d time.Duration) Option {
	return func(s *Service) {
		s.lockFor = d
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:     store,
		logger:    slog.Default(),
		threshold: DefaultThreshold,
		lockFor:   DefaultLockDuration,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check evaluates the loaded record against now. It runs strictly before
// any PIN verification or risk scoring: a locked account gets a uniform
// response without spending cryptographic work. An expired lock reads as
// Unlocked(0); the counter was already reset when the lock was applied.
func (s *Service) Check(record *identity.Identity, now time.Time) Status {
	if record.IsLockedAt(now) {
		return Status{Locked: true, Until: *record.LockedUntil}
	}
	return Status{}
}

// RecordFailure advances the machine after a failed credential comparison.
// Reaching the threshold resets the counter and sets the expiry in one
// atomic store operation, so two racing failures cannot double-lock.
// Returns the attempts remaining before a lock (0 once locked) and the
// lock expiry when this failure tripped it.
func (s *Service) RecordFailure(ctx context.Context, phone string, now time.Time) (int, *time.Time, error) {
	count, _, err := s.store.RecordFailure(ctx, phone)
	if err != nil {
		return 0, nil, err
	}

	if count >= s.threshold {
		until := now.Add(s.lockFor)
		stored, applied, err := s.store.ApplyLock(ctx, phone, until, s.threshold)
		if err != nil {
			return 0, nil, err
		}
		if applied {
			s.logger.WarnContext(ctx, "account locked",
				"phone", privacy.MaskPhone(phone),
				"locked_until", until,
			)
		} else if !stored.IsZero() {
			// A racing failure won the lock; report its expiry so the
			// caller never surfaces a lock time that was not persisted.
			until = stored
		}
		return 0, &until, nil
	}

	return s.threshold - count, nil, nil
}

// Clear resets the machine after a successful verification.
func (s *Service) Clear(ctx context.Context, phone string, now time.Time) error {
	return s.store.ClearFailures(ctx, phone, now)
}
