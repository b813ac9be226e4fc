package identity

import (
	"context"
	"time"

	dErrors "pinguard/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific misses consistent across
	// implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "identity not found")
	// ErrAlreadyExists signals a duplicate registration for a phone.
	ErrAlreadyExists = dErrors.New(dErrors.CodeAlreadyRegistered, "phone already registered")
)

// Store persists identity records. The failure-counter methods are atomic:
// concurrent logins for the same phone serialize their read-modify-write,
// while distinct phones never contend.
type Store interface {
	Create(ctx context.Context, record Identity) error
	FindByPhone(ctx context.Context, phone string) (Identity, error)

	// RecordFailure atomically increments the consecutive-failure counter
	// and returns the post-increment count plus any active lock expiry.
	RecordFailure(ctx context.Context, phone string) (int, *time.Time, error)

	// ApplyLock atomically resets the counter to zero and sets the lock
	// expiry, but only while the counter is at or above the threshold.
	// Exactly one of two racing callers observes applied=true; the loser
	// gets the expiry the winner persisted, so every caller reports the
	// same lock. The returned time is zero only when no lock is stored.
	ApplyLock(ctx context.Context, phone string, until time.Time, threshold int) (time.Time, bool, error)

	// ClearFailures resets the counter, removes any lock, and stamps the
	// last successful login.
	ClearFailures(ctx context.Context, phone string, loginAt time.Time) error

	// SaveBinding upserts a device binding by fingerprint. The trust flag
	// is set on create and preserved on update.
	SaveBinding(ctx context.Context, phone string, binding DeviceBinding) error
}
