package ledger

import (
	"context"
	"time"
)

// Store persists attempt records. Appends may be concurrent across
// identities; readers only need a time-windowed view, not strict
// linearizability, and must tolerate a store that already purged old rows.
type Store interface {
	Append(ctx context.Context, attempt Attempt) error

	// RecentFor returns attempts for a phone since the given time, most
	// recent first, capped at limit.
	RecentFor(ctx context.Context, phone string, since time.Time, limit int) ([]Attempt, error)

	// PurgeOlderThan removes records past retention and reports how many
	// were dropped. Stores whose retention rides on TTLs may no-op.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
