package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Purger periodically drops attempt records older than the retention
// window. It runs as a background goroutine for stores that need explicit
// cleanup (memory, postgres).
type Purger struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

func NewPurger(store Store, interval time.Duration, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{store: store, interval: interval, logger: logger}
}

// Run purges on the interval until the context is cancelled. Cancellation
// is the normal shutdown path and returns nil.
func (p *Purger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().Add(-Retention)
			purged, err := p.store.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				p.logger.ErrorContext(ctx, "attempt purge failed", "error", err)
				continue
			}
			if purged > 0 {
				p.logger.InfoContext(ctx, "purged expired attempts", "count", purged)
			}
		}
	}
}
