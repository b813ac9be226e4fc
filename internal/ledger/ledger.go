package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pinguard/pkg/privacy"
	"pinguard/pkg/requestcontext"
)

// Ledger wraps a Store with the write semantics the engine needs: a record
// is fire-and-forget from the caller's perspective, but a persistence
// failure is logged rather than silently dropped, so it never blocks the
// login response.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("attempt store is required")
	}
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends one attempt, filling in the ID and timestamp when absent.
// It never returns an error.
func (l *Ledger) Record(ctx context.Context, attempt Attempt) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = requestcontext.Now(ctx)
	}
	if err := l.store.Append(ctx, attempt); err != nil {
		l.logger.ErrorContext(ctx, "attempt record lost",
			"phone", privacy.MaskPhone(attempt.Phone),
			"reason", attempt.Reason,
			"error", err,
		)
	}
}

// RecentFor exposes the windowed read the risk scorer depends on.
func (l *Ledger) RecentFor(ctx context.Context, phone string, since time.Time, limit int) ([]Attempt, error) {
	return l.store.RecentFor(ctx, phone, since, limit)
}
