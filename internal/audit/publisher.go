package audit

import (
	"context"
	"log/slog"
	"time"

	"pinguard/pkg/requestcontext"
)

const defaultBuffer = 256

// Publisher accepts events from the engine and hands them to the worker
// through a bounded buffer. When the buffer is full the event is dropped
// and counted in the log; the login path never blocks on audit.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		inbox:  make(chan Event, defaultBuffer),
		logger: logger,
	}
}

// Emit enqueues an event, stamping timestamp and request ID from context
// when absent.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped", "action", event.Action)
	}
}

// Events exposes the inbox to the worker.
func (p *Publisher) Events() <-chan Event {
	return p.inbox
}
