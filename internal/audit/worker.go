package audit

import (
	"context"
	"log/slog"
)

// Sink receives fully-formed audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Worker drains the publisher's inbox into a sink. It keeps background
// processing testable without wiring queue implementations into the engine.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run drains events until the context is cancelled. Cancellation is the
// normal shutdown path and returns nil.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-w.inbox:
			if err := w.sink.Write(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink write failed",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
