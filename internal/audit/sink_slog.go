package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes audit events to structured logs. It is the default sink
// and doubles as the fallback when no broker is configured.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Write(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"phone", event.Phone,
		"ip", event.IP,
		"fingerprint", event.Fingerprint,
		"reason", event.Reason,
		"risk_score", event.RiskScore,
		"flags", event.Flags,
		"request_id", event.RequestID,
		"timestamp", event.Timestamp,
	)
	return nil
}
