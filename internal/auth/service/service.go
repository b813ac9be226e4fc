// Package service orchestrates the credential engine: transport decryption,
// credential verification, the lockout state machine, and the risk scorer,
// composed into the register and login operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pinguard/internal/audit"
	"pinguard/internal/identity"
	"pinguard/internal/ledger"
	"pinguard/internal/lockout"
	"pinguard/internal/pincrypt"
	"pinguard/internal/platform/metrics"
	"pinguard/internal/risk"
	"pinguard/pkg/privacy"
)

// pinPattern is the strict MPIN policy: exactly 4 or 6 ASCII digits.
var pinPattern = regexp.MustCompile(`^\d{4}$|^\d{6}$`)

// IdentityStore is the subset of identity.Store the engine drives directly;
// the lockout service owns the failure-counter methods.
type IdentityStore interface {
	Create(ctx context.Context, record identity.Identity) error
	FindByPhone(ctx context.Context, phone string) (identity.Identity, error)
	SaveBinding(ctx context.Context, phone string, binding identity.DeviceBinding) error
}

// Decryptor recovers the plaintext PIN from the transport payload.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// SessionIssuer is the external collaborator minting bounded-lifetime
// tokens for verified identities.
type SessionIssuer interface {
	Issue(identityID, phone string, now time.Time) (string, time.Time, error)
}

// RiskScorer gates logins using the attempt ledger.
type RiskScorer interface {
	Score(ctx context.Context, phone, currentIP, currentFingerprint string, now time.Time) risk.Assessment
}

// LockoutMachine is the per-identity failure state machine.
type LockoutMachine interface {
	Check(record *identity.Identity, now time.Time) lockout.Status
	RecordFailure(ctx context.Context, phone string, now time.Time) (int, *time.Time, error)
	Clear(ctx context.Context, phone string, now time.Time) error
}

// AttemptRecorder appends to the ledger without ever failing the caller.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt ledger.Attempt)
}

// AuditEmitter publishes security events.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Session is the minted token plus its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	IdentityID string
	Phone      string
	Session    Session
}

// LoginResult is the outcome of a successful login. The risk score and
// flags are included for caller-side display.
type LoginResult struct {
	IdentityID string
	Phone      string
	Session    Session
	RiskScore  int
	RiskFlags  []risk.Flag
}

// Service is the credential engine.
type Service struct {
	identities IdentityStore
	attempts   AttemptRecorder
	lockout    LockoutMachine
	risk       RiskScorer
	decryptor  Decryptor
	hasher     pincrypt.Hasher
	sessions   SessionIssuer
	auditor    AuditEmitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditEmitter(auditor AuditEmitter) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(
	identities IdentityStore,
	attempts AttemptRecorder,
	lockoutMachine LockoutMachine,
	scorer RiskScorer,
	decryptor Decryptor,
	sessions SessionIssuer,
	opts ...Option,
) (*Service, error) {
	switch {
	case identities == nil:
		return nil, errors.New("identity store is required")
	case attempts == nil:
		return nil, errors.New("attempt recorder is required")
	case lockoutMachine == nil:
		return nil, errors.New("lockout machine is required")
	case scorer == nil:
		return nil, errors.New("risk scorer is required")
	case decryptor == nil:
		return nil, errors.New("decryptor is required")
	case sessions == nil:
		return nil, errors.New("session issuer is required")
	}

	svc := &Service{
		identities: identities,
		attempts:   attempts,
		lockout:    lockoutMachine,
		risk:       scorer,
		decryptor:  decryptor,
		sessions:   sessions,
		logger:     slog.Default(),
		tracer:     otel.Tracer("pinguard/auth"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, event)
	}
}

func (s *Service) countLogin(reason ledger.Reason) {
	if s.metrics != nil {
		s.metrics.RecordLogin(reason.String())
	}
}

// decrypt times the transport decryption around the injected decryptor.
// Failures are observed too; a latency shift on the failure path is just
// as interesting as one on the happy path.
func (s *Service) decrypt(payload string) (string, error) {
	start := time.Now()
	pin, err := s.decryptor.Decrypt(payload)
	if s.metrics != nil {
		s.metrics.DecryptMs.Observe(float64(time.Since(start)) / float64(time.Millisecond))
	}
	return pin, err
}

// summarizeUserAgent reduces a raw User-Agent to a short browser/OS label
// for device bindings. Raw UA strings are noisy and can be very long.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " (" + os + ")"
	}
	return summary
}

func maskedPhone(phone string) string {
	return privacy.MaskPhone(phone)
}

func maskedIP(ip string) string {
	return privacy.AnonymizeIP(ip)
}
