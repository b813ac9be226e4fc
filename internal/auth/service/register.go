package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pinguard/internal/audit"
	"pinguard/internal/identity"
	"pinguard/internal/ledger"
	dErrors "pinguard/pkg/domain-errors"
	"pinguard/pkg/requestcontext"
)

// Register creates a credential record for a new phone identity and mints
// its first session. Client IP and device fingerprint are taken from the
// request context, where the transport middleware places them.
func (s *Service) Register(ctx context.Context, phone, encryptedPIN string) (*RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	fingerprint := requestcontext.DeviceFingerprint(ctx)

	normalized, err := identity.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	if _, err := s.identities.FindByPhone(ctx, normalized); err == nil {
		return nil, identity.ErrAlreadyExists
	} else if !errors.Is(err, identity.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "identity store unavailable")
	}

	pin, err := s.decrypt(encryptedPIN)
	if err != nil {
		return nil, err
	}
	if !pinPattern.MatchString(pin) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "pin must be exactly 4 or 6 digits")
	}

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "salt generation failed")
	}
	digest := s.hasher.Hash(pin, salt)
	pin = ""

	now := requestcontext.Now(ctx)
	record := identity.Identity{
		ID:        uuid.NewString(),
		Phone:     normalized,
		MPINHash:  digest,
		MPINSalt:  salt,
		CreatedAt: now,
	}
	if fingerprint != "" {
		record.Devices = []identity.DeviceBinding{{
			Fingerprint:   fingerprint,
			LastUserAgent: summarizeUserAgent(requestcontext.UserAgent(ctx)),
			LastUsedAt:    now,
			Trusted:       true,
		}}
	}

	if err := s.identities.Create(ctx, record); err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			return nil, identity.ErrAlreadyExists
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "identity store unavailable")
	}

	token, expiresAt, err := s.sessions.Issue(record.ID, normalized, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session issuance failed")
	}

	s.attempts.Record(ctx, ledger.Attempt{
		Phone:       normalized,
		IP:          requestcontext.ClientIP(ctx),
		Fingerprint: fingerprint,
		UserAgent:   requestcontext.UserAgent(ctx),
		Success:     true,
		Reason:      ledger.ReasonSuccess,
		OccurredAt:  now,
	})

	if s.metrics != nil {
		s.metrics.Registrations.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:      audit.ActionUserRegistered,
		Phone:       maskedPhone(normalized),
		IP:          maskedIP(requestcontext.ClientIP(ctx)),
		Fingerprint: fingerprint,
	})
	s.logger.InfoContext(ctx, "identity registered", "phone", maskedPhone(normalized))

	return &RegisterResult{
		IdentityID: record.ID,
		Phone:      normalized,
		Session:    Session{Token: token, ExpiresAt: expiresAt},
	}, nil
}
