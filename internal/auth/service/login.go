package service

import (
	"context"
	"errors"

	"pinguard/internal/audit"
	"pinguard/internal/identity"
	"pinguard/internal/ledger"
	"pinguard/internal/risk"
	dErrors "pinguard/pkg/domain-errors"
	"pinguard/pkg/requestcontext"
)

// Login verifies an MPIN for an existing identity. The gate order is fixed:
// lockout check first (no cryptographic work for an attempt that cannot
// succeed), then risk scoring, then decryption and verification. Every
// attempt lands in the ledger before a verdict is returned, so the risk
// history stays complete even for rejected requests.
func (s *Service) Login(ctx context.Context, phone, encryptedPIN string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	normalized, err := identity.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	record, err := s.identities.FindByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Registration already discloses which phones exist, so a
			// distinct not-found beats a misleading wrong-credential
			// response here.
			return nil, identity.ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "identity store unavailable")
	}

	now := requestcontext.Now(ctx)
	currentIP := requestcontext.ClientIP(ctx)
	fingerprint := requestcontext.DeviceFingerprint(ctx)
	userAgent := requestcontext.UserAgent(ctx)

	recordAttempt := func(success bool, reason ledger.Reason, score int) {
		s.attempts.Record(ctx, ledger.Attempt{
			Phone:       normalized,
			IP:          currentIP,
			Fingerprint: fingerprint,
			UserAgent:   userAgent,
			Success:     success,
			Reason:      reason,
			RiskScore:   score,
			OccurredAt:  now,
		})
		s.countLogin(reason)
	}

	if status := s.lockout.Check(&record, now); status.Locked {
		recordAttempt(false, ledger.ReasonAccountLocked, 0)
		s.emit(ctx, audit.Event{
			Action: audit.ActionLoginFailed,
			Phone:  maskedPhone(normalized),
			IP:     maskedIP(currentIP),
			Reason: ledger.ReasonAccountLocked.String(),
		})
		return nil, dErrors.New(dErrors.CodeAccountLocked, "account temporarily locked").
			WithMeta("locked_until", status.Until)
	}

	assessment := s.risk.Score(ctx, normalized, currentIP, fingerprint, now)
	if s.metrics != nil {
		s.metrics.RiskScore.Observe(float64(assessment.Score))
	}

	if assessment.Action == risk.ActionBlock {
		recordAttempt(false, ledger.ReasonFraudDetected, assessment.Score)
		s.emit(ctx, audit.Event{
			Action:    audit.ActionRiskBlocked,
			Phone:     maskedPhone(normalized),
			IP:        maskedIP(currentIP),
			RiskScore: assessment.Score,
			Flags:     flagStrings(assessment.Flags),
		})
		// The caller is expected to force out-of-band re-verification
		// before accepting another attempt.
		return nil, dErrors.New(dErrors.CodeRiskBlocked, "additional verification required").
			WithMeta("flags", flagStrings(assessment.Flags))
	}

	pin, err := s.decrypt(encryptedPIN)
	if err != nil {
		// No credential comparison happened, so the lockout counter is
		// not advanced for a malformed payload.
		recordAttempt(false, ledger.ReasonInvalidCiphertext, assessment.Score)
		return nil, err
	}

	verified := s.hasher.Verify(pin, record.MPINHash, record.MPINSalt)
	pin = ""

	if !verified {
		remaining, lockedUntil, err := s.lockout.RecordFailure(ctx, normalized, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "identity store unavailable")
		}
		recordAttempt(false, ledger.ReasonWrongMPIN, assessment.Score)

		if lockedUntil != nil {
			if s.metrics != nil {
				s.metrics.Lockouts.Inc()
			}
			s.emit(ctx, audit.Event{
				Action: audit.ActionAccountLocked,
				Phone:  maskedPhone(normalized),
				IP:     maskedIP(currentIP),
			})
		} else {
			s.emit(ctx, audit.Event{
				Action: audit.ActionLoginFailed,
				Phone:  maskedPhone(normalized),
				IP:     maskedIP(currentIP),
				Reason: ledger.ReasonWrongMPIN.String(),
			})
		}
		return nil, dErrors.New(dErrors.CodeWrongCredential, "incorrect pin").
			WithMeta("attempts_remaining", remaining)
	}

	if err := s.lockout.Clear(ctx, normalized, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "identity store unavailable")
	}

	if fingerprint != "" {
		binding := identity.DeviceBinding{
			Fingerprint:   fingerprint,
			LastUserAgent: summarizeUserAgent(userAgent),
			LastUsedAt:    now,
			Trusted:       true,
		}
		if err := s.identities.SaveBinding(ctx, normalized, binding); err != nil {
			// A lost binding update degrades device recognition, not the
			// login itself.
			s.logger.WarnContext(ctx, "device binding update failed",
				"phone", maskedPhone(normalized), "error", err)
		}
	}

	token, expiresAt, err := s.sessions.Issue(record.ID, normalized, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session issuance failed")
	}

	recordAttempt(true, ledger.ReasonSuccess, assessment.Score)
	s.emit(ctx, audit.Event{
		Action:      audit.ActionLoginSucceeded,
		Phone:       maskedPhone(normalized),
		IP:          maskedIP(currentIP),
		Fingerprint: fingerprint,
		RiskScore:   assessment.Score,
		Flags:       flagStrings(assessment.Flags),
	})

	if assessment.Action == risk.ActionWarn {
		s.logger.WarnContext(ctx, "login allowed with elevated risk",
			"phone", maskedPhone(normalized),
			"score", assessment.Score,
			"flags", flagStrings(assessment.Flags),
		)
	}

	return &LoginResult{
		IdentityID: record.ID,
		Phone:      normalized,
		Session:    Session{Token: token, ExpiresAt: expiresAt},
		RiskScore:  assessment.Score,
		RiskFlags:  assessment.Flags,
	}, nil
}

func flagStrings(flags []risk.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, flag := range flags {
		out[i] = string(flag)
	}
	return out
}
