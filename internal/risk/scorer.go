// Package risk scores login attempts against an identity's recent history.
// The scorer is an additive point model: each rule is evaluated once per
// call, order-independent, over a bounded window of ledger records plus the
// current request's network and device signals.
package risk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pinguard/internal/ledger"
	"pinguard/pkg/privacy"
)

// Flag is a named signal contributing to the risk score.
type Flag string

const (
	FlagFirstLogin      Flag = "first_login"
	FlagNewIP           Flag = "new_ip"
	FlagNewDevice       Flag = "new_device"
	FlagRapidAttempts   Flag = "rapid_attempts"
	FlagHighFailureRate Flag = "high_failure_rate"
	FlagUnusualHour     Flag = "unusual_hour"
	FlagDetectionError  Flag = "detection_error"
)

// Action is the scorer's gate decision.
type Action string

const (
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

const (
	historyWindow = 30 * 24 * time.Hour
	historyLimit  = 50

	rapidWindow    = 5 * time.Minute
	rapidThreshold = 3

	pointsFirstLogin      = 5
	pointsNewIP           = 20
	pointsNewDevice       = 25
	pointsRapidAttempts   = 30
	pointsHighFailureRate = 15
	pointsUnusualHour     = 10

	warnAbove  = 30
	blockAbove = 60

	unusualHourStart = 2
	unusualHourEnd   = 5

	fallbackScore = 10
)

// Assessment is the scorer's verdict for one attempt.
type Assessment struct {
	Score  int
	Flags  []Flag
	Action Action
}

// Has reports whether the assessment carries a flag.
func (a Assessment) Has(flag Flag) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Ledger is the windowed read the scorer needs.
type Ledger interface {
	RecentFor(ctx context.Context, phone string, since time.Time, limit int) ([]ledger.Attempt, error)
}

type Scorer struct {
	ledger Ledger
	logger *slog.Logger
}

type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

func New(attempts Ledger, opts ...Option) (*Scorer, error) {
	if attempts == nil {
		return nil, errors.New("attempt ledger is required")
	}
	scorer := &Scorer{ledger: attempts, logger: slog.Default()}
	for _, opt := range opts {
		opt(scorer)
	}
	return scorer, nil
}

// Score evaluates the current attempt. Deterministic given a fixed now and
// fixed ledger contents. A ledger read failure degrades to a neutral
// fallback instead of failing the login path: infrastructure trouble must
// not lock out every user.
func (s *Scorer) Score(ctx context.Context, phone, currentIP, currentFingerprint string, now time.Time) Assessment {
	history, err := s.ledger.RecentFor(ctx, phone, now.Add(-historyWindow), historyLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "risk history unavailable, using neutral fallback",
			"phone", privacy.MaskPhone(phone),
			"error", err,
		)
		return Assessment{
			Score:  fallbackScore,
			Flags:  []Flag{FlagDetectionError},
			Action: ActionAllow,
		}
	}
	return evaluate(history, currentIP, currentFingerprint, now)
}

func evaluate(history []ledger.Attempt, currentIP, currentFingerprint string, now time.Time) Assessment {
	score := 0
	var flags []Flag

	if len(history) == 0 {
		score += pointsFirstLogin
		flags = append(flags, FlagFirstLogin)
	} else {
		knownIPs := make(map[string]struct{})
		knownFingerprints := make(map[string]struct{})
		rapid := 0
		failed := 0

		for _, attempt := range history {
			if attempt.Success {
				if attempt.IP != "" {
					knownIPs[attempt.IP] = struct{}{}
				}
				if attempt.Fingerprint != "" {
					knownFingerprints[attempt.Fingerprint] = struct{}{}
				}
			} else {
				failed++
			}
			if !attempt.OccurredAt.Before(now.Add(-rapidWindow)) {
				rapid++
			}
		}

		if len(knownIPs) > 0 {
			if _, known := knownIPs[currentIP]; !known {
				score += pointsNewIP
				flags = append(flags, FlagNewIP)
			}
		}
		if len(knownFingerprints) > 0 {
			if _, known := knownFingerprints[currentFingerprint]; !known {
				score += pointsNewDevice
				flags = append(flags, FlagNewDevice)
			}
		}
		if rapid > rapidThreshold {
			score += pointsRapidAttempts
			flags = append(flags, FlagRapidAttempts)
		}
		// Integer form of failed/total > 0.5, kept reproducible across
		// implementations.
		if failed*2 > len(history) {
			score += pointsHighFailureRate
			flags = append(flags, FlagHighFailureRate)
		}
	}

	if hour := now.Hour(); hour >= unusualHourStart && hour <= unusualHourEnd {
		score += pointsUnusualHour
		flags = append(flags, FlagUnusualHour)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Assessment{Score: score, Flags: flags, Action: actionFor(score)}
}

func actionFor(score int) Action {
	switch {
	case score <= warnAbove:
		return ActionAllow
	case score <= blockAbove:
		return ActionWarn
	default:
		return ActionBlock
	}
}
