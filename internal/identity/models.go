// Package identity defines the user record keyed by normalized phone number
// and the stores that persist it. The raw PIN is never part of this model;
// only the salted digest and salt persist.
package identity

import (
	"strings"
	"time"
	"unicode"

	dErrors "pinguard/pkg/domain-errors"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// Identity is one registered user.
type Identity struct {
	ID             string
	Phone          string
	MPINHash       string
	MPINSalt       string
	FailedAttempts int
	LockedUntil    *time.Time
	Devices        []DeviceBinding
	CreatedAt      time.Time
	LastLoginAt    *time.Time
}

// DeviceBinding tracks one client fingerprint seen on successful logins.
// Bindings are created trusted on first sight and never deleted
// automatically.
type DeviceBinding struct {
	Fingerprint   string
	LastUserAgent string
	LastUsedAt    time.Time
	Trusted       bool
}

// IsLockedAt reports whether the account lock is active at the given time.
// An expired lock reads as unlocked; the next attempt is evaluated as if
// the account was never locked.
func (i *Identity) IsLockedAt(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// Binding returns the device binding for a fingerprint, or nil.
func (i *Identity) Binding(fingerprint string) *DeviceBinding {
	for idx := range i.Devices {
		if i.Devices[idx].Fingerprint == fingerprint {
			return &i.Devices[idx]
		}
	}
	return nil
}

// NormalizePhone strips everything but digits and validates the length
// bounds. The normalized form is the identity key everywhere downstream.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", dErrors.New(dErrors.CodeInvalidInput, "phone number must contain 10 to 15 digits")
	}
	return digits, nil
}
