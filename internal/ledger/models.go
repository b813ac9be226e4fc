// Package ledger is the append-only, time-bounded record of login attempts
// per identity. The risk scorer reads it; the engine writes to it on every
// attempt, success or failure, before returning a verdict.
package ledger

import "time"

// Reason is the closed set of attempt outcome codes.
type Reason string

const (
	ReasonSuccess           Reason = "success"
	ReasonWrongMPIN         Reason = "wrong_mpin"
	ReasonAccountLocked     Reason = "account_locked"
	ReasonFraudDetected     Reason = "fraud_detected"
	ReasonInvalidCiphertext Reason = "invalid_ciphertext"
)

// IsValid checks if the reason is one of the supported enum values.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonSuccess, ReasonWrongMPIN, ReasonAccountLocked, ReasonFraudDetected, ReasonInvalidCiphertext:
		return true
	}
	return false
}

func (r Reason) String() string {
	return string(r)
}

// Retention is how long attempt records stay eligible for scoring before
// the storage layer may purge them.
const Retention = 90 * 24 * time.Hour

// Attempt is one immutable login attempt record.
type Attempt struct {
	ID          string
	Phone       string
	IP          string
	Fingerprint string
	UserAgent   string
	Success     bool
	Reason      Reason
	RiskScore   int
	OccurredAt  time.Time
}
