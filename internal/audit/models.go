// Package audit captures security-relevant events from the credential
// engine and fans them out to configured sinks. Emission is fire-and-forget:
// an audit failure never fails a login.
package audit

import "time"

// Action is the closed set of security events this service emits.
type Action string

const (
	ActionUserRegistered Action = "user_registered"
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionAccountLocked  Action = "account_locked"
	ActionRiskBlocked    Action = "risk_blocked"
)

// Event is emitted from domain logic. Phone and IP arrive already masked;
// raw identifiers never reach a sink.
type Event struct {
	Action      Action    `json:"action"`
	Phone       string    `json:"phone"`
	IP          string    `json:"ip,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RiskScore   int       `json:"risk_score,omitempty"`
	Flags       []string  `json:"flags,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
