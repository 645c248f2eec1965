package models

import "time"

// Otp purposes. A purpose scopes a one-time code to the flow it was issued for.
const (
	PurposeRegister      = "register"
	PurposePasswordReset = "password_reset"
)

type Account struct {
	ID         string
	Email      string
	Name       string
	PassHash   string
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Otp is one outstanding one-time code for an (account, purpose) pair.
// Only the bcrypt hash of the code is ever stored.
type Otp struct {
	ID          string
	AccountID   string
	CodeHash    string
	Purpose     string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

// Session backs one outstanding refresh token. The raw token is never
// persisted, only its sha256 digest.
type Session struct {
	ID               string
	AccountID        string
	RefreshTokenHash string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// AuditMeta is the closed set of metadata fields an audit event may carry.
type AuditMeta struct {
	Email   string `json:"email,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// AuditEvent is an append-only record of a security-relevant state change.
// AccountID may be empty when the event is not tied to a known account.
type AuditEvent struct {
	ID        string
	AccountID string
	EventType string
	Meta      AuditMeta
	IP        string
	UserAgent string
	CreatedAt time.Time
}
