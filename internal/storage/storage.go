package storage

import (
	"context"
	"errors"
	"time"

	"credential_service/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrOtpNotFound  = errors.New("otp not found")
)

// Store is the set of persistence operations available inside one atomic
// unit of work. Implementations are bound to a single transaction.
type Store interface {
	SaveAccount(ctx context.Context, email, name, passHash string) (string, error)
	AccountByEmail(ctx context.Context, email string) (models.Account, error)
	MarkAccountVerified(ctx context.Context, accountID string) error
	UpdatePassword(ctx context.Context, accountID, passHash string) error

	SaveOtp(ctx context.Context, otp models.Otp) error
	DeleteOtps(ctx context.Context, accountID, purpose string) error
	ActiveOtp(ctx context.Context, accountID, purpose string) (models.Otp, error)
	IncrementOtpAttempts(ctx context.Context, otpID string) (int, error)
	ConsumeOtp(ctx context.Context, otpID string, at time.Time) error

	SaveSession(ctx context.Context, session models.Session) error
	ActiveSessions(ctx context.Context, accountID string, now time.Time) ([]models.Session, error)
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error

	AppendAudit(ctx context.Context, event models.AuditEvent) error
}

// TxRunner runs fn inside a transaction: every write commits or none does.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
