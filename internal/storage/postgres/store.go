package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credential_service/internal/models"
	"credential_service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the store. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store against a single connection or transaction.
type Store struct {
	db Querier
}

func (s *Store) SaveAccount(ctx context.Context, email, name, passHash string) (string, error) {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id string

	err := s.db.QueryRow(ctx, query, uuid.NewString(), email, name, passHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", storage.ErrUserExists
		}

		return "", fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return id, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	query := `
		SELECT id, email, name, password_hash, is_verified, created_at, updated_at
		FROM accounts
		WHERE email = $1;
	`

	row := s.db.QueryRow(ctx, query, email)

	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.PassHash,
		&a.IsVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, err
	}

	return a, nil
}

func (s *Store) MarkAccountVerified(ctx context.Context, accountID string) error {
	query := `UPDATE accounts SET is_verified = TRUE, updated_at = now() WHERE id = $1`

	_, err := s.db.Exec(ctx, query, accountID)

	return err
}

func (s *Store) UpdatePassword(ctx context.Context, accountID, passHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`

	_, err := s.db.Exec(ctx, query, accountID, passHash)

	return err
}

func (s *Store) SaveOtp(ctx context.Context, otp models.Otp) error {
	const query = `
		INSERT INTO otp_codes (id, account_id, code_hash, purpose, expires_at, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		otp.ID, otp.AccountID, otp.CodeHash, otp.Purpose, otp.ExpiresAt, otp.MaxAttempts)

	return err
}

func (s *Store) DeleteOtps(ctx context.Context, accountID, purpose string) error {
	query := `DELETE FROM otp_codes WHERE account_id = $1 AND purpose = $2`

	_, err := s.db.Exec(ctx, query, accountID, purpose)

	return err
}

// ActiveOtp returns the single unconsumed code for (account, purpose),
// most-recently-created first. The row is locked for the transaction so two
// concurrent verifications cannot both observe a non-exhausted counter.
func (s *Store) ActiveOtp(ctx context.Context, accountID, purpose string) (models.Otp, error) {
	const query = `
		SELECT id, account_id, code_hash, purpose, expires_at, attempts, max_attempts, consumed_at, created_at
		FROM otp_codes
		WHERE account_id = $1 AND purpose = $2 AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE;
	`

	row := s.db.QueryRow(ctx, query, accountID, purpose)

	var o models.Otp
	err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.CodeHash,
		&o.Purpose,
		&o.ExpiresAt,
		&o.Attempts,
		&o.MaxAttempts,
		&o.ConsumedAt,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Otp{}, storage.ErrOtpNotFound
		}

		return models.Otp{}, err
	}

	return o, nil
}

// IncrementOtpAttempts bumps the attempt counter atomically relative to its
// prior value and returns the new count.
func (s *Store) IncrementOtpAttempts(ctx context.Context, otpID string) (int, error) {
	const query = `
		UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts
	`

	var attempts int
	if err := s.db.QueryRow(ctx, query, otpID).Scan(&attempts); err != nil {
		return 0, err
	}

	return attempts, nil
}

func (s *Store) ConsumeOtp(ctx context.Context, otpID string, at time.Time) error {
	query := `UPDATE otp_codes SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`

	_, err := s.db.Exec(ctx, query, otpID, at)

	return err
}

func (s *Store) SaveSession(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (id, account_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query,
		session.ID, session.AccountID, session.RefreshTokenHash, session.ExpiresAt)

	return err
}

func (s *Store) ActiveSessions(ctx context.Context, accountID string, now time.Time) ([]models.Session, error) {
	const query = `
		SELECT id, account_id, refresh_token_hash, expires_at, revoked_at, created_at
		FROM sessions
		WHERE account_id = $1 AND revoked_at IS NULL AND expires_at > $2;
	`

	rows, err := s.db.Query(ctx, query, accountID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session

	for rows.Next() {
		var sess models.Session

		err := rows.Scan(
			&sess.ID,
			&sess.AccountID,
			&sess.RefreshTokenHash,
			&sess.ExpiresAt,
			&sess.RevokedAt,
			&sess.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, sess)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return sessions, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	_, err := s.db.Exec(ctx, query, sessionID, at)

	return err
}

func (s *Store) AppendAudit(ctx context.Context, event models.AuditEvent) error {
	const op = "storage.postgres.AppendAudit"

	const query = `
		INSERT INTO audit_logs (id, account_id, event_type, metadata, ip_address, user_agent)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`

	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal metadata: %w", op, err)
	}

	_, err = s.db.Exec(ctx, query,
		event.ID, event.AccountID, event.EventType, meta, event.IP, event.UserAgent)

	return err
}
