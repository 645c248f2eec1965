package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "credential_service/internal/lib/logger"
	"credential_service/internal/models"
	"credential_service/internal/storage"
)

// RequestPasswordReset issues a password_reset code for an existing account.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string, origin Origin) (OtpResult, error) {
	const op = "auth.RequestPasswordReset"

	log := a.log.With(slog.String("op", op))

	var (
		res  OtpResult
		code string
	)

	err := a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		acc, err := s.AccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return ErrUserNotFound
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		code, err = a.issueOtp(ctx, s, acc.ID, models.PurposePasswordReset)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.audit(ctx, s, acc.ID, EventPasswordResetRequested, models.AuditMeta{}, origin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = OtpResult{Message: "Password reset OTP sent"}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("account not found")
			return OtpResult{}, ErrUserNotFound
		}

		log.Error("failed to request password reset", sl.Err(err))

		return OtpResult{}, err
	}

	a.dispatchCode(ctx, email, code, models.PurposePasswordReset)

	if a.cfg.EchoOtp {
		res.Code = code
	}

	return res, nil
}

// ResetPassword consumes a password_reset code, rewrites the password hash,
// and revokes every active session for the account: a forced global logout.
func (a *Auth) ResetPassword(ctx context.Context, email, code, newPassword string, origin Origin) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	newHash, err := a.hasher.Hash(newPassword)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	var opErr error

	err = a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		acc, err := s.AccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return ErrUserNotFound
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.checkOtp(ctx, s, acc.ID, models.PurposePasswordReset, code); err != nil {
			if isOtpFailure(err) {
				opErr = err
				return nil
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.UpdatePassword(ctx, acc.ID, newHash); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		sessions, err := s.ActiveSessions(ctx, acc.ID, a.now())
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		for _, sess := range sessions {
			if err := s.RevokeSession(ctx, sess.ID, a.now()); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		return a.audit(ctx, s, acc.ID, EventPasswordResetCompleted, models.AuditMeta{}, origin)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("account not found")
			return ErrUserNotFound
		}

		log.Error("failed to reset password", sl.Err(err))

		return err
	}

	if opErr != nil {
		log.Warn("password reset rejected", sl.Err(opErr))
		return opErr
	}

	log.Info("password reset completed")

	return nil
}
