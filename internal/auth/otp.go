package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sl "credential_service/internal/lib/logger"
	"credential_service/internal/models"
	"credential_service/internal/storage"

	"github.com/google/uuid"
)

type OtpResult struct {
	Message string
	Code    string
}

// SendOtp issues a fresh code for an existing account, subject to the
// per-(purpose, email) send window.
func (a *Auth) SendOtp(ctx context.Context, email, purpose string, origin Origin) (OtpResult, error) {
	const op = "auth.SendOtp"

	log := a.log.With(slog.String("op", op))

	key := fmt.Sprintf("otp:%s:%s", purpose, email)

	allowed, err := a.limiter.Consume(ctx, key, a.cfg.OtpSendMax, a.cfg.OtpSendWindow)
	if err != nil {
		log.Error("rate limiter failed", sl.Err(err))
		return OtpResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !allowed {
		log.Warn("otp send limit reached", slog.String("key", key))
		return OtpResult{}, ErrRateLimited
	}

	var (
		res  OtpResult
		code string
	)

	err = a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		acc, err := s.AccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return ErrUserNotFound
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		code, err = a.issueOtp(ctx, s, acc.ID, purpose)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		meta := models.AuditMeta{Purpose: purpose}
		if err := a.audit(ctx, s, acc.ID, EventSendOtp, meta, origin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = OtpResult{Message: "OTP sent"}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("account not found")
			return OtpResult{}, ErrUserNotFound
		}

		log.Error("failed to send otp", sl.Err(err))

		return OtpResult{}, err
	}

	a.dispatchCode(ctx, email, code, purpose)

	if a.cfg.EchoOtp {
		res.Code = code
	}

	return res, nil
}

type VerifyResult struct {
	Message    string
	IsVerified bool
}

// VerifyOtp runs the code through the consumption state machine. On success
// for purpose register the account is marked verified. Failed attempts
// commit their bookkeeping (attempt counter, consumed marker) even though
// the operation fails.
func (a *Auth) VerifyOtp(ctx context.Context, email, code, purpose string, origin Origin) (VerifyResult, error) {
	const op = "auth.VerifyOtp"

	log := a.log.With(slog.String("op", op))

	var (
		res   VerifyResult
		opErr error
	)

	err := a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		acc, err := s.AccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return ErrUserNotFound
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.checkOtp(ctx, s, acc.ID, purpose, code); err != nil {
			if isOtpFailure(err) {
				opErr = err
				return nil
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if purpose == models.PurposeRegister && !acc.IsVerified {
			if err := s.MarkAccountVerified(ctx, acc.ID); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		event := EventOtpVerified
		meta := models.AuditMeta{Purpose: purpose}
		if purpose == models.PurposePasswordReset {
			event = EventPasswordResetVerified
			meta = models.AuditMeta{}
		}

		if err := a.audit(ctx, s, acc.ID, event, meta, origin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = VerifyResult{
			Message:    "OTP verified",
			IsVerified: purpose == models.PurposeRegister,
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("account not found")
			return VerifyResult{}, ErrUserNotFound
		}

		log.Error("failed to verify otp", sl.Err(err))

		return VerifyResult{}, err
	}

	if opErr != nil {
		log.Warn("otp verification failed", sl.Err(opErr))
		return VerifyResult{}, opErr
	}

	return res, nil
}

// issueOtp deletes any outstanding code for (account, purpose) and creates a
// fresh one, keeping at most one unconsumed record per pair.
func (a *Auth) issueOtp(ctx context.Context, s storage.Store, accountID, purpose string) (string, error) {
	if err := s.DeleteOtps(ctx, accountID, purpose); err != nil {
		return "", err
	}

	code := a.newCode()

	codeHash, err := a.hasher.Hash(code)
	if err != nil {
		return "", err
	}

	record := models.Otp{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		CodeHash:    codeHash,
		Purpose:     purpose,
		ExpiresAt:   a.now().Add(a.cfg.OtpTTL),
		MaxAttempts: a.cfg.OtpMaxAttempts,
	}

	if err := s.SaveOtp(ctx, record); err != nil {
		return "", err
	}

	return code, nil
}

// checkOtp is the consumption state machine shared by VerifyOtp and
// ResetPassword. The expiry check precedes the hash comparison. Consumption
// is terminal: success, detected expiry, and an exhausted attempt counter
// all consume the record.
func (a *Auth) checkOtp(ctx context.Context, s storage.Store, accountID, purpose, code string) error {
	record, err := s.ActiveOtp(ctx, accountID, purpose)
	if err != nil {
		if errors.Is(err, storage.ErrOtpNotFound) {
			return ErrOtpInvalid
		}

		return err
	}

	if record.ExpiresAt.Before(a.now()) {
		if err := s.ConsumeOtp(ctx, record.ID, a.now()); err != nil {
			return err
		}

		return ErrOtpExpired
	}

	if !a.hasher.Verify(code, record.CodeHash) {
		attempts, err := s.IncrementOtpAttempts(ctx, record.ID)
		if err != nil {
			return err
		}

		if attempts >= record.MaxAttempts {
			if err := s.ConsumeOtp(ctx, record.ID, a.now()); err != nil {
				return err
			}

			return ErrOtpAttemptsExceeded
		}

		return ErrOtpInvalid
	}

	return s.ConsumeOtp(ctx, record.ID, a.now())
}

func isOtpFailure(err error) bool {
	return errors.Is(err, ErrOtpInvalid) ||
		errors.Is(err, ErrOtpExpired) ||
		errors.Is(err, ErrOtpAttemptsExceeded)
}

// dispatchCode runs after the transaction committed. Delivery is
// best-effort: a failure is logged, never rolled back into the operation.
func (a *Auth) dispatchCode(ctx context.Context, email, code, purpose string) {
	subject := fmt.Sprintf("Your %s code", strings.ReplaceAll(purpose, "_", " "))
	body := fmt.Sprintf("Your verification code is: %s", code)

	if err := a.sender.Send(ctx, email, subject, body); err != nil {
		a.log.Warn("failed to dispatch otp",
			slog.String("purpose", purpose), sl.Err(err))
	}
}
