// Package auth is the transactional authentication engine. Every operation
// runs as one atomic unit of work against the credential store; one-time
// code dispatch happens after the transaction commits and is best-effort.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credential_service/internal/delivery"
	"credential_service/internal/lib/hasher"
	"credential_service/internal/lib/jwt"
	sl "credential_service/internal/lib/logger"
	"credential_service/internal/lib/otp"
	"credential_service/internal/models"
	"credential_service/internal/ratelimit"
	"credential_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserNotVerified     = errors.New("user is not verified")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrOtpInvalid          = errors.New("incorrect otp")
	ErrOtpExpired          = errors.New("otp expired")
	ErrOtpAttemptsExceeded = errors.New("otp attempt limit reached")
	ErrRateLimited         = errors.New("request limit reached")
	ErrSessionInvalid      = errors.New("invalid session")
)

// Audit event types written by the engine.
const (
	EventRegister               = "auth.register"
	EventSendOtp                = "auth.send_otp"
	EventOtpVerified            = "auth.otp_verified"
	EventLoginFailed            = "auth.login_failed"
	EventLoginSuccess           = "auth.login_success"
	EventRefresh                = "auth.refresh"
	EventLogout                 = "auth.logout"
	EventPasswordResetRequested = "auth.password_reset_requested"
	EventPasswordResetVerified  = "auth.password_reset_verified"
	EventPasswordResetCompleted = "auth.password_reset_completed"
)

// Origin is the request context recorded with audit events.
type Origin struct {
	IP        string
	UserAgent string
}

// Config is the read-only engine configuration fixed at startup.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OtpTTL          time.Duration
	OtpMaxAttempts  int
	OtpSendWindow   time.Duration
	OtpSendMax      int
	// EchoOtp returns the raw code to the caller. Never enabled in
	// production.
	EchoOtp bool
}

type Auth struct {
	log     *slog.Logger
	store   storage.TxRunner
	limiter ratelimit.Limiter
	tokens  *jwt.Manager
	hasher  *hasher.Hasher
	sender  delivery.Sender
	cfg     Config

	// Injected for deterministic tests.
	now     func() time.Time
	newCode func() string
}

func New(
	log *slog.Logger,
	store storage.TxRunner,
	limiter ratelimit.Limiter,
	tokens *jwt.Manager,
	hash *hasher.Hasher,
	sender delivery.Sender,
	cfg Config,
) *Auth {
	return &Auth{
		log:     log,
		store:   store,
		limiter: limiter,
		tokens:  tokens,
		hasher:  hash,
		sender:  sender,
		cfg:     cfg,
		now:     time.Now,
		newCode: otp.NewCode,
	}
}

type RegisterResult struct {
	AccountID string
	Message   string
	Code      string
}

// Register creates an unverified account, issues a registration code, and
// dispatches it after commit. The email uniqueness race is settled by the
// store's constraint, not by a prior existence check.
func (a *Auth) Register(ctx context.Context, email, password, name string, origin Origin) (RegisterResult, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return RegisterResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		res  RegisterResult
		code string
	)

	err = a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		id, err := s.SaveAccount(ctx, email, name, passHash)
		if err != nil {
			if errors.Is(err, storage.ErrUserExists) {
				return ErrUserExists
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		code, err = a.issueOtp(ctx, s, id, models.PurposeRegister)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.audit(ctx, s, id, EventRegister, models.AuditMeta{Email: email}, origin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		res = RegisterResult{
			AccountID: id,
			Message:   "Registration successful. OTP sent.",
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			log.Warn("account already exists")
			return RegisterResult{}, ErrUserExists
		}

		log.Error("failed to register account", sl.Err(err))

		return RegisterResult{}, err
	}

	a.dispatchCode(ctx, email, code, models.PurposeRegister)

	if a.cfg.EchoOtp {
		res.Code = code
	}

	log.Info("account registered", slog.String("account_id", res.AccountID))

	return res, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Login verifies credentials and mints an access/refresh pair. Unknown
// account and wrong password are indistinguishable to the caller; the audit
// trail records the difference. The verified check runs only after the
// password matched, so it cannot be used to probe accounts.
func (a *Auth) Login(ctx context.Context, email, password string, origin Origin) (TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	var (
		pair  TokenPair
		opErr error
	)

	err := a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		acc, err := s.AccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				meta := models.AuditMeta{Email: email, Reason: "not_found"}
				if err := a.audit(ctx, s, "", EventLoginFailed, meta, origin); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}

				// Commit so the failed attempt stays recorded.
				opErr = ErrInvalidCredentials

				return nil
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if !a.hasher.Verify(password, acc.PassHash) {
			meta := models.AuditMeta{Reason: "invalid_password"}
			if err := a.audit(ctx, s, acc.ID, EventLoginFailed, meta, origin); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			opErr = ErrInvalidCredentials

			return nil
		}

		if !acc.IsVerified {
			return ErrUserNotVerified
		}

		access, refresh, session, err := a.mintSession(acc.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.SaveSession(ctx, session); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.audit(ctx, s, acc.ID, EventLoginSuccess, models.AuditMeta{}, origin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		pair = TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int(a.cfg.AccessTokenTTL.Seconds()),
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotVerified) {
			log.Warn("account is not verified")
			return TokenPair{}, ErrUserNotVerified
		}

		log.Error("failed to login", sl.Err(err))

		return TokenPair{}, err
	}

	if opErr != nil {
		log.Info("invalid credentials")
		return TokenPair{}, opErr
	}

	log.Info("login successful")

	return pair, nil
}

// audit appends an event inside the current transaction, atomically with the
// state change it describes.
func (a *Auth) audit(ctx context.Context, s storage.Store, accountID, event string, meta models.AuditMeta, origin Origin) error {
	return s.AppendAudit(ctx, models.AuditEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		EventType: event,
		Meta:      meta,
		IP:        origin.IP,
		UserAgent: origin.UserAgent,
	})
}
