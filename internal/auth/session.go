package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"credential_service/internal/lib/hasher"
	"credential_service/internal/lib/jwt"
	sl "credential_service/internal/lib/logger"
	"credential_service/internal/models"
	"credential_service/internal/storage"

	"github.com/google/uuid"
)

// Refresh rotates a refresh token: the presented token's session is revoked
// and a new pair is minted. Each refresh token is single-use; presenting an
// already-rotated token finds no active session and fails.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	sub, err := a.tokens.Parse(refreshToken, jwt.TypeRefresh)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return TokenPair{}, ErrSessionInvalid
	}

	digest := hasher.Digest(refreshToken)

	var pair TokenPair

	err = a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		matched, err := a.matchSession(ctx, s, sub, digest)
		if err != nil {
			return err
		}

		if err := s.RevokeSession(ctx, matched.ID, a.now()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		access, refresh, session, err := a.mintSession(sub)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.SaveSession(ctx, session); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := a.audit(ctx, s, sub, EventRefresh, models.AuditMeta{}, Origin{}); err != nil {
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
		if errors.Is(err, ErrSessionInvalid) {
			log.Warn("no matching session")
			return TokenPair{}, ErrSessionInvalid
		}

		log.Error("failed to refresh tokens", sl.Err(err))

		return TokenPair{}, err
	}

	log.Info("refresh successful")

	return pair, nil
}

// Logout revokes the session backing the presented refresh token.
func (a *Auth) Logout(ctx context.Context, refreshToken string, origin Origin) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	sub, err := a.tokens.Parse(refreshToken, jwt.TypeRefresh)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return ErrSessionInvalid
	}

	digest := hasher.Digest(refreshToken)

	err = a.store.WithinTx(ctx, func(ctx context.Context, s storage.Store) error {
		matched, err := a.matchSession(ctx, s, sub, digest)
		if err != nil {
			return err
		}

		if err := s.RevokeSession(ctx, matched.ID, a.now()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return a.audit(ctx, s, sub, EventLogout, models.AuditMeta{}, origin)
	})
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			log.Warn("no matching session")
			return ErrSessionInvalid
		}

		log.Error("failed to logout", sl.Err(err))

		return err
	}

	log.Info("logout successful")

	return nil
}

// matchSession scans the account's active sessions for the one whose stored
// digest matches. The comparison is constant-time.
func (a *Auth) matchSession(ctx context.Context, s storage.Store, accountID, digest string) (models.Session, error) {
	sessions, err := s.ActiveSessions(ctx, accountID, a.now())
	if err != nil {
		return models.Session{}, err
	}

	for _, sess := range sessions {
		if hasher.SecureCompare(digest, sess.RefreshTokenHash) {
			return sess, nil
		}
	}

	return models.Session{}, ErrSessionInvalid
}

// mintSession builds a new access/refresh pair and the session row backing
// the refresh token. Only the token's digest is persisted.
func (a *Auth) mintSession(accountID string) (access, refresh string, session models.Session, err error) {
	access, err = a.tokens.NewToken(accountID, jwt.TypeAccess, a.cfg.AccessTokenTTL)
	if err != nil {
		return "", "", models.Session{}, err
	}

	refresh, err = a.tokens.NewToken(accountID, jwt.TypeRefresh, a.cfg.RefreshTokenTTL)
	if err != nil {
		return "", "", models.Session{}, err
	}

	session = models.Session{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		RefreshTokenHash: hasher.Digest(refresh),
		ExpiresAt:        a.now().Add(a.cfg.RefreshTokenTTL),
	}

	return access, refresh, session, nil
}
