package auth

import (
	"context"
	"testing"

	"credential_service/internal/models"

	"github.com/stretchr/testify/require"
)

func TestResetPassword(t *testing.T) {
	a, store, _, _ := newTestAuth(t)
	ctx := context.Background()

	registerVerified(t, a, "user@example.com", "old-password-1")

	pair, err := a.Login(ctx, "user@example.com", "old-password-1", testOrigin)
	require.NoError(t, err)

	res, err := a.RequestPasswordReset(ctx, "user@example.com", testOrigin)
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)

	err = a.ResetPassword(ctx, "user@example.com", res.Code, "new-password-1", testOrigin)
	require.NoError(t, err)

	// Old password is out, new one is in.
	_, err = a.Login(ctx, "user@example.com", "old-password-1", testOrigin)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(ctx, "user@example.com", "new-password-1", testOrigin)
	require.NoError(t, err)

	// Every pre-reset session is gone.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)

	require.Len(t, auditEvents(store, EventPasswordResetRequested), 1)
	require.Len(t, auditEvents(store, EventPasswordResetCompleted), 1)
}

func TestResetPassword_WrongCode(t *testing.T) {
	a, _, _, _ := newTestAuth(t)
	ctx := context.Background()

	registerVerified(t, a, "user@example.com", "old-password-1")

	_, err := a.RequestPasswordReset(ctx, "user@example.com", testOrigin)
	require.NoError(t, err)

	err = a.ResetPassword(ctx, "user@example.com", "000000", "new-password-1", testOrigin)
	require.ErrorIs(t, err, ErrOtpInvalid)

	// Password is untouched.
	_, err = a.Login(ctx, "user@example.com", "old-password-1", testOrigin)
	require.NoError(t, err)
}

func TestResetPassword_CodeIsSingleUse(t *testing.T) {
	a, _, _, _ := newTestAuth(t)
	ctx := context.Background()

	registerVerified(t, a, "user@example.com", "old-password-1")

	res, err := a.RequestPasswordReset(ctx, "user@example.com", testOrigin)
	require.NoError(t, err)

	require.NoError(t, a.ResetPassword(ctx, "user@example.com", res.Code, "new-password-1", testOrigin))

	err = a.ResetPassword(ctx, "user@example.com", res.Code, "newer-password-1", testOrigin)
	require.ErrorIs(t, err, ErrOtpInvalid)

	_, err = a.Login(ctx, "user@example.com", "new-password-1", testOrigin)
	require.NoError(t, err)
}

func TestResetPassword_RegisterCodeRejected(t *testing.T) {
	a, _, _, _ := newTestAuth(t)
	ctx := context.Background()

	res, err := a.Register(ctx, "user@example.com", "old-password-1", "Test User", testOrigin)
	require.NoError(t, err)

	// A registration code cannot reset the password.
	err = a.ResetPassword(ctx, "user@example.com", res.Code, "new-password-1", testOrigin)
	require.ErrorIs(t, err, ErrOtpInvalid)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	a, _, _, _ := newTestAuth(t)

	err := a.ResetPassword(context.Background(), "nobody@example.com", "123456", "new-password-1", testOrigin)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	a, _, sender, _ := newTestAuth(t)

	_, err := a.RequestPasswordReset(context.Background(), "nobody@example.com", testOrigin)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, 0, sender.count())
}

func TestVerifyOtp_PasswordResetPurpose(t *testing.T) {
	a, store, _, _ := newTestAuth(t)
	ctx := context.Background()

	registerVerified(t, a, "user@example.com", "password123")

	res, err := a.RequestPasswordReset(ctx, "user@example.com", testOrigin)
	require.NoError(t, err)

	vres, err := a.VerifyOtp(ctx, "user@example.com", res.Code, models.PurposePasswordReset, testOrigin)
	require.NoError(t, err)
	require.False(t, vres.IsVerified)

	require.Len(t, auditEvents(store, EventPasswordResetVerified), 1)
}
