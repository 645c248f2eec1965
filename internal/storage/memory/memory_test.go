package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"credential_service/internal/models"
	"credential_service/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	errBoom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		_, err := st.SaveAccount(ctx, "user@example.com", "Test User", "hash")
		require.NoError(t, err)

		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	err = s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		_, err := st.AccountByEmail(ctx, "user@example.com")
		require.ErrorIs(t, err, storage.ErrUserNotFound)

		return nil
	})
	require.NoError(t, err)
}

func TestSaveAccount_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		_, err := st.SaveAccount(ctx, "user@example.com", "First", "hash")
		require.NoError(t, err)

		_, err = st.SaveAccount(ctx, "user@example.com", "Second", "hash")
		require.ErrorIs(t, err, storage.ErrUserExists)

		return nil
	})
	require.NoError(t, err)
}

func TestActiveOtp_ReturnsLatestUnconsumed(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		old := models.Otp{
			ID:        "otp-old",
			AccountID: "acc-1",
			Purpose:   models.PurposeRegister,
			ExpiresAt: now.Add(10 * time.Minute),
			CreatedAt: now.Add(-time.Minute),
		}
		require.NoError(t, st.SaveOtp(ctx, old))

		fresh := models.Otp{
			ID:        "otp-new",
			AccountID: "acc-1",
			Purpose:   models.PurposeRegister,
			ExpiresAt: now.Add(10 * time.Minute),
			CreatedAt: now,
		}
		require.NoError(t, st.SaveOtp(ctx, fresh))

		got, err := st.ActiveOtp(ctx, "acc-1", models.PurposeRegister)
		require.NoError(t, err)
		require.Equal(t, "otp-new", got.ID)

		require.NoError(t, st.ConsumeOtp(ctx, "otp-new", now))

		got, err = st.ActiveOtp(ctx, "acc-1", models.PurposeRegister)
		require.NoError(t, err)
		require.Equal(t, "otp-old", got.ID)

		return nil
	})
	require.NoError(t, err)
}

func TestConsumeOtp_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := time.Now()
	second := first.Add(time.Minute)

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		require.NoError(t, st.SaveOtp(ctx, models.Otp{
			ID:        "otp-1",
			AccountID: "acc-1",
			Purpose:   models.PurposeRegister,
		}))

		require.NoError(t, st.ConsumeOtp(ctx, "otp-1", first))

		// The second consume must not move the timestamp.
		require.NoError(t, st.ConsumeOtp(ctx, "otp-1", second))

		_, err := st.ActiveOtp(ctx, "acc-1", models.PurposeRegister)
		require.ErrorIs(t, err, storage.ErrOtpNotFound)

		return nil
	})
	require.NoError(t, err)
}

func TestActiveSessions_FiltersRevokedAndExpired(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		require.NoError(t, st.SaveSession(ctx, models.Session{
			ID:        "live",
			AccountID: "acc-1",
			ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, st.SaveSession(ctx, models.Session{
			ID:        "expired",
			AccountID: "acc-1",
			ExpiresAt: now.Add(-time.Hour),
		}))
		require.NoError(t, st.SaveSession(ctx, models.Session{
			ID:        "revoked",
			AccountID: "acc-1",
			ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, st.RevokeSession(ctx, "revoked", now))

		active, err := st.ActiveSessions(ctx, "acc-1", now)
		require.NoError(t, err)
		require.Len(t, active, 1)
		require.Equal(t, "live", active[0].ID)

		return nil
	})
	require.NoError(t, err)
}

func TestRevokeSession_MissingIsNoop(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, st storage.Store) error {
		return st.RevokeSession(ctx, "missing", time.Now())
	})
	require.NoError(t, err)
}
