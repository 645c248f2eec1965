package register_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credential_service/internal/auth"
	"credential_service/internal/http_server/handlers/register"
	"credential_service/internal/lib/hasher"
	"credential_service/internal/lib/jwt"
	"credential_service/internal/ratelimit"
	"credential_service/internal/storage/memory"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type discardSender struct{}

func (discardSender) Send(ctx context.Context, to, subject, body string) error { return nil }

func newHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	engine := auth.New(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		memory.New(),
		ratelimit.NewLocal(),
		jwt.NewManager("test-secret"),
		hasher.New(bcrypt.MinCost),
		discardSender{},
		auth.Config{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			OtpTTL:          10 * time.Minute,
			OtpMaxAttempts:  5,
			OtpSendWindow:   time.Minute,
			OtpSendMax:      3,
			EchoOtp:         true,
		},
	)

	return register.New(slog.New(slog.NewTextHandler(io.Discard, nil)), validator.New(), engine)
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	return rec
}

func TestRegisterHandler(t *testing.T) {
	handler := newHandler(t)

	rec := doRequest(t, handler, `{"email":"user@example.com","name":"Test User","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string `json:"status"`
		AccountID string `json:"account_id"`
		Otp       string `json:"otp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "OK", body.Status)
	require.NotEmpty(t, body.AccountID)
	require.Len(t, body.Otp, 6)
}

func TestRegisterHandler_DuplicateEmail(t *testing.T) {
	handler := newHandler(t)

	rec := doRequest(t, handler, `{"email":"user@example.com","name":"Test User","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, `{"email":"user@example.com","name":"Test User","password":"password123"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "USER_EXISTS", body.Code)
}

func TestRegisterHandler_InvalidBody(t *testing.T) {
	handler := newHandler(t)

	rec := doRequest(t, handler, `{"email":"not-an-email","name":"Test User","password":"short"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Error", body.Status)
	require.Equal(t, "UNPROCESSABLE", body.Code)
}

func TestRegisterHandler_MalformedJSON(t *testing.T) {
	handler := newHandler(t)

	rec := doRequest(t, handler, `{"email":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
