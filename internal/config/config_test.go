package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `
env: "test"

http_server:
  address: "localhost:8081"

postgres:
  host: "localhost"
  port: 5432
  user: "app"
  password: "app"
  dbname: "app"

tokens:
  access_token_ttl: 5m
  refresh_token_ttl: 24h

otp:
  ttl: 2m
  max_attempts: 3
`

func TestMustLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg := MustLoad(path)

	require.Equal(t, EnvTest, cfg.Env)
	require.Equal(t, "localhost:8081", cfg.HTTPServer.Address)
	require.Equal(t, 5*time.Minute, cfg.Tokens.AccessTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.Tokens.RefreshTokenTTL)
	require.Equal(t, "test-secret", cfg.Tokens.Secret)
	require.Equal(t, 2*time.Minute, cfg.Otp.TTL)
	require.Equal(t, 3, cfg.Otp.MaxAttempts)

	// Defaults fill in what the file leaves out.
	require.Equal(t, "local", cfg.RateLimit.Backend)
	require.Equal(t, "console", cfg.Delivery.Backend)
	require.Equal(t, 10, cfg.BcryptCost)
}

func TestMustLoad_MissingFile(t *testing.T) {
	require.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
