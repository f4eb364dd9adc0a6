package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENV", "LOG_FORMAT", "DATABASE_DRIVER", "DATABASE_DSN",
	"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "JWT_EXPIRY_MINUTES",
	"RESET_TOKEN_TTL", "RESET_URL_BASE",
	"SENDGRID_API_KEY", "SENDGRID_FROM_EMAIL", "SENDGRID_FROM_NAME",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseDSN, "postgres://")
	assert.Equal(t, "fitmeta", cfg.JWTIssuer)
	assert.Equal(t, "fitmeta-api", cfg.JWTAudience)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, "http://localhost:3000/reset-password", cfg.ResetURLBase)
	assert.Equal(t, "noreply@fitmeta.app", cfg.SendGridFromEmail)
	assert.Equal(t, "Equipe Fitmeta", cfg.SendGridFromName)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("SENDGRID_API_KEY", "SG.test")
	t.Setenv("JWT_EXPIRY_MINUTES", "15")
	t.Setenv("RESET_TOKEN_TTL", "30m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RATE_LIMIT_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "mysql", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseDSN, "tcp(127.0.0.1:3306)")
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"dev secret in production", map[string]string{"ENV": "production", "SENDGRID_API_KEY": "SG.test"}, "JWT_SECRET"},
		{"no email provider in production", map[string]string{"ENV": "production", "JWT_SECRET": "a-real-secret"}, "SENDGRID_API_KEY"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "sqlite"}, "DATABASE_DRIVER"},
		{"zero expiry", map[string]string{"JWT_EXPIRY_MINUTES": "0"}, "JWT_EXPIRY_MINUTES"},
		{"non-numeric expiry", map[string]string{"JWT_EXPIRY_MINUTES": "soon"}, "JWT_EXPIRY_MINUTES"},
		{"bad ttl", map[string]string{"RESET_TOKEN_TTL": "1 hour"}, "RESET_TOKEN_TTL"},
		{"negative ttl", map[string]string{"RESET_TOKEN_TTL": "-5m"}, "RESET_TOKEN_TTL"},
		{"relative reset url", map[string]string{"RESET_URL_BASE": "/reset"}, "RESET_URL_BASE"},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}, "RATE_LIMIT_BURST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

// captureDefaultLogger routes slog.Default into a buffer for the test.
func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoad_WarnsOnDevSecret(t *testing.T) {
	clearEnv(t)
	logs := captureDefaultLogger(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UsesDevJWTSecret())
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "JWT_SECRET not set")
}

func TestLoad_NoWarningWithRealSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "a-real-secret")
	logs := captureDefaultLogger(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.UsesDevJWTSecret())
	assert.NotContains(t, logs.String(), "JWT_SECRET")
}
