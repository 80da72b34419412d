package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AUTH_COOKIE_EXPIRY_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "tickets.db", cfg.Database.SQLitePath)
	assert.Equal(t, "ticket_app", cfg.Auth.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/tickets")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("AUTH_COOKIE_EXPIRY_DAYS", "3")
	t.Setenv("AUTH_LOGIN_RATE_WINDOW_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 72*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, 60*time.Second, cfg.Auth.LoginRateWindow())
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}
