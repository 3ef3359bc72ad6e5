package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fraud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9000"
database:
  dsn: postgres://file
  pool:
    max_open_conns: 7
redis:
  addr: localhost:6379
  lockTTL: 2m
jwt:
  secret: from-file
`), 0o600))
	t.Setenv("FRAUD_JWT_SECRET", "from-env")
	t.Setenv("FRAUD_GEOCODER_INTERVAL", "1500ms")
	t.Setenv("FRAUD_HTTP_WRITE_TIMEOUT", "90s")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddress())
	assert.Equal(t, "postgres://file", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 1500*time.Millisecond, cfg.Geocoder.Interval)
	assert.Equal(t, "chargeguard", cfg.Redis.KeyPrefix)
	assert.Equal(t, 90*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Geocoder.RetryAfter)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := defaults()
	cfg.Detection.Parallelism = -1
	cfg.HTTP.ShutdownTimeout = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database dsn required")
	assert.Contains(t, err.Error(), "jwt secret required")
	assert.Contains(t, err.Error(), "parallelism")
	assert.Contains(t, err.Error(), "http timeouts")
}
