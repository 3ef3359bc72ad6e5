package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

type sample struct {
	Name    string   `yaml:"name" env:"APP_NAME"`
	Port    int      `yaml:"port"`
	Ratio   float64  `yaml:"ratio"`
	Debug   bool     `yaml:"debug"`
	Origins []string `yaml:"origins"`
	Redis   nested   `yaml:"redis"`
	Skipped string   `env:"-"`
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\nport: 8080\nredis:\n  addr: file:6379\n  timeout: 2s\n"), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("RATIO", "0.5")
	t.Setenv("DEBUG", "true")
	t.Setenv("ORIGINS", "a.example, b.example,")
	t.Setenv("REDIS_TIMEOUT", "750ms")
	t.Setenv("SKIPPED", "ignored")

	var cfg sample
	require.NoError(t, LoadConfigFrom(path, &cfg))

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.5, cfg.Ratio)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Origins)
	assert.Equal(t, "file:6379", cfg.Redis.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.Timeout)
	assert.Empty(t, cfg.Skipped)
}

func TestLoadConfigExplicitEnvTag(t *testing.T) {
	t.Setenv("APP_NAME", "from-env")

	var cfg sample
	require.NoError(t, LoadConfigFrom("", &cfg))
	assert.Equal(t, "from-env", cfg.Name)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	var cfg sample
	assert.Error(t, LoadConfigFrom("", cfg))
	assert.Error(t, LoadConfigFrom("", nil))

	t.Setenv("PORT", "not-a-number")
	assert.Error(t, LoadConfigFrom("", &cfg))
}

func TestLoaderWithLookupReportsEveryBadValue(t *testing.T) {
	env := map[string]string{
		"APP_NAME":      "lookup",
		"PORT":          "x",
		"REDIS_TIMEOUT": "soon",
	}
	loader := NewLoader(WithLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))

	var cfg sample
	err := loader.Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "REDIS_TIMEOUT")
	assert.Equal(t, "lookup", cfg.Name)
}
