package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargeguard/backend/libs/config"
	libdb "chargeguard/backend/libs/db"
	libredis "chargeguard/backend/libs/redis"
)

// Config defines fraud service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Detection DetectionConfig `yaml:"detection"`
	WS        WSConfig        `yaml:"ws"`
}

type HTTPConfig struct {
	Port              string        `yaml:"port" env:"FRAUD_HTTP_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" env:"FRAUD_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `yaml:"readTimeout" env:"FRAUD_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"writeTimeout" env:"FRAUD_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idleTimeout" env:"FRAUD_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout" env:"FRAUD_HTTP_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	DSN            string            `yaml:"dsn" env:"FRAUD_POSTGRES_DSN"`
	MigrateOnStart bool              `yaml:"migrateOnStart" env:"FRAUD_MIGRATE_ON_START"`
	Pool           libdb.PoolOptions `yaml:"pool"`
}

// RedisConfig is optional. Without an address runs are not locked across
// replicas and the last report lives in process memory only.
type RedisConfig struct {
	libredis.Options `yaml:",inline"`
	KeyPrefix        string        `yaml:"keyPrefix" env:"FRAUD_REDIS_KEY_PREFIX"`
	ReportTTL        time.Duration `yaml:"reportTTL" env:"FRAUD_REPORT_TTL"`
	LockTTL          time.Duration `yaml:"lockTTL" env:"FRAUD_RUN_LOCK_TTL"`
}

type JWTConfig struct {
	Secret string `yaml:"secret" env:"FRAUD_JWT_SECRET"`
}

// GeocoderConfig configures address lookups. RetryAfter is how long a charge
// point that did not resolve is left alone.
type GeocoderConfig struct {
	URL        string        `yaml:"url" env:"FRAUD_GEOCODER_URL"`
	UserAgent  string        `yaml:"userAgent" env:"FRAUD_GEOCODER_USER_AGENT"`
	Interval   time.Duration `yaml:"interval" env:"FRAUD_GEOCODER_INTERVAL"`
	Timeout    time.Duration `yaml:"timeout" env:"FRAUD_GEOCODER_TIMEOUT"`
	RetryAfter time.Duration `yaml:"retryAfter" env:"FRAUD_GEOCODER_RETRY_AFTER"`
}

type DetectionConfig struct {
	// Parallelism bounds concurrently evaluated passes; 0 means one goroutine per pass.
	Parallelism int `yaml:"parallelism" env:"FRAUD_DETECTION_PARALLELISM"`
}

type WSConfig struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"FRAUD_WS_PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"FRAUD_WS_WRITE_TIMEOUT"`
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:              "8086",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		Redis: RedisConfig{
			KeyPrefix: "chargeguard",
			ReportTTL: 7 * 24 * time.Hour,
			LockTTL:   10 * time.Minute,
		},
		Geocoder: GeocoderConfig{
			URL:        "https://nominatim.openstreetmap.org",
			UserAgent:  "chargeguard-fraud-service",
			Interval:   time.Second,
			Timeout:    10 * time.Second,
			RetryAfter: 24 * time.Hour,
		},
		WS: WSConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()
	if err := libconfig.LoadConfigFrom(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("config: database dsn required"))
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("config: jwt secret required"))
	}
	if c.Detection.Parallelism < 0 {
		errs = append(errs, errors.New("config: detection parallelism must not be negative"))
	}
	if c.Redis.Enabled() && c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("config: run lock ttl must be positive"))
	}
	if c.HTTP.WriteTimeout < 0 || c.HTTP.ReadTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("config: http timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8086"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
