// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Apify     ApifyConfig     `mapstructure:"apify"`
	BuiltWith BuiltWithConfig `mapstructure:"builtwith"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int      `mapstructure:"port"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	CORSOrigins           []string `mapstructure:"cors_origins"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ApifyConfig configures the traffic-analytics job service.
type ApifyConfig struct {
	Token               string `mapstructure:"token"`
	BaseURL             string `mapstructure:"base_url"`
	ActorID             string `mapstructure:"actor_id"`
	MaxPages            int    `mapstructure:"max_pages"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxPolls            int    `mapstructure:"max_polls"`
}

// BuiltWithConfig configures technology lookups.
type BuiltWithConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RateLimitConfig paces outbound calls per host.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DBConfig controls access to the results database. An empty DSN disables persistence.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	Column          string `mapstructure:"column"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// Storage backends.
const (
	StorageBackendNone   = "none"
	StorageBackendMemory = "memory"
	StorageBackendLocal  = "local"
	StorageBackendGCS    = "gcs"
)

// StorageConfig selects where raw job payloads are archived.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion notifications. An empty
// project or topic selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level overrides the default level (debug in development, info otherwise).
	Level string `mapstructure:"level"`
}

// TelemetryConfig controls tracing. An empty project keeps spans in-process.
type TelemetryConfig struct {
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from .env, disk and the environment. Variables already
// set in the environment win over .env entries.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SITEINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv accepts the unprefixed credential variables used by existing deployments.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"apify.token":       {"SITEINTEL_APIFY_TOKEN", "APIFY_API_TOKEN"},
		"builtwith.api_key": {"SITEINTEL_BUILTWITH_API_KEY", "BUILTWITH_API_KEY"},
		"db.dsn":            {"SITEINTEL_DB_DSN", "SUPABASE_DB_URL", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 600)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("auth.enabled", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("apify.actor_id", "heLi1j7hzjC2gFlIx")
	v.SetDefault("apify.max_pages", 1)
	v.SetDefault("apify.poll_interval_seconds", 5)
	v.SetDefault("apify.max_polls", 60)
	v.SetDefault("builtwith.base_url", "https://api.builtwith.com")
	v.SetDefault("builtwith.timeout_seconds", 30)
	v.SetDefault("ratelimit.rps", 2)
	v.SetDefault("ratelimit.burst", 2)
	v.SetDefault("db.table", "users")
	v.SetDefault("db.column", "similarweb_result")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("storage.backend", StorageBackendMemory)
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "raw")
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits. Missing
// credentials are not errors; the service falls back to mock data.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Apify.PollIntervalSeconds <= 0 {
		return fmt.Errorf("apify.poll_interval_seconds must be > 0")
	}
	if c.Apify.MaxPolls <= 0 {
		return fmt.Errorf("apify.max_polls must be > 0")
	}
	if c.Apify.MaxPages <= 0 {
		return fmt.Errorf("apify.max_pages must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case StorageBackendNone, StorageBackendMemory:
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case StorageBackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	return nil
}

// RequestTimeout bounds a single inbound request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// OutboundTimeout bounds a single outbound HTTP call.
func (c Config) OutboundTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// WriteTimeout bounds each storage or publisher call made while serving a
// request. A fifth of the request timeout, capped at 30s, is reserved for three
// such calls.
func (c Config) WriteTimeout() time.Duration {
	reserve := c.RequestTimeout() / 5
	if reserve > 30*time.Second {
		reserve = 30 * time.Second
	}
	return reserve / 3
}

// WorkBudget bounds the upstream job and technology lookups of one request so
// the response is written before the request timeout fires.
func (c Config) WorkBudget() time.Duration {
	return c.RequestTimeout() - 3*c.WriteTimeout()
}

// JobBudget is the longest a traffic job can take to start, finish polling and
// return its dataset.
func (c Config) JobBudget() time.Duration {
	return time.Duration(c.Apify.MaxPolls)*(c.PollInterval()+c.OutboundTimeout()) + 2*c.OutboundTimeout()
}

// PollInterval is the delay between job status checks.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Apify.PollIntervalSeconds) * time.Second
}
