// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Baseline store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Classifier strategies.
const (
	ClassifierThreshold = "threshold"
	ClassifierOPA       = "opa"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogMode selects the zap preset: "production" for JSON at info level, anything else for
	// the development console encoder at debug level.
	LogMode string `mapstructure:"LOG_MODE"`

	// BaselineStore is memory, postgres or redis.
	BaselineStore string `mapstructure:"BASELINE_STORE"`
	// DatabaseURL is the Postgres DSN; required when BaselineStore is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is host:port; required when BaselineStore is redis.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// PointerSampleInterval is the minimum spacing of recorded pointer moves (e.g. "50ms").
	PointerSampleInterval string `mapstructure:"POINTER_SAMPLE_INTERVAL"`
	// AnalysisInterval is the scheduler cadence (e.g. "3s").
	AnalysisInterval string `mapstructure:"ANALYSIS_INTERVAL"`
	// MinSampleCount is the typing sample count below which no verdict is produced.
	MinSampleCount int `mapstructure:"MIN_SAMPLE_COUNT"`
	// AnomalyThreshold is the relative deviation above which a dimension is anomalous (0.60 = 60%).
	AnomalyThreshold float64 `mapstructure:"ANOMALY_THRESHOLD"`
	// IdleTimeout is the inactivity period after which a session expires (e.g. "60s").
	IdleTimeout string `mapstructure:"IDLE_TIMEOUT"`
	// Classifier is threshold or opa.
	Classifier string `mapstructure:"CLASSIFIER"`
	// ClassifierPolicyFile optionally replaces the embedded Rego policy when Classifier is opa.
	ClassifierPolicyFile string `mapstructure:"CLASSIFIER_POLICY_FILE"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim of session access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim of session access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// When set, session events and request telemetry are published to Kafka.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100). Worker only.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTelEndpoint is the OTLP gRPC collector; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure forces plaintext to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName is the service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

const (
	defaultPointerSampleInterval = 50 * time.Millisecond
	defaultAnalysisInterval      = 3 * time.Second
	defaultIdleTimeout           = 60 * time.Second
	defaultAccessTTL             = 15 * time.Minute
)

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("BASELINE_STORE", StoreMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("POINTER_SAMPLE_INTERVAL", "50ms")
	v.SetDefault("ANALYSIS_INTERVAL", "3s")
	v.SetDefault("MIN_SAMPLE_COUNT", 6)
	v.SetDefault("ANOMALY_THRESHOLD", 0.60)
	v.SetDefault("IDLE_TIMEOUT", "60s")
	v.SetDefault("CLASSIFIER", ClassifierThreshold)
	v.SetDefault("CLASSIFIER_POLICY_FILE", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "continuous-auth")
	v.SetDefault("JWT_AUDIENCE", "continuous-auth-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "continuous-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "continuous-auth-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "continuous-auth")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}

	c.BaselineStore = strings.ToLower(strings.TrimSpace(c.BaselineStore))
	switch c.BaselineStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when BASELINE_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR must be set when BASELINE_STORE=redis")
		}
	default:
		return fmt.Errorf("config: BASELINE_STORE must be memory, postgres or redis, got %q", c.BaselineStore)
	}

	c.Classifier = strings.ToLower(strings.TrimSpace(c.Classifier))
	if c.Classifier != ClassifierThreshold && c.Classifier != ClassifierOPA {
		return fmt.Errorf("config: CLASSIFIER must be threshold or opa, got %q", c.Classifier)
	}

	if c.AnomalyThreshold <= 0 || c.AnomalyThreshold > 10 {
		return errors.New("config: ANOMALY_THRESHOLD must be in (0, 10]")
	}
	if c.MinSampleCount < 1 {
		return errors.New("config: MIN_SAMPLE_COUNT must be at least 1")
	}
	return nil
}

// parseDuration returns s as a positive duration, or fallback if unset or invalid.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// PointerSampleEvery parses PointerSampleInterval. Returns 50ms if unset or invalid.
func (c *Config) PointerSampleEvery() time.Duration {
	return parseDuration(c.PointerSampleInterval, defaultPointerSampleInterval)
}

// AnalysisEvery parses AnalysisInterval. Returns 3s if unset or invalid.
func (c *Config) AnalysisEvery() time.Duration {
	return parseDuration(c.AnalysisInterval, defaultAnalysisInterval)
}

// IdleAfter parses IdleTimeout. Returns 60s if unset or invalid.
func (c *Config) IdleAfter() time.Duration {
	return parseDuration(c.IdleTimeout, defaultIdleTimeout)
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, defaultAccessTTL)
}

// AuthEnabled reports whether both JWT keys are configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer and worker reader.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
