package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

// Config is the resolved runtime configuration for the tracking service.
type Config struct {
	ServiceName string
	LogLevel    string

	HTTPPort    int
	GRPCPort    int
	MetricsPort int

	StorageDriver string
	DatabaseURL   string
	MaxDBConns    int32
	RedisURL      string

	KafkaBrokers        []string
	KafkaGroupID        string
	KafkaCommandTopic   string
	KafkaAnalyticsTopic string
	KafkaDLQTopic       string

	AuthMode        string
	TrustRoleHeader bool
	JWTPublicKeyPEM string
	JWTIssuer       string
	JWTAudience     string

	TokenEncryptionSeed string

	InstagramBaseURL  string
	InstagramPageSize int
	InstagramMaxPages int
	InstagramTimeout  time.Duration

	SlackToken      string
	SlackChannel    string
	NotifyQueueSize int
	NotifyTimeout   time.Duration

	MetricsNamespace string

	DefaultCurrency      string
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration

	TrackingInterval     time.Duration
	TrackingCycleTimeout time.Duration
	TrackingBatchSize    int
	TrackingConcurrency  int
	FetchTimeout         time.Duration
	LockTTL              time.Duration
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		Name     string `yaml:"name"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		StorageDriver string   `yaml:"storage_driver"`
		PostgresURL   string   `yaml:"postgres_url"`
		RedisURL      string   `yaml:"redis_url"`
		KafkaBrokers  []string `yaml:"kafka_brokers"`
		InstagramURL  string   `yaml:"instagram_base_url"`
		SlackChannel  string   `yaml:"slack_channel"`
	} `yaml:"dependencies"`
	Tracking struct {
		Interval     string `yaml:"interval"`
		CycleTimeout string `yaml:"cycle_timeout"`
		BatchSize    int    `yaml:"batch_size"`
		Concurrency  int    `yaml:"concurrency"`
		FetchTimeout string `yaml:"fetch_timeout"`
		LockTTL      string `yaml:"lock_ttl"`
	} `yaml:"tracking"`
	FeatureFlags struct {
		AuthMode string `yaml:"auth_mode"`
	} `yaml:"feature_flags"`
}

// LoadConfig resolves configuration: defaults, then .env, then the YAML file,
// then environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceName:          "submission-tracking-service",
		LogLevel:             "info",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MetricsPort:          9102,
		StorageDriver:        StorageDriverPostgres,
		MaxDBConns:           20,
		KafkaGroupID:         "submission-tracking-service",
		KafkaCommandTopic:    "tracking.cycle_requested",
		KafkaAnalyticsTopic:  "submission.analytics",
		KafkaDLQTopic:        "submission-tracking-service.dlq",
		AuthMode:             AuthModeJWT,
		InstagramBaseURL:     "https://graph.instagram.com/v21.0",
		InstagramPageSize:    50,
		InstagramMaxPages:    4,
		InstagramTimeout:     15 * time.Second,
		NotifyQueueSize:      256,
		NotifyTimeout:        5 * time.Second,
		MetricsNamespace:     "submission_tracking",
		DefaultCurrency:      "USD",
		IdempotencyTTL:       7 * 24 * time.Hour,
		EventDedupTTL:        7 * 24 * time.Hour,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		ConsumerPollInterval: time.Second,
		TrackingInterval:     time.Hour,
		TrackingCycleTimeout: 30 * time.Minute,
		TrackingBatchSize:    500,
		TrackingConcurrency:  8,
		FetchTimeout:         20 * time.Second,
		LockTTL:              2 * time.Minute,
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.ServiceName = envOrDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MetricsPort = envInt("METRICS_PORT", cfg.MetricsPort)

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = envOrDefault("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.KafkaCommandTopic = envOrDefault("KAFKA_COMMAND_TOPIC", cfg.KafkaCommandTopic)
	cfg.KafkaAnalyticsTopic = envOrDefault("KAFKA_ANALYTICS_TOPIC", cfg.KafkaAnalyticsTopic)
	cfg.KafkaDLQTopic = envOrDefault("KAFKA_DLQ_TOPIC", cfg.KafkaDLQTopic)

	cfg.AuthMode = strings.ToLower(strings.TrimSpace(envOrDefault("AUTH_MODE", cfg.AuthMode)))
	cfg.TrustRoleHeader = envBool("AUTH_TRUST_ROLE_HEADER", cfg.TrustRoleHeader)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.TokenEncryptionSeed = envOrDefault("TOKEN_ENCRYPTION_SEED", cfg.TokenEncryptionSeed)

	cfg.InstagramBaseURL = envOrDefault("INSTAGRAM_BASE_URL", cfg.InstagramBaseURL)
	cfg.InstagramPageSize = envInt("INSTAGRAM_PAGE_SIZE", cfg.InstagramPageSize)
	cfg.InstagramMaxPages = envInt("INSTAGRAM_MAX_PAGES", cfg.InstagramMaxPages)
	cfg.InstagramTimeout = envDuration("INSTAGRAM_TIMEOUT", cfg.InstagramTimeout)

	cfg.SlackToken = envOrDefault("SLACK_TOKEN", cfg.SlackToken)
	cfg.SlackChannel = envOrDefault("SLACK_CHANNEL", cfg.SlackChannel)
	cfg.NotifyQueueSize = envInt("NOTIFY_QUEUE_SIZE", cfg.NotifyQueueSize)
	cfg.NotifyTimeout = envDuration("NOTIFY_TIMEOUT", cfg.NotifyTimeout)

	cfg.MetricsNamespace = envOrDefault("METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.DefaultCurrency = strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency))
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = envDuration("CONSUMER_POLL_INTERVAL", cfg.ConsumerPollInterval)

	cfg.TrackingInterval = envDuration("TRACKING_INTERVAL", cfg.TrackingInterval)
	cfg.TrackingCycleTimeout = envDuration("TRACKING_CYCLE_TIMEOUT", cfg.TrackingCycleTimeout)
	cfg.TrackingBatchSize = envInt("TRACKING_BATCH_SIZE", cfg.TrackingBatchSize)
	cfg.TrackingConcurrency = envInt("TRACKING_CONCURRENCY", cfg.TrackingConcurrency)
	cfg.FetchTimeout = envDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.LockTTL = envDuration("LOCK_TTL", cfg.LockTTL)

	return cfg, cfg.validate()
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.Name != "" {
		cfg.ServiceName = f.Service.Name
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	if f.Dependencies.StorageDriver != "" {
		cfg.StorageDriver = f.Dependencies.StorageDriver
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.InstagramURL != "" {
		cfg.InstagramBaseURL = f.Dependencies.InstagramURL
	}
	if f.Dependencies.SlackChannel != "" {
		cfg.SlackChannel = f.Dependencies.SlackChannel
	}
	if f.FeatureFlags.AuthMode != "" {
		cfg.AuthMode = f.FeatureFlags.AuthMode
	}
	if f.Tracking.BatchSize > 0 {
		cfg.TrackingBatchSize = f.Tracking.BatchSize
	}
	if f.Tracking.Concurrency > 0 {
		cfg.TrackingConcurrency = f.Tracking.Concurrency
	}
	durations := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{f.Tracking.Interval, &cfg.TrackingInterval, "tracking.interval"},
		{f.Tracking.CycleTimeout, &cfg.TrackingCycleTimeout, "tracking.cycle_timeout"},
		{f.Tracking.FetchTimeout, &cfg.FetchTimeout, "tracking.fetch_timeout"},
		{f.Tracking.LockTTL, &cfg.LockTTL, "tracking.lock_ttl"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTPublicKeyPEM == "" {
			return fmt.Errorf("missing JWT_PUBLIC_KEY_PEM")
		}
	case AuthModeDev:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.TokenEncryptionSeed == "" {
		return fmt.Errorf("missing TOKEN_ENCRYPTION_SEED")
	}
	if c.TrackingInterval <= 0 {
		return fmt.Errorf("TRACKING_INTERVAL must be positive")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envDuration accepts Go duration strings ("90s", "1h") or plain seconds.
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	if v, err := time.ParseDuration(raw); err == nil {
		return v
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
