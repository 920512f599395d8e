package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Triage     TriageConfig
	Worker     WorkerConfig
	Classifier ClassifierConfig
	Slack      SlackConfig
	Jira       JiraConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TriageConfig tunes the policy engine and port call deadlines.
type TriageConfig struct {
	ConfidenceThreshold   float64
	HighRiskKeywords      []string
	ClassifyTimeoutSec    int
	DeliveryTimeoutSec    int
	DeliveryRetryAttempts int
}

// WorkerConfig sizes the pipeline worker pool.
type WorkerConfig struct {
	PoolSize      int
	QueueCapacity int
}

// ClassifierConfig points at the model backend. An empty endpoint selects
// the deterministic stub classifier.
type ClassifierConfig struct {
	Endpoint string
	Model    string
	APIKey   string
}

// SlackConfig holds the human review notification webhook. An empty URL
// selects the logging notifier.
type SlackConfig struct {
	WebhookURL string
	Channel    string
}

// JiraConfig holds issue tracker credentials. An empty base URL selects the
// logging tracker.
type JiraConfig struct {
	BaseURL    string
	ProjectKey string
	Email      string
	APIToken   string
}

// RedisConfig holds Redis connection values. An empty addr keeps state in
// memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig holds archive DB connection values. An empty DSN disables
// the archive.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// AuthConfig enables the optional service token check on ingestion.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "signaldesk-triage"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Triage: TriageConfig{
			ConfidenceThreshold:   getEnvAsFloat("TRIAGE_CONFIDENCE_THRESHOLD", 0.7),
			HighRiskKeywords:      splitList(getEnv("TRIAGE_HIGH_RISK_KEYWORDS", "lawsuit|security breach|data leak")),
			ClassifyTimeoutSec:    getEnvAsInt("TRIAGE_CLASSIFY_TIMEOUT_SECONDS", 20),
			DeliveryTimeoutSec:    getEnvAsInt("TRIAGE_DELIVERY_TIMEOUT_SECONDS", 10),
			DeliveryRetryAttempts: getEnvAsInt("TRIAGE_DELIVERY_RETRY_ATTEMPTS", 3),
		},
		Worker: WorkerConfig{
			PoolSize:      getEnvAsInt("WORKER_POOL_SIZE", 8),
			QueueCapacity: getEnvAsInt("WORKER_QUEUE_CAPACITY", 256),
		},
		Classifier: ClassifierConfig{
			Endpoint: os.Getenv("CLASSIFIER_ENDPOINT"),
			Model:    getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			APIKey:   os.Getenv("CLASSIFIER_API_KEY"),
		},
		Slack: SlackConfig{
			WebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
			Channel:    getEnv("SLACK_CHANNEL", "#triage-review"),
		},
		Jira: JiraConfig{
			BaseURL:    os.Getenv("JIRA_BASE_URL"),
			ProjectKey: getEnv("JIRA_PROJECT_KEY", "SUP"),
			Email:      os.Getenv("JIRA_EMAIL"),
			APIToken:   os.Getenv("JIRA_API_TOKEN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ClassifyTimeout returns the classifier port deadline.
func (t TriageConfig) ClassifyTimeout() time.Duration {
	return time.Duration(t.ClassifyTimeoutSec) * time.Second
}

// DeliveryTimeout returns the sink port deadline.
func (t TriageConfig) DeliveryTimeout() time.Duration {
	return time.Duration(t.DeliveryTimeoutSec) * time.Second
}

func splitList(val string) []string {
	parts := strings.Split(val, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
