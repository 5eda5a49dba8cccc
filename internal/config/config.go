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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Sync         SyncConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowedOrigins    string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how ingestion callers authenticate.
type AuthConfig struct {
	APIKeyHash      string
	JWTSecret       string
	TokenTTLMinutes int
}

// BonusIDStrategy selects how bonus payment ids are derived when upstream
// does not supply one.
type BonusIDStrategy string

const (
	BonusIDSequence    BonusIDStrategy = "sequence"
	BonusIDContentHash BonusIDStrategy = "content-hash"
)

// SyncConfig tunes the ingestion engine.
type SyncConfig struct {
	MaxWorkers              int
	TxMaxRetries            int
	TxRetryBaseMillis       int
	BonusIDStrategy         BonusIDStrategy
	ReservationCacheKey     string
	ReservationCacheTTLSecs int
}

// NotificationConfig holds the sync webhook endpoint.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	strategy := BonusIDStrategy(strings.ToLower(getEnv("SYNC_BONUS_ID_STRATEGY", string(BonusIDSequence))))
	if strategy != BonusIDSequence && strategy != BonusIDContentHash {
		return nil, fmt.Errorf("invalid SYNC_BONUS_ID_STRATEGY: %q", strategy)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "payroll-sync"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
			CORSAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			APIKeyHash:      os.Getenv("AUTH_API_KEY_HASH"),
			JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Sync: SyncConfig{
			MaxWorkers:              getEnvAsInt("SYNC_MAX_WORKERS", 8),
			TxMaxRetries:            getEnvAsInt("SYNC_TX_MAX_RETRIES", 5),
			TxRetryBaseMillis:       getEnvAsInt("SYNC_TX_RETRY_BASE_MS", 20),
			BonusIDStrategy:         strategy,
			ReservationCacheKey:     getEnv("RESERVATION_CACHE_KEY", "payroll-sync:pending-new-hires"),
			ReservationCacheTTLSecs: getEnvAsInt("RESERVATION_CACHE_TTL_SECONDS", 30),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
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

// TxRetryBase returns the first backoff interval for retried transactions.
func (s SyncConfig) TxRetryBase() time.Duration {
	if s.TxRetryBaseMillis <= 0 {
		return 20 * time.Millisecond
	}
	return time.Duration(s.TxRetryBaseMillis) * time.Millisecond
}

// WebhookTimeout bounds one webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

// ReservationCacheTTL returns how long the mirrored reservation set may stand
// in for a failed database read.
func (s SyncConfig) ReservationCacheTTL() time.Duration {
	if s.ReservationCacheTTLSecs <= 0 {
		return 0
	}
	return time.Duration(s.ReservationCacheTTLSecs) * time.Second
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
