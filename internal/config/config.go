package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config aggregates runtime configuration for the console.
type Config struct {
	App      AppConfig
	Gateway  GatewayConfig
	Session  SessionConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Metrics  MetricsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `validate:"required"`
	Env                   string `validate:"required"`
	Host                  string
	Port                  string `validate:"required,numeric"`
	Version               string
	RequestTimeoutSeconds int `validate:"gte=0"`
}

// GatewayConfig points at the backend REST gateway.
type GatewayConfig struct {
	BaseURL        string `validate:"required,url"`
	LoginPath      string `validate:"required,startswith=/"`
	UsersURL       string `validate:"required,url"`
	TimeoutSeconds int    `validate:"gte=0"`
}

// SessionConfig controls token persistence and expiry polling.
type SessionConfig struct {
	Store               string `validate:"oneof=memory file redis postgres"`
	FilePath            string `validate:"required_if=Store file"`
	KeyPrefix           string
	SealKey             string `validate:"omitempty,hexadecimal,len=64"`
	PollIntervalMS      int    `validate:"gt=0"`
	SimulatedTTLSeconds int    `validate:"gt=0"`
	Interactive         bool
}

// AuthConfig selects how credentials are verified.
type AuthConfig struct {
	Mode            string `validate:"oneof=gateway dev"`
	DevUser         string `validate:"required_if=Mode dev"`
	DevPassword     string
	DevPasswordHash string
	DevRoles        []string
	DevSecret       string `validate:"required_if=Mode dev"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	baseURL := strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:8080/api"), "/")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "pedidos-console"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "4200"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Gateway: GatewayConfig{
			BaseURL:        baseURL,
			LoginPath:      getEnv("GATEWAY_LOGIN_PATH", "/login"),
			UsersURL:       strings.TrimRight(getEnv("GATEWAY_USERS_URL", baseURL+"/usuarios"), "/"),
			TimeoutSeconds: getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 15),
		},
		Session: SessionConfig{
			Store:               getEnv("SESSION_STORE", "file"),
			FilePath:            getEnv("SESSION_FILE_PATH", ".pedidos-console/session.json"),
			KeyPrefix:           os.Getenv("SESSION_KEY_PREFIX"),
			SealKey:             os.Getenv("SESSION_SEAL_KEY"),
			PollIntervalMS:      getEnvAsInt("SESSION_POLL_INTERVAL_MS", 1000),
			SimulatedTTLSeconds: getEnvAsInt("SESSION_SIMULATED_TTL_SECONDS", 600),
			Interactive:         getEnvAsBool("SESSION_INTERACTIVE", true),
		},
		Auth: AuthConfig{
			Mode:            getEnv("AUTH_MODE", "gateway"),
			DevUser:         getEnv("AUTH_DEV_USER", "admin"),
			DevPassword:     os.Getenv("AUTH_DEV_PASSWORD"),
			DevPasswordHash: os.Getenv("AUTH_DEV_PASSWORD_HASH"),
			DevRoles:        getEnvAsList("AUTH_DEV_ROLES", []string{"ADMIN"}),
			DevSecret:       getEnv("AUTH_DEV_SECRET", "dev-secret"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-section constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.Store == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("invalid config: POSTGRES_DSN required when SESSION_STORE=postgres")
	}
	if c.Auth.Mode == "dev" && c.Auth.DevPassword == "" && c.Auth.DevPasswordHash == "" {
		return fmt.Errorf("invalid config: AUTH_DEV_PASSWORD or AUTH_DEV_PASSWORD_HASH required when AUTH_MODE=dev")
	}
	return nil
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

// Timeout returns the per-request gateway timeout.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// PollInterval returns the token expiry polling period.
func (s SessionConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// SimulatedTTL is used when neither the auth API nor the token carries an expiry.
func (s SessionConfig) SimulatedTTL() time.Duration {
	return time.Duration(s.SimulatedTTLSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
