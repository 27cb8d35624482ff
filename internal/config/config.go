package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Identity IdentityConfig
	Tokens   TokenConfig
	SMTP     SMTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	BaseURL               string
	RequestTimeoutSeconds int
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
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IdentityConfig defines identity-provider parameters.
type IdentityConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	VerifyTimeoutSeconds  int
	CallTimeoutSeconds    int
}

// TokenConfig bounds the security-token workflow.
type TokenConfig struct {
	VerifyEmailTTLHours    int
	ResetPasswordTTLHours  int
	ResetRequestsPerWindow int
	ResetWindowMinutes     int
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			BaseURL:               getEnv("APP_BASE_URL", "http://localhost:8080"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			JWTSecret:             getEnv("IDENTITY_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("IDENTITY_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("IDENTITY_BCRYPT_COST", 12),
			VerifyTimeoutSeconds:  getEnvAsInt("IDENTITY_VERIFY_TIMEOUT_SECONDS", 5),
			CallTimeoutSeconds:    getEnvAsInt("IDENTITY_CALL_TIMEOUT_SECONDS", 10),
		},
		Tokens: TokenConfig{
			VerifyEmailTTLHours:    getEnvAsInt("TOKEN_VERIFY_EMAIL_TTL_HOURS", 24),
			ResetPasswordTTLHours:  getEnvAsInt("TOKEN_RESET_PASSWORD_TTL_HOURS", 1),
			ResetRequestsPerWindow: getEnvAsInt("RESET_REQUESTS_PER_WINDOW", 5),
			ResetWindowMinutes:     getEnvAsInt("RESET_WINDOW_MINUTES", 15),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "465"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "noreply@example.com"),
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

// VerifyTimeout bounds identity token verification.
func (i IdentityConfig) VerifyTimeout() time.Duration {
	if i.VerifyTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(i.VerifyTimeoutSeconds) * time.Second
}

// CallTimeout bounds identity record mutations.
func (i IdentityConfig) CallTimeout() time.Duration {
	if i.CallTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(i.CallTimeoutSeconds) * time.Second
}

// VerifyEmailTTL returns the verification-token lifetime.
func (t TokenConfig) VerifyEmailTTL() time.Duration {
	if t.VerifyEmailTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(t.VerifyEmailTTLHours) * time.Hour
}

// ResetPasswordTTL returns the reset-token lifetime.
func (t TokenConfig) ResetPasswordTTL() time.Duration {
	if t.ResetPasswordTTLHours <= 0 {
		return time.Hour
	}
	return time.Duration(t.ResetPasswordTTLHours) * time.Hour
}

// ResetWindow returns the rate-limit window for reset requests.
func (t TokenConfig) ResetWindow() time.Duration {
	if t.ResetWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(t.ResetWindowMinutes) * time.Minute
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
