package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Session   SessionConfig
	Lockout   LockoutConfig
	Provider  ProviderConfig
	Alert     AlertConfig
	Retention RetentionConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type SessionConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
}

// LockoutConfig parameterizes the lockout policy evaluator. Failures within
// the trailing window are counted per (identity, origin IP) pair.
type LockoutConfig struct {
	MaxFailures    int
	Window         time.Duration
	RequestsPerMin int // httprate profile for /auth routes
}

// ProviderConfig selects and configures the external identity provider.
// Mode "http" talks to a remote auth service; mode "local" uses the in-process
// bcrypt provider for development and tests.
type ProviderConfig struct {
	Mode    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type AlertConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
}

type RetentionConfig struct {
	AttemptTTL      time.Duration
	EventRetention  time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseCommaList(getEnv("ALLOWED_ORIGINS", "")),
			TrustedProxies: parseCommaList(getEnv("TRUSTED_PROXIES", "")),
		},
		Session: SessionConfig{
			JWTSecret:     jwtSecret,
			SessionExpiry: getEnvAsDuration("SESSION_EXPIRY", 15*time.Minute),
		},
		Lockout: LockoutConfig{
			MaxFailures:    getEnvAsInt("LOCKOUT_MAX_FAILURES", 5),
			Window:         getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			RequestsPerMin: getEnvAsInt("AUTH_REQUESTS_PER_MINUTE", 5),
		},
		Provider: ProviderConfig{
			Mode:    getEnv("IDENTITY_PROVIDER", "http"),
			BaseURL: getEnv("IDENTITY_PROVIDER_URL", ""),
			APIKey:  getEnv("IDENTITY_PROVIDER_KEY", ""),
			Timeout: getEnvAsDuration("IDENTITY_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Alert: AlertConfig{
			Enabled:     getEnvAsBool("ALERT_EMAIL_ENABLED", false),
			AWSRegion:   getEnv("ALERT_AWS_REGION", "us-east-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			ToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
		},
		Retention: RetentionConfig{
			AttemptTTL:      getEnvAsDuration("ATTEMPT_RETENTION", 24*time.Hour),
			EventRetention:  getEnvAsDuration("EVENT_RETENTION", 365*24*time.Hour),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Provider.Mode == "http" && cfg.Provider.BaseURL == "" {
		return nil, fmt.Errorf("IDENTITY_PROVIDER_URL is required when IDENTITY_PROVIDER=http")
	}

	if cfg.Alert.Enabled && (cfg.Alert.FromAddress == "" || cfg.Alert.ToAddress == "") {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when alert email is enabled")
	}

	if cfg.Lockout.MaxFailures < 1 {
		return nil, fmt.Errorf("LOCKOUT_MAX_FAILURES must be at least 1")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the session secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
