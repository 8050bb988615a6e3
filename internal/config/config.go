package config

import (
	"os"
	"strconv"
)

// SecurityConfig controls the Basic-auth layer guarding the greeting routes.
type SecurityConfig struct {
	Enabled bool
	// Users is a comma separated list of name:password:ROLE1|ROLE2 entries.
	Users string
	// UsersFile points to a YAML user directory. It takes precedence over Users when set.
	UsersFile    string
	RequiredRole string
	Realm        string
}

// RateLimitConfig holds the inbound token bucket settings.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost            string
	Port               string
	Timezone           string
	MetricsEnabled     bool
	TracingEnabled     bool
	ShutdownTimeoutSec int
	Security           SecurityConfig
	RateLimit          RateLimitConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:            getEnv("APP_HOST", "localhost:8080"),
		Port:               getEnv("PORT", "8080"),
		Timezone:           getEnv("APP_TIMEZONE", "UTC"),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		TracingEnabled:     getEnvBool("TRACING_ENABLED", false),
		ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10),
		Security: SecurityConfig{
			Enabled:      getEnvBool("SECURITY_ENABLED", true),
			Users:        getEnv("SECURITY_USERS", ""),
			UsersFile:    getEnv("SECURITY_USERS_FILE", ""),
			RequiredRole: getEnv("SECURITY_REQUIRED_ROLE", "USER"),
			Realm:        getEnv("SECURITY_REALM", "helloapi"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
