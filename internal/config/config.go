// Package config loads and validates application configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `mapstructure:"PORT"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTSecret signs access and confirmation tokens. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// LogLevel is one of debug, info, warn, error. Defaults to "info".
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// LogFormat is "json" (default) or "text" for colored console output.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// CORSOrigins is the list of allowed cross-origin request origins,
	// read from the comma-separated CORS_ORIGINS.
	CORSOrigins []string `mapstructure:"-"`

	// RedisURL locates the session registry. Required.
	RedisURL    string `mapstructure:"REDIS_URL"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	// RabbitMQURL is optional; without it events are only logged.
	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	EventExchange string `mapstructure:"EVENT_EXCHANGE"`

	RequireEmailConfirmation bool          `mapstructure:"REQUIRE_EMAIL_CONFIRMATION"`
	AccessTokenTTL           time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL          time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	SignInLimit              int           `mapstructure:"SIGNIN_LIMIT"`
	SignInWindow             time.Duration `mapstructure:"SIGNIN_WINDOW"`

	// PayoutJobSchedule is the cron spec for monthly payout generation.
	// Empty disables the job.
	PayoutJobSchedule string `mapstructure:"PAYOUT_JOB_SCHEDULE"`

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`

	// Timezone is the IANA zone used for calendar-month boundaries in stats.
	Timezone string `mapstructure:"TIMEZONE"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`
}

var defaults = map[string]any{
	"PORT":                       "8080",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"CORS_ORIGINS":               "http://localhost:5173",
	"REDIS_PREFIX":               "wayfarer",
	"EVENT_EXCHANGE":             "wayfarer.events",
	"REQUIRE_EMAIL_CONFIRMATION": false,
	"ACCESS_TOKEN_TTL":           "15m",
	"REFRESH_TOKEN_TTL":          "720h",
	"SIGNIN_LIMIT":               10,
	"SIGNIN_WINDOW":              "15m",
	"PAYOUT_JOB_SCHEDULE":        "0 3 1 * *", // 03:00 on day-of-month 1.
	"MIGRATE_ON_START":           false,
	"TIMEZONE":                   "UTC",
	"MAX_BODY_BYTES":             1 << 20,
}

// Load reads configuration from the environment and returns a Config.
// A .env file in the working directory is loaded first if present; real
// environment variables win over it.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "REDIS_URL", "RABBITMQ_URL"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	cfg.CORSOrigins = splitCSV(v.GetString("CORS_ORIGINS"))

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("config.Load: TIMEZONE: %w", err)
	}

	return cfg, nil
}

// Location returns the configured time zone. Load has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
