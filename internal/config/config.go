// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lildude/stravastats/internal/model"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	StravaClientID     string
	StravaClientSecret string
	StravaRedirectURI  string
	StravaVerifyToken  string
	AdminToken         string

	RunKinds           []string
	UpstreamTimeout    time.Duration
	TokenRefreshMargin time.Duration

	ImportPageSize      int
	ImportRatePerMinute int
	ImportDays          int
}

// Load reads environment variables into Config, applying defaults for local use.
func Load() Config {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("FUNCTIONS_CUSTOMHANDLER_PORT", "8080")
	}

	kinds := splitAndTrim(getEnv("RUN_KINDS", strings.Join(model.DefaultRunKinds, ",")))
	if len(kinds) == 0 {
		kinds = model.DefaultRunKinds
	}

	return Config{
		Port:                port,
		DatabaseURL:         getEnv("DATABASE_URL", "file:stravastats.db"),
		RedisURL:            getEnv("REDIS_URL", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StravaClientID:      getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret:  getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRedirectURI:   getEnv("STRAVA_REDIRECT_URI", ""),
		StravaVerifyToken:   getEnv("STRAVA_VERIFY_TOKEN", ""),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
		RunKinds:            kinds,
		UpstreamTimeout:     getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second),
		TokenRefreshMargin:  getDurationEnv("TOKEN_REFRESH_MARGIN", 60*time.Second),
		ImportPageSize:      getIntEnv("IMPORT_PAGE_SIZE", 200),
		ImportRatePerMinute: getIntEnv("IMPORT_RATE_PER_MINUTE", 90),
		ImportDays:          getIntEnv("IMPORT_DAYS", 365),
	}
}

// Validate reports the settings without which no Strava call can succeed.
func (c Config) Validate() error {
	var missing []string
	if c.StravaClientID == "" {
		missing = append(missing, "STRAVA_CLIENT_ID")
	}
	if c.StravaClientSecret == "" {
		missing = append(missing, "STRAVA_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
