// Package config loads the reference backend's configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// DatabaseURL is the postgres DSN for the session store.
	DatabaseURL string

	// AuthSigningSecret verifies bearer access tokens. Empty disables
	// auth entirely (local development only).
	AuthSigningSecret string

	// Media token issuance.
	TokenSigningSecret string
	TokenTTL           time.Duration
	MediaWSURL         string

	// Emotion classification.
	GeminiAPIKey        string
	GeminiModel         string
	ClassifyRateCalls   int
	ClassifyRateWindow  time.Duration
	ClassifyCacheTTL    time.Duration
	ClassifyMinInterval time.Duration

	// CORS; empty disables cross-origin access.
	CORSAllowedOrigins map[string]struct{}

	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VERBALIS_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AuthSigningSecret:   os.Getenv("VERBALIS_AUTH_SECRET"),
		TokenSigningSecret:  os.Getenv("VERBALIS_TOKEN_SECRET"),
		TokenTTL:            envDurationOr("VERBALIS_TOKEN_TTL", 15*time.Minute),
		MediaWSURL:          envOr("VERBALIS_MEDIA_WS_URL", "ws://localhost:7880"),
		GeminiAPIKey:        firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:         envOr("VERBALIS_GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifyRateCalls:   envIntOr("VERBALIS_CLASSIFY_RATE_CALLS", 10),
		ClassifyRateWindow:  envDurationOr("VERBALIS_CLASSIFY_RATE_WINDOW", time.Minute),
		ClassifyCacheTTL:    envDurationOr("VERBALIS_CLASSIFY_CACHE_TTL", 30*time.Second),
		ClassifyMinInterval: envDurationOr("VERBALIS_CLASSIFY_MIN_INTERVAL", 5*time.Second),
		CORSAllowedOrigins:  make(map[string]struct{}),
		ReadHeaderTimeout:   envDurationOr("VERBALIS_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("VERBALIS_READ_TIMEOUT", 60*time.Second),
		HandlerTimeout:      envDurationOr("VERBALIS_HANDLER_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("VERBALIS_SHUTDOWN_GRACE", 10*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("VERBALIS_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSigningSecret == "" {
		return Config{}, fmt.Errorf("VERBALIS_TOKEN_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("VERBALIS_TOKEN_TTL must be > 0")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	// Accept bare seconds as well as Go duration syntax.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
