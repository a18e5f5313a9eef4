package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/verbalis")
	t.Setenv("VERBALIS_TOKEN_SECRET", "s3cret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.ClassifyRateCalls != 10 || cfg.ClassifyRateWindow != time.Minute {
		t.Fatalf("classify rate = %d/%v", cfg.ClassifyRateCalls, cfg.ClassifyRateWindow)
	}
	if cfg.ClassifyCacheTTL != 30*time.Second || cfg.ClassifyMinInterval != 5*time.Second {
		t.Fatalf("classify cache/interval = %v/%v", cfg.ClassifyCacheTTL, cfg.ClassifyMinInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("cors origins = %v, want none", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("VERBALIS_ADDR", ":9000")
	t.Setenv("VERBALIS_TOKEN_TTL", "600")
	t.Setenv("VERBALIS_HANDLER_TIMEOUT", "45s")
	t.Setenv("VERBALIS_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	// Bare integers read as seconds.
	if cfg.TokenTTL != 10*time.Minute {
		t.Fatalf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.HandlerTimeout != 45*time.Second {
		t.Fatalf("handler timeout = %v", cfg.HandlerTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://a.example.com"]; !ok {
		t.Fatal("first origin missing")
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VERBALIS_TOKEN_SECRET", "s3cret")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("load without DATABASE_URL succeeded")
	}
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/verbalis")
	t.Setenv("VERBALIS_TOKEN_SECRET", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("load without token secret succeeded")
	}
}

func TestGeminiKeyFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "g-key" {
		t.Fatalf("gemini key = %q, want the GOOGLE_API_KEY fallback", cfg.GeminiAPIKey)
	}
}
