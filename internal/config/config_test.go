package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/proovd")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CRON_TOKEN", "test-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Errorf("AppPort = %d, want 8080", cfg.AppPort)
	}
	if cfg.LivenessWindow != 60*time.Second {
		t.Errorf("LivenessWindow = %v, want 60s", cfg.LivenessWindow)
	}
	if cfg.FlushInterval != 10*time.Second {
		t.Errorf("FlushInterval = %v, want 10s", cfg.FlushInterval)
	}
	if cfg.MaxEventsPerBatch != 50 {
		t.Errorf("MaxEventsPerBatch = %d, want 50", cfg.MaxEventsPerBatch)
	}
	if cfg.SubscriberQueueSize != 8 {
		t.Errorf("SubscriberQueueSize = %d, want 8", cfg.SubscriberQueueSize)
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("CRON_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when required variables are missing")
	}
}

func TestGetCORSAllowedOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.proovd.io, https://staging.proovd.io ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	origins := cfg.GetCORSAllowedOrigins()
	if len(origins) != 2 {
		t.Fatalf("got %d origins, want 2: %v", len(origins), origins)
	}
	if origins[0] != "https://app.proovd.io" || origins[1] != "https://staging.proovd.io" {
		t.Errorf("unexpected origins: %v", origins)
	}
}
