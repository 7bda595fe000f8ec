package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("DAILY_ANIMATION_LIMIT", "")
	t.Setenv("STORAGE_PROVIDER", "")
	t.Setenv("RENDER_MODE", "")
	t.Setenv("RENDER_TIMEOUT", "")
	t.Setenv("STORAGE_URL_TTL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DailyAnimationLimit != 50 {
		t.Fatalf("DailyAnimationLimit mismatch: got %d", cfg.DailyAnimationLimit)
	}
	if cfg.QueueName != "animation-job-queue" {
		t.Fatalf("QueueName mismatch: got %q", cfg.QueueName)
	}
	if cfg.RenderTimeout != 5*time.Minute {
		t.Fatalf("RenderTimeout mismatch: got %s", cfg.RenderTimeout)
	}
	if cfg.StorageURLTTL != 7*24*time.Hour {
		t.Fatalf("StorageURLTTL mismatch: got %s", cfg.StorageURLTTL)
	}
	if cfg.StorageProvider != "minio" || cfg.BucketName != "video-assets" {
		t.Fatalf("storage defaults mismatch: %q %q", cfg.StorageProvider, cfg.BucketName)
	}
	if got := cfg.StorageBaseURL; got != "http://localhost:8080/media" {
		t.Fatalf("StorageBaseURL mismatch: got %q", got)
	}
	if got := cfg.MinioURL(); got != "http://127.0.0.1:9000" {
		t.Fatalf("MinioURL mismatch: got %q", got)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got := cfg.StorageBaseURL; got != "http://localhost:1919/media" {
		t.Fatalf("StorageBaseURL mismatch: got %q", got)
	}
}

func TestLoadConfigDurations(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "90s", want: 90 * time.Second},
		{name: "bare seconds", value: "120", want: 2 * time.Minute},
		{name: "invalid falls back", value: "soon", want: 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RENDER_TIMEOUT", tt.value)
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.RenderTimeout != tt.want {
				t.Fatalf("RenderTimeout = %s, want %s", cfg.RenderTimeout, tt.want)
			}
		})
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"DATABASE_URL": ""}},
		{name: "unknown storage provider", env: map[string]string{"STORAGE_PROVIDER": "ftp"}},
		{name: "unknown render mode", env: map[string]string{"RENDER_MODE": "k8s"}},
		{name: "non-positive limit", env: map[string]string{"DAILY_ANIMATION_LIMIT": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://example")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRequireServerSecret(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireServerSecret(); err == nil {
		t.Fatal("expected error for empty secret")
	}
	cfg.ServerSecret = "s3cret"
	if err := cfg.RequireServerSecret(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
