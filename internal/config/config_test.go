package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.StorageBackend != "local" {
		t.Fatalf("unexpected backend: %s", cfg.StorageBackend)
	}
	if cfg.MaxUploadBytes != 1000<<20 {
		t.Fatalf("unexpected max upload: %d", cfg.MaxUploadBytes)
	}
	if cfg.FinalizerWorkers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.FinalizerWorkers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FCSVAULT_ADDR", ":9090")
	t.Setenv("FCSVAULT_UPLOAD_SESSION_TTL", "1h")
	t.Setenv("FCSVAULT_FINALIZER_WORKERS", "8")
	t.Setenv("FCSVAULT_MAX_UPLOAD_BYTES", "1024")

	cfg := Load()
	if cfg.Addr != ":9090" {
		t.Fatalf("addr override not applied: %s", cfg.Addr)
	}
	if cfg.UploadSessionTTL != time.Hour {
		t.Fatalf("ttl override not applied: %s", cfg.UploadSessionTTL)
	}
	if cfg.FinalizerWorkers != 8 {
		t.Fatalf("workers override not applied: %d", cfg.FinalizerWorkers)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("size override not applied: %d", cfg.MaxUploadBytes)
	}
}

func TestEnvOverrideIgnoresMalformed(t *testing.T) {
	t.Setenv("FCSVAULT_FINALIZER_WORKERS", "not-a-number")
	t.Setenv("FCSVAULT_UPLOAD_SESSION_TTL", "-5m")

	cfg := Load()
	if cfg.FinalizerWorkers != 2 {
		t.Fatalf("malformed int should keep default, got %d", cfg.FinalizerWorkers)
	}
	if cfg.UploadSessionTTL != 24*time.Hour {
		t.Fatalf("non-positive duration should keep default, got %s", cfg.UploadSessionTTL)
	}
}
