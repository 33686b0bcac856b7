package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("MCP_MEMORY_STORAGE_BACKEND", "cloud")
	os.Setenv("MCP_HYBRID_BATCH_SIZE", "25")
	defer os.Unsetenv("MCP_MEMORY_STORAGE_BACKEND")
	defer os.Unsetenv("MCP_HYBRID_BATCH_SIZE")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageBackend != BackendCloud {
		t.Fatalf("expected cloud backend, got %s", cfg.StorageBackend)
	}
	if cfg.Hybrid.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Hybrid.BatchSize)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.StorageBackend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	yamlBody := "StorageBackend: cloud\nCloud:\n  RequestTimeout: 5s\n  MaxAttempts: 2\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("writing overlay file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageBackend != BackendCloud {
		t.Fatalf("expected cloud backend, got %s", cfg.StorageBackend)
	}
	if cfg.Cloud.RequestTimeout != 5*time.Second {
		t.Fatalf("expected 5s request timeout, got %v", cfg.Cloud.RequestTimeout)
	}
	if cfg.Cloud.MaxAttempts != 2 {
		t.Fatalf("expected max attempts 2, got %d", cfg.Cloud.MaxAttempts)
	}
}

func TestHalfLifeFallsBackToDefault(t *testing.T) {
	cfg := Default()
	if got := cfg.HalfLife("critical"); got != 365*24*time.Hour {
		t.Fatalf("expected 365 days, got %v", got)
	}
	if got := cfg.HalfLife("unknown_type"); got != 30*24*time.Hour {
		t.Fatalf("expected default 30 days, got %v", got)
	}
}
