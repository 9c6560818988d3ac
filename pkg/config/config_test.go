package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("unexpected driver %q", cfg.DatabaseDriver)
	}
	if cfg.CallTimeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.CallTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FORMFLOW_HTTP_ADDR", ":9999")
	t.Setenv("FORMFLOW_DB_DRIVER", "postgres")
	t.Setenv("FORMFLOW_REDIS_DB", "3")
	t.Setenv("FORMFLOW_CALL_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.DatabaseDriver != "postgres" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("unexpected redis db %d", cfg.RedisDB)
	}
	if cfg.CallTimeout != 5*time.Second {
		t.Errorf("unexpected timeout %v", cfg.CallTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("FORMFLOW_CACHE_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
