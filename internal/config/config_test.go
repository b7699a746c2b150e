package config

import (
	"testing"
	"time"
)

func TestLoadSessionConfigDefaults(t *testing.T) {
	cfg, err := loadSessionConfig()
	if err != nil {
		t.Fatalf("loadSessionConfig err: %v", err)
	}

	if cfg.TTL != 30*time.Minute {
		t.Fatalf("unexpected TTL: %v", cfg.TTL)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("unexpected sweep interval: %v", cfg.SweepInterval)
	}
	if cfg.MaxActive != 256 || cfg.HistoryLimit != 5 || cfg.SampleRows != 5 {
		t.Fatalf("unexpected bounds: %+v", cfg)
	}
}

func TestLoadSessionConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL_MINUTES", "10")
	t.Setenv("SESSION_SWEEP_MINUTES", "1")
	t.Setenv("SESSION_MAX_ACTIVE", "8")

	cfg, err := loadSessionConfig()
	if err != nil {
		t.Fatalf("loadSessionConfig err: %v", err)
	}

	if cfg.TTL != 10*time.Minute || cfg.SweepInterval != time.Minute || cfg.MaxActive != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadSessionConfigRejectsBadTTL(t *testing.T) {
	t.Setenv("SESSION_TTL_MINUTES", "0")
	if _, err := loadSessionConfig(); err == nil {
		t.Fatal("expected error for zero TTL")
	}

	t.Setenv("SESSION_TTL_MINUTES", "abc")
	if _, err := loadSessionConfig(); err == nil {
		t.Fatal("expected error for non-numeric TTL")
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9001")
	cfg, err = loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9001" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
}
