package config

import "testing"

func TestResolvedAuthMode(t *testing.T) {
	cfg := &Config{Env: "development"}
	if cfg.ResolvedAuthMode() != "development" {
		t.Errorf("expected development mode, got %s", cfg.ResolvedAuthMode())
	}

	cfg = &Config{Env: "production"}
	if cfg.ResolvedAuthMode() != "header" {
		t.Errorf("expected header mode, got %s", cfg.ResolvedAuthMode())
	}

	cfg = &Config{Env: "production", AuthMode: "development"}
	if cfg.ResolvedAuthMode() != "development" {
		t.Error("explicit AUTH_MODE should win")
	}
}

func TestValidateRejectsUnknownAuthMode(t *testing.T) {
	cfg := &Config{AuthMode: "jwt"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown auth mode")
	}
}

func TestValidateConnBounds(t *testing.T) {
	cfg := &Config{Env: "development", DBMaxConns: 2, DBMinConns: 5}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max conns < min conns")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hmis")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.MigrationsDir != "migrations" {
		t.Errorf("expected default migrations dir, got %s", cfg.MigrationsDir)
	}
}
