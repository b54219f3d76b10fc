package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")

	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want %q", cfg.DatabaseType, "sqlite")
	}
	if cfg.SessionDuration != 24*time.Hour {
		t.Errorf("SessionDuration = %v, want %v", cfg.SessionDuration, 24*time.Hour)
	}
	if !cfg.RequireVerifiedMail {
		t.Error("RequireVerifiedMail = false, want true")
	}
	if cfg.JWTSecret == "" {
		t.Error("JWTSecret should fall back to a development secret")
	}
	if cfg.CSRFSecret != cfg.JWTSecret {
		t.Errorf("CSRFSecret = %q, want JWT secret fallback", cfg.CSRFSecret)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ielts")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("AI_MAX_RETRIES", "7")
	t.Setenv("GRADING_WORKERS", "0")
	t.Setenv("AUTH_REQUIRE_VERIFIED", "false")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"port", cfg.ServerPort, "9090"},
		{"database type", cfg.DatabaseType, "postgres"},
		{"database url", cfg.DatabaseURL, "postgres://localhost/ielts"},
		{"ai timeout", cfg.AITimeout, 5 * time.Second},
		{"ai retries", cfg.AIMaxRetries, 7},
		{"grading workers floor", cfg.GradingWorkers, 1},
		{"require verified", cfg.RequireVerifiedMail, false},
		{"production", cfg.IsProduction(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}
