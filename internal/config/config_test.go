package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.DBConnString != "" {
		t.Fatalf("expected memory store by default, got %q", cfg.DBConnString)
	}
	if len(cfg.CORSAllowOrigins) != 1 || cfg.CORSAllowOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowOrigins)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.ShutdownTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg := FromEnv()
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.ShutdownTimeout)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
}

func TestClientFromEnv(t *testing.T) {
	t.Setenv("TABIFY_API_URL", "")
	t.Setenv("TABIFY_SYNC_URL", "ws://shop.local/ws")
	t.Setenv("TABIFY_STATE_FILE", "/tmp/order.json")

	cfg := ClientFromEnv()
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected api url %q", cfg.APIBaseURL)
	}
	if cfg.SyncURL != "ws://shop.local/ws" {
		t.Fatalf("unexpected sync url %q", cfg.SyncURL)
	}
	if cfg.StateFile != "/tmp/order.json" {
		t.Fatalf("unexpected state file %q", cfg.StateFile)
	}
}
