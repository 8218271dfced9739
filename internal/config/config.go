package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds authority runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr         string
	DBConnString     string
	RedisAddr        string
	RedisChannel     string
	AMQPURL          string
	CORSAllowOrigins []string
	ShutdownTimeout  time.Duration
	LogLevel         string
}

// FromEnv builds Config with defaults, overridden by environment variables.
// An empty DB_DSN keeps orders in memory.
func FromEnv() Config {
	return Config{
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		DBConnString:     os.Getenv("DB_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisChannel:     envOrDefault("REDIS_CHANNEL", "tabify:orders"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		CORSAllowOrigins: splitCSV(envOrDefault("CORS_ALLOW_ORIGINS", "*")),
		ShutdownTimeout:  envDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}
}

// ClientConfig configures the customer client.
type ClientConfig struct {
	APIBaseURL   string
	SyncURL      string
	StateFile    string
	CustomerName string
	LogLevel     string
}

// ClientFromEnv builds ClientConfig; both endpoints default to a local authority.
func ClientFromEnv() ClientConfig {
	return ClientConfig{
		APIBaseURL:   envOrDefault("TABIFY_API_URL", "http://localhost:8080"),
		SyncURL:      envOrDefault("TABIFY_SYNC_URL", "ws://localhost:8080/ws"),
		StateFile:    envOrDefault("TABIFY_STATE_FILE", defaultStateFile()),
		CustomerName: os.Getenv("TABIFY_CUSTOMER_NAME"),
		LogLevel:     envOrDefault("LOG_LEVEL", "warn"),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tabify-order.json"
	}
	return filepath.Join(dir, "tabify", "order.json")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		seconds, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
