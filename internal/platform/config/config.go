package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         Redis
	JWTSigningKey string
	NotifyBuffer  int
}

// Redis captures the redis client configuration. An empty URL disables redis;
// the settings cache then falls through to the backing store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PASSGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	notifyBuffer := 256
	if raw := os.Getenv("PASSGATE_NOTIFY_BUFFER"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			notifyBuffer = parsed
		}
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("PASSGATE_POSTGRES_DSN"),
		JWTSigningKey: jwtSigningKey,
		NotifyBuffer:  notifyBuffer,
		Redis: Redis{
			URL:          os.Getenv("PASSGATE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
