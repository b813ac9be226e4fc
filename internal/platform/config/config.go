package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the process. Values
// come from the environment so main stays lean; defaults suit local runs.
type Config struct {
	Addr     string
	LogLevel string

	// Backend selects the store implementation per concern.
	IdentityBackend string // "memory" or "postgres"
	LedgerBackend   string // "memory", "redis" or "postgres"

	DatabaseURL string
	Redis       RedisConfig

	PrivateKeyPath string
	PublicKeyPath  string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	SessionTTL    time.Duration

	AuditBrokers []string
	AuditTopic   string
}

// RedisConfig mirrors the go-redis options this service overrides.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:     envOr("PINGUARD_ADDR", ":8080"),
		LogLevel: envOr("PINGUARD_LOG_LEVEL", "info"),

		IdentityBackend: envOr("PINGUARD_IDENTITY_BACKEND", "memory"),
		LedgerBackend:   envOr("PINGUARD_LEDGER_BACKEND", "memory"),

		DatabaseURL: os.Getenv("PINGUARD_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("PINGUARD_REDIS_URL"),
			PoolSize:     envIntOr("PINGUARD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("PINGUARD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("PINGUARD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("PINGUARD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("PINGUARD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},

		PrivateKeyPath: envOr("PINGUARD_PRIVATE_KEY_PATH", "keys/private.pem"),
		PublicKeyPath:  envOr("PINGUARD_PUBLIC_KEY_PATH", "keys/public.pem"),

		// The default exists for development only and must be overridden
		// in any deployed environment.
		JWTSigningKey: envOr("PINGUARD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("PINGUARD_JWT_ISSUER", "pinguard"),
		JWTAudience:   envOr("PINGUARD_JWT_AUDIENCE", "pinguard-clients"),
		SessionTTL:    envDurationOr("PINGUARD_SESSION_TTL", 15*time.Minute),

		AuditBrokers: envList("PINGUARD_AUDIT_BROKERS"),
		AuditTopic:   envOr("PINGUARD_AUDIT_TOPIC", "pinguard.security.audit"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
