package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string // "local" or "prod"
	DatabaseURL    string
	MongoDatabase  string
	CORSOrigin     string
	JWTSecret      string
	JWTIssuer      string
	UploadDir      string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	NatsURL        string
	OtelEndpoint   string
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		// Production sets env vars directly, without a .env file.
		slog.Debug("No .env file found, reading from environment")
	}

	cfg := Config{
		Port:           getEnv("PORT", "5000"),
		Env:            getEnv("APP_ENV", "local"),
		DatabaseURL:    getEnv("DATABASE_URL", "sqlite://postwall.db"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "postwall"),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", ""),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 5<<20),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 1.0/3.0), // 1 request every 3 seconds
		RateLimitBurst: int(getInt64("RATE_LIMIT_BURST", 3)),
		NatsURL:        getEnv("NATS_URL", ""),
		OtelEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET environment variable not set")
	}
	return cfg, nil
}

func (c Config) IsLocal() bool { return c.Env == "local" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("Ignoring invalid number setting", "key", key, "value", v)
		return fallback
	}
	return f
}
