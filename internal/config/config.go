package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	LogLevel    string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration

	DedupBackend  string
	DedupCapacity int
	DedupTTL      time.Duration
	RedisAddr     string
	RedisPassword string
}

const (
	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paygate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "paygate"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		GatewayBaseURL:       getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayKeyID:         strings.TrimSpace(getenv("GATEWAY_KEY_ID", "")),
		GatewayKeySecret:     strings.TrimSpace(getenv("GATEWAY_KEY_SECRET", "")),
		GatewayWebhookSecret: strings.TrimSpace(getenv("GATEWAY_WEBHOOK_SECRET", "")),
		GatewayTimeout:       getenvDuration("GATEWAY_TIMEOUT", 15*time.Second),

		DedupBackend:  normalizeDedupBackend(getenv("DEDUP_BACKEND", DedupBackendMemory)),
		DedupCapacity: int(getenvInt64("DEDUP_CAPACITY", 1000)),
		DedupTTL:      getenvDuration("DEDUP_TTL", 24*time.Hour),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
	}
}

func normalizeDedupBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DedupBackendRedis:
		return DedupBackendRedis
	default:
		return DedupBackendMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
