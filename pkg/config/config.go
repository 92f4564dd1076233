// Package config loads UBL Gate's runtime configuration from the
// environment, following the teacher's config.Load() pattern: plain
// defaults, os.Getenv overrides, no configuration framework.
package config

import (
	"os"
	"strconv"
)

// Config holds everything a process embedding the pipeline needs to wire
// up storage, idempotency, observability, and the Wasm adapter.
type Config struct {
	LogLevel string

	StoreDriver string // "memory", "postgres", or "sqlite"
	DatabaseURL string

	RedisAddr string // empty disables the Redis idempotency backend

	CASBackend string // "memory" or "s3"
	S3Bucket   string
	S3Region   string

	WasmAdapterMemoryLimitPages uint32
	WasmAdapterMaxExecDuration  int // milliseconds
	WasmAdapterRateLimitPerSec  float64

	OTelServiceName string
	OTelEnabled     bool

	GhostMode bool
}

// Load reads Config from the environment, applying UBL Gate's defaults
// wherever a variable is unset.
func Load() *Config {
	return &Config{
		LogLevel: getenv("UBL_LOG_LEVEL", "INFO"),

		StoreDriver: getenv("UBL_STORE_DRIVER", "memory"),
		DatabaseURL: getenv("UBL_DATABASE_URL", "postgres://ubl@localhost:5432/ublgate?sslmode=disable"),

		RedisAddr: getenv("UBL_REDIS_ADDR", ""),

		CASBackend: getenv("UBL_CAS_BACKEND", "memory"),
		S3Bucket:   getenv("UBL_CAS_S3_BUCKET", ""),
		S3Region:   getenv("UBL_CAS_S3_REGION", "us-east-1"),

		WasmAdapterMemoryLimitPages: uint32(getenvInt("UBL_WASM_MEMORY_PAGES", 16)), // 16 * 64KiB = 1MiB
		WasmAdapterMaxExecDuration:  getenvInt("UBL_WASM_MAX_EXEC_MS", 250),
		WasmAdapterRateLimitPerSec:  getenvFloat("UBL_WASM_RATE_LIMIT", 50.0),

		OTelServiceName: getenv("UBL_OTEL_SERVICE_NAME", "ubl-gate"),
		OTelEnabled:     getenv("UBL_OTEL_ENABLED", "true") == "true",

		GhostMode: getenv("UBL_GHOST_MODE", "false") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
