package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port           string   // default: 3001
	AllowedOrigins []string // CORS allow-list

	// Storage
	DataDir        string // profiles.json and profiles/<id>/docs live here
	MaxUploadBytes int64  // default: 5 MiB
	MaxUploadFiles int64  // documents per upload, default: 10
	PricingFile    string // optional YAML of per-million rates merged over the defaults

	// Providers
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Rate Limiting
	RedisAddr           string // optional; in-process limiter when empty
	DefaultRateLimitTPM int64  // tokens per minute per client, default: 100000; 0 disables

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
	LogLevel             string
	LogFormat            string // "text" or "json"
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "3001"),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "https://localhost:3000,https://localhost:3001")),
		DataDir:              getEnv("DATA_DIR", "."),
		PricingFile:          os.Getenv("PRICING_FILE"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "none"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.MaxUploadBytes, err = getInt("MAX_UPLOAD_BYTES", 5<<20); err != nil {
		return nil, err
	}
	if cfg.MaxUploadFiles, err = getInt("MAX_UPLOAD_FILES", 10); err != nil {
		return nil, err
	}
	if cfg.DefaultRateLimitTPM, err = getInt("DEFAULT_RATE_LIMIT_TPM", 100000); err != nil {
		return nil, err
	}

	// Validation
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.MaxUploadFiles <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_FILES must be positive")
	}
	if cfg.DefaultRateLimitTPM < 0 {
		return nil, fmt.Errorf("DEFAULT_RATE_LIMIT_TPM must not be negative")
	}
	switch cfg.OTELExporterType {
	case "stdout", "otlp", "none":
	default:
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_TYPE: %q", cfg.OTELExporterType)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
