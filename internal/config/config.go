// Package config loads streaming-core process settings from the
// environment, using the usual getEnv/getEnvInt64-style loading with
// lower-cased log level/format.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting a streamcore process (the demo player binary
// or an embedding host) reads at startup. Nothing here is re-read after
// LoadConfig returns; a process that wants to pick up changes restarts.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	ManifestURL       string
	PreferredLanguage string

	// MinUpdatePeriod is loaded from the environment; no component in this
	// module reads it (the Coordinator's live refresh loop keeps its own
	// fixed 3s floor).
	MinUpdatePeriod time.Duration

	// BufferAheadSeconds/BufferBehindSeconds are loaded from the
	// environment; no component in this module reads them, and every
	// Stream uses internal/stream.DefaultWindow.
	BufferAheadSeconds  float64
	BufferBehindSeconds float64

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	OTelServiceName string

	CORSAllowedOrigins []string
}

// LoadConfig reads Config from the environment, substituting defaults for
// anything unset or invalid.
func LoadConfig() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		ManifestURL:       getEnv("MANIFEST_URL", ""),
		PreferredLanguage: getEnv("PREFERRED_LANGUAGE", "en"),

		MinUpdatePeriod: time.Duration(getEnvInt64("MIN_UPDATE_PERIOD_MS", 3000)) * time.Millisecond,

		BufferAheadSeconds:  getEnvFloat64("BUFFER_AHEAD_SECONDS", 0),
		BufferBehindSeconds: getEnvFloat64("BUFFER_BEHIND_SECONDS", 0),

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "streamcore"),
		MongoCollection: getEnv("MONGO_COLLECTION", "events"),

		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "streamcore"),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// parseCSV splits a comma-separated list, trims whitespace around each
// entry, and drops empty entries. Returns nil for an empty/blank input.
func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
