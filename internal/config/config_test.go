package config

import (
	"os"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	envVars := []string{
		"HTTP_ADDR", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"MANIFEST_URL", "PREFERRED_LANGUAGE", "MIN_UPDATE_PERIOD_MS",
		"BUFFER_AHEAD_SECONDS", "BUFFER_BEHIND_SECONDS",
		"MONGO_URI", "MONGO_DB", "MONGO_COLLECTION",
		"OTEL_SERVICE_NAME", "CORS_ALLOWED_ORIGINS",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8080"},
		{"MetricsAddr", cfg.MetricsAddr, ":9090"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"ManifestURL", cfg.ManifestURL, ""},
		{"PreferredLanguage", cfg.PreferredLanguage, "en"},
		{"MinUpdatePeriod", cfg.MinUpdatePeriod, 3 * time.Second},
		{"BufferAheadSeconds", cfg.BufferAheadSeconds, 0.0},
		{"BufferBehindSeconds", cfg.BufferBehindSeconds, 0.0},
		{"MongoURI", cfg.MongoURI, "mongodb://localhost:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "streamcore"},
		{"MongoCollection", cfg.MongoCollection, "events"},
		{"OTelServiceName", cfg.OTelServiceName, "streamcore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want nil/empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_ADDR":             ":9999",
		"METRICS_ADDR":          ":9100",
		"LOG_LEVEL":             "DEBUG",
		"LOG_FORMAT":            "JSON",
		"MANIFEST_URL":          "https://example.com/live.mpd",
		"PREFERRED_LANGUAGE":    "fr",
		"MIN_UPDATE_PERIOD_MS":  "5000",
		"BUFFER_AHEAD_SECONDS":  "45",
		"BUFFER_BEHIND_SECONDS": "20",
		"MONGO_URI":             "mongodb://remote:27017",
		"MONGO_DB":              "mydb",
		"MONGO_COLLECTION":      "myevents",
		"OTEL_SERVICE_NAME":     "my-player",
		"CORS_ALLOWED_ORIGINS":  "http://localhost:3000, https://example.com",
	})

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":9999"},
		{"MetricsAddr", cfg.MetricsAddr, ":9100"},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"ManifestURL", cfg.ManifestURL, "https://example.com/live.mpd"},
		{"PreferredLanguage", cfg.PreferredLanguage, "fr"},
		{"MinUpdatePeriod", cfg.MinUpdatePeriod, 5 * time.Second},
		{"BufferAheadSeconds", cfg.BufferAheadSeconds, 45.0},
		{"BufferBehindSeconds", cfg.BufferBehindSeconds, 20.0},
		{"MongoURI", cfg.MongoURI, "mongodb://remote:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "mydb"},
		{"MongoCollection", cfg.MongoCollection, "myevents"},
		{"OTelServiceName", cfg.OTelServiceName, "my-player"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	wantOrigins := []string{"http://localhost:3000", "https://example.com"}
	if len(cfg.CORSAllowedOrigins) != len(wantOrigins) {
		t.Fatalf("CORSAllowedOrigins: got %d entries, want %d", len(cfg.CORSAllowedOrigins), len(wantOrigins))
	}
	for i, got := range cfg.CORSAllowedOrigins {
		if got != wantOrigins[i] {
			t.Errorf("CORSAllowedOrigins[%d]: got %q, want %q", i, got, wantOrigins[i])
		}
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
		{"float", "3.14", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvFloat64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback float64
		want     float64
	}{
		{"empty string", "", 1.5, 1.5},
		{"not a number", "nope", 1.5, 1.5},
		{"negative", "-3", 1.5, 1.5},
		{"zero", "0", 1.5, 0},
		{"valid", "45.5", 1.5, 45.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT_VAR", tt.envVal)
			got := getEnvFloat64("TEST_FLOAT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvFloat64(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"values with spaces", " a , b , c ", []string{"a", "b", "c"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"empty entries filtered", "a,,b,,c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCSV(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseCSV(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCSV(%q) returned %d elements, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("TEST_EXISTING", "hello")

	if got := getEnv("TEST_EXISTING", "default"); got != "hello" {
		t.Errorf("getEnv(existing) = %q, want %q", got, "hello")
	}

	t.Setenv("TEST_MISSING_XYZ", "")
	os.Unsetenv("TEST_MISSING_XYZ")
	if got := getEnv("TEST_MISSING_XYZ", "default"); got != "default" {
		t.Errorf("getEnv(missing) = %q, want %q", got, "default")
	}
}

func TestLogLevelCaseInsensitive(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	cfg := LoadConfig()
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "debug")
	}

	t.Setenv("LOG_LEVEL", "Warn")
	cfg = LoadConfig()
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "warn")
	}
}
