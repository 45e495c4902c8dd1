// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the tartil recitation service.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/tartil/internal/recitation"
	"github.com/MrWong99/tartil/internal/resilience"
)

// LogLevel controls log verbosity for the tartil server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its [slog.Level]. Unknown or empty levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultMaxUploadBytes is the upload limit used when server.max_upload_bytes
// is unset: 25 MiB.
const DefaultMaxUploadBytes int64 = 25 << 20

// Config is the root configuration structure for tartil.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Transcription TranscriptionConfig `yaml:"transcription"`

	// Scoring holds the engine thresholds. Omitted keys keep their defaults.
	Scoring recitation.ScoringConfig `yaml:"scoring"`

	Catalog CatalogConfig `yaml:"catalog"`
	Observe ObserveConfig `yaml:"observe"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls log verbosity. Reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps the size of an analyse request. Zero selects
	// [DefaultMaxUploadBytes].
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// ProvidersConfig selects the speech-to-text providers. STT is tried first,
// then each entry of STTFallbacks in order.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// Chain returns the configured providers in the order they should be tried,
// skipping entries without a name.
func (p ProvidersConfig) Chain() []ProviderEntry {
	var out []ProviderEntry
	if p.STT.Name != "" {
		out = append(out, p.STT)
	}
	for _, e := range p.STTFallbacks {
		if e.Name != "" {
			out = append(out, e)
		}
	}
	return out
}

// ProviderEntry is the configuration block of one STT provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// Supports ${VAR} expansion.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For the
	// whisper HTTP provider it is the whisper.cpp server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "nova-2"), or the model file path for whisper-native.
	Model string `yaml:"model"`

	// Options holds provider-specific settings not covered above.
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] when it is a string, or "".
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptionInt returns Options[key] as an int when it is numeric, or def.
func (e ProviderEntry) OptionInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// TranscriptionConfig tunes the transcription service wrapped around the
// provider chain.
type TranscriptionConfig struct {
	// Timeout bounds one transcription across the whole chain. Zero keeps
	// the service default.
	Timeout time.Duration `yaml:"timeout"`

	// Language is the default language hint. Empty keeps "ar".
	Language string `yaml:"language"`

	// CircuitBreaker configures the breaker placed in front of every
	// provider in the chain.
	CircuitBreaker resilience.CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CatalogConfig selects where reference ayahs come from. With a PostgresDSN
// the Postgres store is used and AyahFiles are imported into it; otherwise
// the files are loaded into memory.
type CatalogConfig struct {
	AyahFiles   []string `yaml:"ayah_files"`
	PostgresDSN string   `yaml:"postgres_dsn"`
}

// ObserveConfig holds telemetry settings.
type ObserveConfig struct {
	// ServiceName is reported as the OTel service name. Empty keeps "tartil".
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where the Prometheus endpoint is mounted. Empty keeps
	// "/metrics".
	MetricsPath string `yaml:"metrics_path"`
}

// Defaults returns a config with every default filled in. [LoadFromReader]
// decodes on top of it so that omitted keys keep these values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			LogLevel:       LogInfo,
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Transcription: TranscriptionConfig{
			Timeout:  30 * time.Second,
			Language: "ar",
		},
		Scoring: recitation.DefaultScoringConfig(),
		Observe: ObserveConfig{
			ServiceName: "tartil",
			MetricsPath: "/metrics",
		},
	}
}
