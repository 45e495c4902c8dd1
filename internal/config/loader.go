package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "whisper", "whisper-native", "deepgram", "synthetic"},
}

// LoadEnvFiles loads KEY=VALUE pairs from the given .env files into the
// process environment. Variables that are already set win. Missing files are
// skipped; with no paths, ".env" in the working directory is tried.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load env file %q: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Defaults], expands
// ${VAR} references from the environment and validates the result.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces every ${VAR} in data with the value of the environment
// variable VAR, or the empty string when it is unset. Bare $VAR is left
// untouched so that DSN passwords containing '$' survive.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	seen := make(map[string]bool)
	if cfg.Providers.STT.Name != "" {
		seen[cfg.Providers.STT.Name] = true
	}
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("stt", e.Name)
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d]: duplicate provider %q", i, e.Name))
		}
		seen[e.Name] = true
	}
	if len(cfg.Providers.Chain()) == 0 {
		slog.Warn("no STT provider configured; every analysis will use the synthetic transcript")
	}

	// Transcription
	if cfg.Transcription.Timeout < 0 {
		errs = append(errs, fmt.Errorf("transcription.timeout %s must not be negative", cfg.Transcription.Timeout))
	}
	cb := cfg.Transcription.CircuitBreaker
	if cb.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("transcription.circuit_breaker.max_failures %d must not be negative", cb.MaxFailures))
	}
	if cb.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("transcription.circuit_breaker.reset_timeout %s must not be negative", cb.ResetTimeout))
	}
	if cb.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("transcription.circuit_breaker.half_open_max %d must not be negative", cb.HalfOpenMax))
	}

	// Scoring
	if err := cfg.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}

	// Catalog
	for i, p := range cfg.Catalog.AyahFiles {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("catalog.ayah_files[%d] is empty", i))
		}
	}

	// Observe
	if p := cfg.Observe.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("observe.metrics_path %q must start with '/'", p))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in the
// known list for kind. Custom providers registered at runtime are still
// allowed, so this is not an error.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if known, ok := ValidProviderNames[kind]; ok && !slices.Contains(known, name) {
		slog.Warn("unknown provider name", "kind", kind, "name", name, "known", known)
	}
}
