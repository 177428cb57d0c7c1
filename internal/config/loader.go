package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known analyzer provider names.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral",
	"groq", "llamacpp", "llamafile", "mock",
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers
	if cfg.Providers.Analyzer.Name == "" {
		errs = append(errs, errors.New("providers.analyzer.name is required"))
	}
	validateProviderName("analyzer", cfg.Providers.Analyzer.Name)
	validateProviderName("fallback", cfg.Providers.Fallback.Name)

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; using in-memory stores, data will not survive restarts")
	}

	// Credits
	if cfg.Credits.Anonymous != "" && !cfg.Credits.Anonymous.IsValid() {
		errs = append(errs, fmt.Errorf("credits.anonymous %q is invalid; valid values: ungated, denied", cfg.Credits.Anonymous))
	}
	if cfg.Credits.SignupGrant < 0 {
		errs = append(errs, fmt.Errorf("credits.signup_grant %d must not be negative", cfg.Credits.SignupGrant))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames,
	)
}
