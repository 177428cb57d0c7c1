package config_test

import (
	"testing"

	"github.com/petspeakapp/petspeak/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Providers: config.ProvidersConfig{
			Analyzer: config.ProviderEntry{Name: "openai", Model: "gpt-4o"},
		},
		Credits: config.CreditsConfig{
			Anonymous:   config.AnonymousUngated,
			SignupGrant: 5,
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.AnalyzerChanged || d.CreditsChanged {
		t.Errorf("identical configs should produce an empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.AnalyzerChanged || d.CreditsChanged {
		t.Error("only the log level changed")
	}
}

func TestDiff_AnalyzerModelChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.Analyzer.Model = "gpt-4o-mini"

	d := config.Diff(old, new)
	if !d.AnalyzerChanged {
		t.Error("AnalyzerChanged should be true for a model change")
	}
}

func TestDiff_FallbackAdded(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.Fallback = config.ProviderEntry{Name: "anyllm", Model: "llama3"}

	d := config.Diff(old, new)
	if !d.AnalyzerChanged {
		t.Error("AnalyzerChanged should be true when a fallback is added")
	}
}

func TestDiff_CreditsChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Credits.SignupGrant = 10

	d := config.Diff(old, new)
	if !d.CreditsChanged {
		t.Error("CreditsChanged should be true")
	}
	if d.LogLevelChanged || d.AnalyzerChanged {
		t.Error("only credits changed")
	}
}
