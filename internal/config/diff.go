package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalyzerChanged is true when the primary or fallback provider entry
	// changed (name, key, model, or endpoint).
	AnalyzerChanged bool

	// CreditsChanged is true when the anonymous policy or signup grant changed.
	CreditsChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !entryEqual(old.Providers.Analyzer, new.Providers.Analyzer) ||
		!entryEqual(old.Providers.Fallback, new.Providers.Fallback) {
		d.AnalyzerChanged = true
	}

	if old.Credits != new.Credits {
		d.CreditsChanged = true
	}

	return d
}

// entryEqual compares the scalar fields of two provider entries.
// Options maps are ignored; changing them requires a restart.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		a.TranscriptionModel == b.TranscriptionModel
}
