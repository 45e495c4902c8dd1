package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ScoringChanged is true if any engine threshold changed.
	ScoringChanged bool

	// ScoringFields names the changed scoring keys by their YAML name.
	ScoringFields []string

	// RestartRequired lists top-level sections that changed but are only
	// read at startup.
	RestartRequired []string
}

// Changed reports whether any reloadable field changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ScoringChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	o, n := old.Scoring, new.Scoring
	fields := []struct {
		name    string
		changed bool
	}{
		{"missing_confidence", o.MissingConfidence != n.MissingConfidence},
		{"extra_confidence", o.ExtraConfidence != n.ExtraConfidence},
		{"empty_word_confidence", o.EmptyWordConfidence != n.EmptyWordConfidence},
		{"exact_confidence", o.ExactConfidence != n.ExactConfidence},
		{"min_confidence", o.MinConfidence != n.MinConfidence},
		{"max_confidence", o.MaxConfidence != n.MaxConfidence},
		{"madd_over_ratio", o.MaddOverRatio != n.MaddOverRatio},
		{"madd_under_ratio", o.MaddUnderRatio != n.MaddUnderRatio},
		{"nasal_letters", o.NasalLetters != n.NasalLetters},
		{"replace_extra_with_order", o.ReplaceExtraWithOrder != n.ReplaceExtraWithOrder},
	}
	for _, f := range fields {
		if f.changed {
			d.ScoringFields = append(d.ScoringFields, f.name)
		}
	}
	d.ScoringChanged = len(d.ScoringFields) > 0

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.MaxUploadBytes != new.Server.MaxUploadBytes {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Transcription.Timeout != new.Transcription.Timeout ||
		old.Transcription.Language != new.Transcription.Language ||
		old.Transcription.CircuitBreaker.MaxFailures != new.Transcription.CircuitBreaker.MaxFailures ||
		old.Transcription.CircuitBreaker.ResetTimeout != new.Transcription.CircuitBreaker.ResetTimeout ||
		old.Transcription.CircuitBreaker.HalfOpenMax != new.Transcription.CircuitBreaker.HalfOpenMax {
		d.RestartRequired = append(d.RestartRequired, "transcription")
	}
	if old.Catalog.PostgresDSN != new.Catalog.PostgresDSN || !slices.Equal(old.Catalog.AyahFiles, new.Catalog.AyahFiles) {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if old.Observe != new.Observe {
		d.RestartRequired = append(d.RestartRequired, "observe")
	}

	return d
}

// providersEqual compares provider chains by the fields that affect
// construction. Options maps are compared by key set only.
func providersEqual(a, b ProvidersConfig) bool {
	ca, cb := a.Chain(), b.Chain()
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		x, y := ca[i], cb[i]
		if x.Name != y.Name || x.APIKey != y.APIKey || x.BaseURL != y.BaseURL || x.Model != y.Model {
			return false
		}
		if len(x.Options) != len(y.Options) {
			return false
		}
		for k := range x.Options {
			if _, ok := y.Options[k]; !ok {
				return false
			}
		}
	}
	return true
}
