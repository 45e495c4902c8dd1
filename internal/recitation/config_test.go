package recitation

import (
	"strings"
	"testing"
)

func TestDefaultScoringConfig(t *testing.T) {
	cfg := DefaultScoringConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"MissingConfidence", cfg.MissingConfidence, 0.3},
		{"ExtraConfidence", cfg.ExtraConfidence, 0.5},
		{"EmptyWordConfidence", cfg.EmptyWordConfidence, 0.4},
		{"ExactConfidence", cfg.ExactConfidence, 0.95},
		{"MinConfidence", cfg.MinConfidence, 0.4},
		{"MaxConfidence", cfg.MaxConfidence, 0.9},
		{"MaddOverRatio", cfg.MaddOverRatio, 1.35},
		{"MaddUnderRatio", cfg.MaddUnderRatio, 0.7},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.NasalLetters != "نم" {
		t.Errorf("NasalLetters = %q", cfg.NasalLetters)
	}
	if cfg.ReplaceExtraWithOrder {
		t.Error("ReplaceExtraWithOrder should default to false")
	}
}

func TestScoringConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScoringConfig)
		wantErr string
	}{
		{"confidence above one", func(c *ScoringConfig) { c.ExactConfidence = 1.2 }, "exact_confidence"},
		{"negative confidence", func(c *ScoringConfig) { c.MissingConfidence = -0.1 }, "missing_confidence"},
		{"min above max", func(c *ScoringConfig) { c.MinConfidence = 0.95 }, "exceeds max_confidence"},
		{"ratios inverted", func(c *ScoringConfig) { c.MaddUnderRatio = 1.5 }, "must be below madd_over_ratio"},
		{"zero under ratio", func(c *ScoringConfig) { c.MaddUnderRatio = 0 }, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
