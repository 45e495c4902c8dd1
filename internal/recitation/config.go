package recitation

import (
	"errors"
	"fmt"
)

// ScoringConfig collects every empirical threshold used by the engine. The
// defaults reproduce the behaviour learners and mentors are calibrated to;
// change them only together with the client-side score bands.
type ScoringConfig struct {
	// MissingConfidence is the tajweed confidence assigned to a word the
	// learner skipped.
	MissingConfidence float64 `yaml:"missing_confidence"`

	// ExtraConfidence is the tajweed confidence assigned to a word that has
	// no expected counterpart.
	ExtraConfidence float64 `yaml:"extra_confidence"`

	// EmptyWordConfidence is used when either side of a pair is empty.
	EmptyWordConfidence float64 `yaml:"empty_word_confidence"`

	// ExactConfidence is used when both words are identical.
	ExactConfidence float64 `yaml:"exact_confidence"`

	// MinConfidence and MaxConfidence clamp the length-ratio confidence of
	// two different words.
	MinConfidence float64 `yaml:"min_confidence"`
	MaxConfidence float64 `yaml:"max_confidence"`

	// MaddOverRatio is the spoken/expected length ratio at or above which an
	// over-elongation is reported.
	MaddOverRatio float64 `yaml:"madd_over_ratio"`

	// MaddUnderRatio is the ratio at or below which an under-elongation is
	// reported.
	MaddUnderRatio float64 `yaml:"madd_under_ratio"`

	// NasalLetters lists the letters whose presence in the expected word
	// makes a mismatch count as a ghunnah issue.
	NasalLetters string `yaml:"nasal_letters"`

	// ReplaceExtraWithOrder drops an extra difference when it is reported as
	// an order issue instead of listing both.
	ReplaceExtraWithOrder bool `yaml:"replace_extra_with_order"`
}

// DefaultScoringConfig returns the stock thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MissingConfidence:   0.3,
		ExtraConfidence:     0.5,
		EmptyWordConfidence: 0.4,
		ExactConfidence:     0.95,
		MinConfidence:       0.4,
		MaxConfidence:       0.9,
		MaddOverRatio:       1.35,
		MaddUnderRatio:      0.7,
		NasalLetters:        "نم",
	}
}

// Validate checks that every threshold is in range and that the bounds are
// ordered. It returns all problems joined into one error.
func (c ScoringConfig) Validate() error {
	var errs []error
	unit := []struct {
		name string
		v    float64
	}{
		{"missing_confidence", c.MissingConfidence},
		{"extra_confidence", c.ExtraConfidence},
		{"empty_word_confidence", c.EmptyWordConfidence},
		{"exact_confidence", c.ExactConfidence},
		{"min_confidence", c.MinConfidence},
		{"max_confidence", c.MaxConfidence},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			errs = append(errs, fmt.Errorf("scoring.%s %.2f is out of range [0, 1]", u.name, u.v))
		}
	}
	if c.MinConfidence > c.MaxConfidence {
		errs = append(errs, fmt.Errorf("scoring.min_confidence %.2f exceeds max_confidence %.2f", c.MinConfidence, c.MaxConfidence))
	}
	if c.MaddUnderRatio <= 0 {
		errs = append(errs, errors.New("scoring.madd_under_ratio must be positive"))
	}
	if c.MaddUnderRatio >= c.MaddOverRatio {
		errs = append(errs, fmt.Errorf("scoring.madd_under_ratio %.2f must be below madd_over_ratio %.2f", c.MaddUnderRatio, c.MaddOverRatio))
	}
	return errors.Join(errs...)
}
