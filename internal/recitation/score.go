package recitation

import "math"

// Score returns the accuracy percentage for an ayah of expectedCount tokens.
// Only missing and substituted words count as errors; extra words and words
// recited out of order do not lower the score. An empty ayah scores 0.
func Score(expectedCount int, differences []AlignmentItem) int {
	if expectedCount <= 0 {
		return 0
	}
	errs := 0
	for _, d := range differences {
		if d.Type == ItemMissing || d.Type == ItemSubstitution {
			errs++
		}
	}
	return Percent(float64(expectedCount-errs) / float64(expectedCount))
}

// Percent converts a fraction to a whole percentage clamped to [0, 100].
// NaN maps to 0.
func Percent(f float64) int {
	return wholePercent(f * 100)
}

// wholePercent rounds a percent-scaled value into [0, 100].
func wholePercent(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return clampInt(roundHalfUp(math.Max(0, math.Min(p, 100))), 0, 100)
}

// roundHalfUp rounds x to the nearest integer with halves rounded towards
// positive infinity.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
