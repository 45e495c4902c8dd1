// Package tajweed provides text-only tajweed heuristics for the recitation
// engine.
//
// The [Heuristic] analyzer never hears the recording. It infers likely
// elongation (madd) and nasalisation (ghunnah) problems from how the spoken
// word differs in length and spelling from the expected one. Its confidence
// values are indicative, not a phonetic measurement.
package tajweed

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/tartil/internal/recitation"
)

// Heuristic infers tajweed issues from an alignment using word length
// ratios and the presence of nasal letters.
type Heuristic struct {
	cfg recitation.ScoringConfig
}

var _ recitation.TajweedAnalyzer = (*Heuristic)(nil)

// New returns a Heuristic using the thresholds in cfg.
func New(cfg recitation.ScoringConfig) *Heuristic {
	return &Heuristic{cfg: cfg}
}

// Analyze returns one result per alignment item, an issue for every result
// with a rule, and the mean confidence as a percentage.
func (h *Heuristic) Analyze(alignment []recitation.AlignmentItem) recitation.TajweedReport {
	report := recitation.TajweedReport{
		Results: make([]recitation.TajweedResult, 0, len(alignment)),
		Issues:  []recitation.TajweedIssue{},
	}

	var sum float64
	for i, item := range alignment {
		res := h.result(item)
		report.Results = append(report.Results, res)
		sum += res.Confidence

		if res.TajweedRule == recitation.RuleNone {
			continue
		}
		word := res.ExpectedWord
		if word == nil || *word == "" {
			word = res.SpokenWord
		}
		report.Issues = append(report.Issues, recitation.TajweedIssue{
			Word:           word,
			Type:           recitation.MistakePronunciation,
			TajweedRule:    res.TajweedRule,
			AlignmentIndex: i,
		})
	}

	if len(report.Results) > 0 {
		report.Score = recitation.Percent(sum / float64(len(report.Results)))
	}
	return report
}

func (h *Heuristic) result(item recitation.AlignmentItem) recitation.TajweedResult {
	switch item.Type {
	case recitation.ItemMissing:
		return recitation.TajweedResult{
			ExpectedWord: item.ExpectedWord,
			Confidence:   h.cfg.MissingConfidence,
		}
	case recitation.ItemExtra, recitation.ItemOrder:
		return recitation.TajweedResult{
			SpokenWord: item.SpokenWord,
			Confidence: h.cfg.ExtraConfidence,
		}
	}

	expected, spoken := item.Expected(), item.Spoken()
	rule := h.madd(expected, spoken)
	if rule == recitation.RuleNone {
		rule = h.ghunnah(expected, spoken)
	}
	return recitation.TajweedResult{
		ExpectedWord: item.ExpectedWord,
		SpokenWord:   item.SpokenWord,
		Confidence:   h.confidence(expected, spoken),
		TajweedRule:  rule,
	}
}

func (h *Heuristic) confidence(expected, spoken string) float64 {
	if expected == "" || spoken == "" {
		return h.cfg.EmptyWordConfidence
	}
	if expected == spoken {
		return h.cfg.ExactConfidence
	}
	diff := math.Abs(1 - lengthRatio(expected, spoken))
	return min(max(1-diff, h.cfg.MinConfidence), h.cfg.MaxConfidence)
}

func (h *Heuristic) madd(expected, spoken string) recitation.TajweedRule {
	if expected == "" || spoken == "" {
		return recitation.RuleNone
	}
	ratio := lengthRatio(expected, spoken)
	switch {
	case ratio >= h.cfg.MaddOverRatio:
		return recitation.RuleMaddOver
	case ratio <= h.cfg.MaddUnderRatio:
		return recitation.RuleMaddUnder
	}
	return recitation.RuleNone
}

func (h *Heuristic) ghunnah(expected, spoken string) recitation.TajweedRule {
	if expected == "" || spoken == "" || expected == spoken {
		return recitation.RuleNone
	}
	if h.cfg.NasalLetters != "" && strings.ContainsAny(expected, h.cfg.NasalLetters) {
		return recitation.RuleGhunnah
	}
	return recitation.RuleNone
}

// lengthRatio is the spoken/expected length in runes. Empty words count as
// length one.
func lengthRatio(expected, spoken string) float64 {
	e := max(utf8.RuneCountInString(expected), 1)
	s := max(utf8.RuneCountInString(spoken), 1)
	return float64(s) / float64(e)
}
