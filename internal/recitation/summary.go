package recitation

import (
	"cmp"
	"math"
	"slices"
)

// Unknown stands in for a mistake word or type the client did not supply.
const Unknown = "unknown"

// Summarize rolls per-ayah results into a session summary. Scores are the
// rounded means of the entries' scores. Mistakes sharing word, type and
// tajweed rule are grouped and every group seen at least twice is reported,
// most frequent first. The result does not depend on the order of analyses.
func Summarize(analyses []SessionEntry) SessionSummary {
	summary := SessionSummary{RepeatedMistakes: []RepeatedMistake{}}
	if len(analyses) == 0 {
		return summary
	}

	type key struct {
		word, typ string
		rule      TajweedRule
	}
	var accSum, tajSum float64
	counts := make(map[key]int)
	for _, a := range analyses {
		accSum += finite(a.Accuracy)
		tajSum += finite(a.TajweedScore)
		for _, m := range a.Mistakes {
			k := key{word: deref(m.Word), typ: m.Type, rule: m.TajweedRule}
			if k.word == "" {
				k.word = Unknown
			}
			if k.typ == "" {
				k.typ = Unknown
			}
			counts[k]++
		}
	}

	n := float64(len(analyses))
	summary.Accuracy = wholePercent(accSum / n)
	summary.TajweedScore = wholePercent(tajSum / n)

	for k, c := range counts {
		if c < 2 {
			continue
		}
		summary.RepeatedMistakes = append(summary.RepeatedMistakes, RepeatedMistake{
			Word:        k.word,
			Type:        k.typ,
			TajweedRule: k.rule,
			Count:       c,
		})
	}
	slices.SortFunc(summary.RepeatedMistakes, func(a, b RepeatedMistake) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Word, b.Word),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.TajweedRule, b.TajweedRule),
		)
	})
	return summary
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
