package recitation

import (
	"math"

	"github.com/antzucaro/matchr"
)

// annotateSimilarity gives every substitution in items its own Jaro-Winkler
// similarity value, rounded to three decimals.
func annotateSimilarity(items []AlignmentItem) {
	for i := range items {
		if items[i].Type != ItemSubstitution {
			continue
		}
		items[i].Similarity = ptr(Similarity(items[i].Expected(), items[i].Spoken()))
	}
}

// Similarity returns the Jaro-Winkler similarity of two words in [0, 1],
// rounded to three decimals. Two empty words are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	s := matchr.JaroWinkler(a, b, false)
	return math.Round(s*1000) / 1000
}
