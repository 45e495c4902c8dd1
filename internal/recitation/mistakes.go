package recitation

// CompileMistakes merges alignment differences and tajweed issues into the
// flat mistake list presented to the learner. Differences come first, in
// their given order, followed by tajweed issues. Entries are not
// deduplicated: a substituted word may also appear as a tajweed finding.
//
// Timestamps are looked up in words by spoken index. Items without a spoken
// side, or whose index falls outside words, get a nil timestamp.
func CompileMistakes(differences []AlignmentItem, issues []TajweedIssue, alignment []AlignmentItem, words []WordTimestamp) []Mistake {
	mistakes := make([]Mistake, 0, len(differences)+len(issues))

	for _, d := range differences {
		if d.Type == ItemMatch {
			continue
		}
		mistakes = append(mistakes, Mistake{
			Word:      firstWord(d.ExpectedWord, d.SpokenWord),
			Type:      string(d.Type),
			Timestamp: startOf(d.SpokenIndex, words),
			Severity:  severityOf(d.Type),
		})
	}

	for _, is := range issues {
		var spoken *int
		if is.AlignmentIndex >= 0 && is.AlignmentIndex < len(alignment) {
			spoken = alignment[is.AlignmentIndex].SpokenIndex
		}
		mistakes = append(mistakes, Mistake{
			Word:        is.Word,
			Type:        is.Type,
			TajweedRule: is.TajweedRule,
			Timestamp:   startOf(spoken, words),
			Severity:    SeverityMedium,
		})
	}
	return mistakes
}

func severityOf(t ItemType) Severity {
	switch t {
	case ItemMissing:
		return SeverityHigh
	case ItemSubstitution:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func startOf(idx *int, words []WordTimestamp) *float64 {
	if idx == nil || *idx < 0 || *idx >= len(words) {
		return nil
	}
	return ptr(words[*idx].Start)
}

// firstWord returns the first non-nil word, copied so the mistake does not
// alias the alignment.
func firstWord(words ...*string) *string {
	for _, w := range words {
		if w != nil {
			return ptr(*w)
		}
	}
	return nil
}
