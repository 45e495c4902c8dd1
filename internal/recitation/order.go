package recitation

// DetectOrderIssues reports extra spoken tokens that also occur somewhere in
// the expected sequence. Such a token was most likely recited in the wrong
// place rather than invented. Each hit is returned as a copy of the extra
// item retyped to [ItemOrder]; the alignment itself is left untouched.
func DetectOrderIssues(alignment []AlignmentItem, expected []string) []AlignmentItem {
	positions := make(map[string][]int, len(expected))
	for i, tok := range expected {
		positions[tok] = append(positions[tok], i)
	}

	var issues []AlignmentItem
	for _, item := range alignment {
		if item.Type != ItemExtra {
			continue
		}
		word := item.Spoken()
		if word == "" {
			continue
		}
		if _, ok := positions[word]; !ok {
			continue
		}
		moved := item
		moved.Type = ItemOrder
		issues = append(issues, moved)
	}
	return issues
}
