package recitation

// Align computes a minimum-edit-distance alignment between the expected and
// the spoken token sequences.
//
// Every substitution, insertion and deletion costs one and an exact match
// costs nothing. When several paths share the minimal cost the backtrace
// prefers a match, then a substitution, then a missing token, then an extra
// token. The result lists the alignment left to right and accounts for each
// token of both sequences exactly once.
func Align(expected, spoken []string) []AlignmentItem {
	n, m := len(expected), len(spoken)

	// dp[i][j] is the edit distance between expected[:i] and spoken[:j].
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		dp[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if expected[i-1] == spoken[j-1] {
				cost = 0
			}
			dp[i][j] = min(dp[i-1][j-1]+cost, dp[i-1][j]+1, dp[i][j-1]+1)
		}
	}

	items := make([]AlignmentItem, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && expected[i-1] == spoken[j-1] && dp[i][j] == dp[i-1][j-1]:
			items = append(items, pair(ItemMatch, expected, spoken, i-1, j-1))
			i--
			j--
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1:
			items = append(items, pair(ItemSubstitution, expected, spoken, i-1, j-1))
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			items = append(items, AlignmentItem{
				Type:          ItemMissing,
				ExpectedIndex: ptr(i - 1),
				ExpectedWord:  ptr(expected[i-1]),
			})
			i--
		default:
			items = append(items, AlignmentItem{
				Type:        ItemExtra,
				SpokenIndex: ptr(j - 1),
				SpokenWord:  ptr(spoken[j-1]),
			})
			j--
		}
	}

	for l, r := 0, len(items)-1; l < r; l, r = l+1, r-1 {
		items[l], items[r] = items[r], items[l]
	}
	return items
}

func pair(t ItemType, expected, spoken []string, ei, si int) AlignmentItem {
	return AlignmentItem{
		Type:          t,
		ExpectedIndex: ptr(ei),
		SpokenIndex:   ptr(si),
		ExpectedWord:  ptr(expected[ei]),
		SpokenWord:    ptr(spoken[si]),
	}
}
