package tajweed

import (
	"math"
	"strings"
	"testing"

	"github.com/MrWong99/tartil/internal/recitation"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func pairItem(t recitation.ItemType, expected, spoken string) recitation.AlignmentItem {
	return recitation.AlignmentItem{
		Type:          t,
		ExpectedIndex: intp(0),
		SpokenIndex:   intp(0),
		ExpectedWord:  strp(expected),
		SpokenWord:    strp(spoken),
	}
}

func TestHeuristic_Results(t *testing.T) {
	h := New(recitation.DefaultScoringConfig())

	tests := []struct {
		name     string
		item     recitation.AlignmentItem
		wantConf float64
		wantRule recitation.TajweedRule
	}{
		{
			name:     "exact match",
			item:     pairItem(recitation.ItemMatch, "الرحمن", "الرحمن"),
			wantConf: 0.95,
		},
		{
			name:     "missing word",
			item:     recitation.AlignmentItem{Type: recitation.ItemMissing, ExpectedIndex: intp(0), ExpectedWord: strp("الله")},
			wantConf: 0.3,
		},
		{
			name:     "extra word",
			item:     recitation.AlignmentItem{Type: recitation.ItemExtra, SpokenIndex: intp(0), SpokenWord: strp("كتاب")},
			wantConf: 0.5,
		},
		{
			name:     "ghunnah on nun",
			item:     pairItem(recitation.ItemSubstitution, "الرحمن", "الرحماان"),
			wantConf: 1 - (8.0/6.0 - 1),
			wantRule: recitation.RuleGhunnah,
		},
		{
			name:     "madd over",
			item:     pairItem(recitation.ItemSubstitution, "قال", "قاااال"),
			wantConf: 0.4,
			wantRule: recitation.RuleMaddOver,
		},
		{
			name:     "madd under",
			item:     pairItem(recitation.ItemSubstitution, "الكتاب", "كتب"),
			wantConf: 0.5,
			wantRule: recitation.RuleMaddUnder,
		},
		{
			name:     "same length without nasal letter",
			item:     pairItem(recitation.ItemSubstitution, "الله", "كتاب"),
			wantConf: 0.9,
		},
		{
			name:     "empty spoken word",
			item:     pairItem(recitation.ItemSubstitution, "الله", ""),
			wantConf: 0.4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := h.Analyze([]recitation.AlignmentItem{tt.item})
			if len(rep.Results) != 1 {
				t.Fatalf("len(results) = %d, want 1", len(rep.Results))
			}
			res := rep.Results[0]
			if math.Abs(res.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", res.Confidence, tt.wantConf)
			}
			if res.TajweedRule != tt.wantRule {
				t.Errorf("rule = %q, want %q", res.TajweedRule, tt.wantRule)
			}
			wantIssues := 0
			if tt.wantRule != recitation.RuleNone {
				wantIssues = 1
			}
			if len(rep.Issues) != wantIssues {
				t.Errorf("len(issues) = %d, want %d", len(rep.Issues), wantIssues)
			}
		})
	}
}

// TestHeuristic_MaddThresholds places rune-length ratios exactly on and just
// inside both madd thresholds. The words contain no nasal letters so only
// the madd rule can fire.
func TestHeuristic_MaddThresholds(t *testing.T) {
	h := New(recitation.DefaultScoringConfig())
	word := func(n int) string { return strings.Repeat("ب", n) }

	tests := []struct {
		name          string
		expectedRunes int
		spokenRunes   int
		wantRule      recitation.TajweedRule
	}{
		{"ratio 1.35 is madd over", 20, 27, recitation.RuleMaddOver},
		{"ratio 1.40 is madd over", 20, 28, recitation.RuleMaddOver},
		{"ratio 1.30 is below madd over", 20, 26, recitation.RuleNone},
		{"ratio 0.70 is madd under", 10, 7, recitation.RuleMaddUnder},
		{"ratio 0.71 is above madd under", 100, 71, recitation.RuleNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := h.Analyze([]recitation.AlignmentItem{
				pairItem(recitation.ItemSubstitution, word(tt.expectedRunes), word(tt.spokenRunes)),
			})
			res := rep.Results[0]
			if res.TajweedRule != tt.wantRule {
				t.Errorf("rule = %q, want %q", res.TajweedRule, tt.wantRule)
			}
			ratio := float64(tt.spokenRunes) / float64(tt.expectedRunes)
			wantConf := min(max(1-math.Abs(1-ratio), 0.4), 0.9)
			if math.Abs(res.Confidence-wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", res.Confidence, wantConf)
			}
		})
	}
}

func TestHeuristic_MissingAndExtraSides(t *testing.T) {
	h := New(recitation.DefaultScoringConfig())
	rep := h.Analyze([]recitation.AlignmentItem{
		{Type: recitation.ItemMissing, ExpectedIndex: intp(0), ExpectedWord: strp("الله")},
		{Type: recitation.ItemExtra, SpokenIndex: intp(0), SpokenWord: strp("كتاب")},
	})
	if rep.Results[0].SpokenWord != nil {
		t.Error("missing result has a spoken word")
	}
	if rep.Results[1].ExpectedWord != nil {
		t.Error("extra result has an expected word")
	}
}

func TestHeuristic_IssueAddressing(t *testing.T) {
	h := New(recitation.DefaultScoringConfig())
	rep := h.Analyze([]recitation.AlignmentItem{
		pairItem(recitation.ItemMatch, "بسم", "بسم"),
		pairItem(recitation.ItemSubstitution, "الرحمن", "الرحماان"),
	})
	if len(rep.Issues) != 1 {
		t.Fatalf("len(issues) = %d, want 1", len(rep.Issues))
	}
	is := rep.Issues[0]
	if is.AlignmentIndex != 1 {
		t.Errorf("AlignmentIndex = %d, want 1", is.AlignmentIndex)
	}
	if is.Word == nil || *is.Word != "الرحمن" {
		t.Errorf("Word = %v, want the expected word", is.Word)
	}
	if is.Type != recitation.MistakePronunciation {
		t.Errorf("Type = %q, want pronunciation", is.Type)
	}
}

func TestHeuristic_Score(t *testing.T) {
	h := New(recitation.DefaultScoringConfig())

	rep := h.Analyze([]recitation.AlignmentItem{
		pairItem(recitation.ItemMatch, "بسم", "بسم"),
		pairItem(recitation.ItemMatch, "الله", "الله"),
		{Type: recitation.ItemMissing, ExpectedIndex: intp(2), ExpectedWord: strp("الرحمن")},
	})
	// (0.95 + 0.95 + 0.3) / 3 = 0.7333
	if rep.Score != 73 {
		t.Errorf("Score = %d, want 73", rep.Score)
	}

	empty := h.Analyze(nil)
	if empty.Score != 0 {
		t.Errorf("empty Score = %d, want 0", empty.Score)
	}
	if empty.Results == nil || empty.Issues == nil {
		t.Error("empty report should carry non-nil slices")
	}
}

func TestHeuristic_CustomNasalLetters(t *testing.T) {
	cfg := recitation.DefaultScoringConfig()
	cfg.NasalLetters = ""
	h := New(cfg)
	rep := h.Analyze([]recitation.AlignmentItem{pairItem(recitation.ItemSubstitution, "الرحمن", "الرحماان")})
	if len(rep.Issues) != 0 {
		t.Errorf("issues = %+v, want none when no nasal letters are configured", rep.Issues)
	}
}

func TestHeuristic_ScoreBounds(t *testing.T) {
	cfg := recitation.DefaultScoringConfig()
	h := New(cfg)
	items := []recitation.AlignmentItem{
		pairItem(recitation.ItemSubstitution, "قال", "قاااااااال"),
		{Type: recitation.ItemMissing, ExpectedWord: strp("الله")},
		{Type: recitation.ItemExtra, SpokenWord: strp("")},
	}
	for n := 0; n <= len(items); n++ {
		rep := h.Analyze(items[:n])
		if rep.Score < 0 || rep.Score > 100 {
			t.Fatalf("Score = %d out of bounds", rep.Score)
		}
	}
}
