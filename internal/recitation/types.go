// Package recitation implements the recitation analysis engine: it aligns a
// reference ayah with a learner's transcription, classifies the differences,
// scores accuracy, merges tajweed findings into a single mistake list and
// rolls per-ayah results up into a session summary.
//
// Every function in this package is a pure computation over its arguments.
// Results are built fresh per call and never mutated afterwards, so an
// [Engine] may be shared freely between goroutines.
package recitation

import "encoding/json"

// ItemType classifies one correspondence unit between the expected and the
// spoken token sequences.
type ItemType string

const (
	// ItemMatch pairs two identical tokens.
	ItemMatch ItemType = "match"

	// ItemSubstitution pairs an expected token with a different spoken token.
	ItemSubstitution ItemType = "substitution"

	// ItemMissing is an expected token the learner did not say.
	ItemMissing ItemType = "missing"

	// ItemExtra is a spoken token with no expected counterpart.
	ItemExtra ItemType = "extra"

	// ItemOrder is an extra spoken token that does occur somewhere in the
	// expected sequence and therefore most likely was said out of order.
	ItemOrder ItemType = "order"
)

// AlignmentItem is one step of the alignment path. Missing items carry no
// spoken side; extra and order items carry no expected side.
type AlignmentItem struct {
	Type          ItemType `json:"type"`
	ExpectedIndex *int     `json:"expectedIndex"`
	SpokenIndex   *int     `json:"spokenIndex"`
	ExpectedWord  *string  `json:"expectedWord"`
	SpokenWord    *string  `json:"spokenWord"`

	// Similarity is the Jaro-Winkler similarity of the spoken word to the
	// expected word. Only substitutions carry it; it is informational and
	// never influences scoring.
	Similarity *float64 `json:"similarity,omitempty"`
}

// Expected returns the expected word or "" when the item has none.
func (a AlignmentItem) Expected() string { return deref(a.ExpectedWord) }

// Spoken returns the spoken word or "" when the item has none.
func (a AlignmentItem) Spoken() string { return deref(a.SpokenWord) }

// IsDifference reports whether the item is anything other than a match.
func (a AlignmentItem) IsDifference() bool { return a.Type != ItemMatch }

// TajweedRule names a pronunciation rule inferred by a [TajweedAnalyzer].
type TajweedRule string

const (
	RuleNone      TajweedRule = ""
	RuleMaddOver  TajweedRule = "madd_over"
	RuleMaddUnder TajweedRule = "madd_under"
	RuleGhunnah   TajweedRule = "ghunnah"
)

// MarshalJSON encodes [RuleNone] as null.
func (r TajweedRule) MarshalJSON() ([]byte, error) {
	if r == RuleNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts null, a string, or any other JSON value (treated
// as [RuleNone]) so loosely typed client payloads never fail to decode.
func (r *TajweedRule) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*r = RuleNone
		return nil
	}
	*r = TajweedRule(s)
	return nil
}

// Severity ranks how much a [Mistake] matters to the learner.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// MistakePronunciation is the mistake type used for tajweed findings.
const MistakePronunciation = "pronunciation"

// Mistake is one entry of the unified mistake list shown to the learner.
// Timestamp is the start of the spoken word in seconds, or nil when the
// mistake cannot be placed on the recording.
type Mistake struct {
	Word        *string     `json:"word"`
	Type        string      `json:"type"`
	TajweedRule TajweedRule `json:"tajweed_rule"`
	Timestamp   *float64    `json:"timestamp"`
	Severity    Severity    `json:"severity"`
}

// WordTimestamp is a recognised word with its position in the recording,
// in seconds from the start of the upload.
type WordTimestamp struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Transcription is the speech-to-text output the engine analyses.
type Transcription struct {
	Text  string          `json:"text"`
	Words []WordTimestamp `json:"words"`

	// Source names the provider that produced the transcription, or
	// "fallback" when it was synthesised from the reference text.
	Source string `json:"source,omitempty"`
}

// TajweedResult is the per-alignment-item output of a [TajweedAnalyzer].
type TajweedResult struct {
	ExpectedWord *string     `json:"expectedWord"`
	SpokenWord   *string     `json:"spokenWord"`
	Confidence   float64     `json:"confidence"`
	TajweedRule  TajweedRule `json:"tajweed_rule"`
}

// TajweedIssue is a result whose rule is set, addressed by its position in
// the alignment so that a timestamp can be resolved later.
type TajweedIssue struct {
	Word           *string     `json:"word"`
	Type           string      `json:"type"`
	TajweedRule    TajweedRule `json:"tajweed_rule"`
	AlignmentIndex int         `json:"alignmentIndex"`
}

// TajweedReport is the complete output of a [TajweedAnalyzer] run.
type TajweedReport struct {
	Results []TajweedResult `json:"results"`
	Issues  []TajweedIssue  `json:"issues"`
	Score   int             `json:"-"`
}

// AnalysisResult is the per-ayah outcome of [Engine.Analyze].
type AnalysisResult struct {
	Ayah          string          `json:"ayah"`
	AyahKey       *string         `json:"ayahKey"`
	Accuracy      int             `json:"accuracy"`
	Transcription Transcription   `json:"transcription"`
	Differences   []AlignmentItem `json:"differences"`
	Tajweed       TajweedReport   `json:"tajweed"`
	TajweedScore  int             `json:"tajweedScore"`
	Mistakes      []Mistake       `json:"mistakes"`

	// Alignment is the full alignment path including matches.
	Alignment []AlignmentItem `json:"-"`
}

// SessionEntry is the subset of an [AnalysisResult] the session summary
// consumes. Clients post these back, so every field is optional.
type SessionEntry struct {
	Accuracy     float64   `json:"accuracy"`
	TajweedScore float64   `json:"tajweedScore"`
	Mistakes     []Mistake `json:"mistakes"`
}

// RepeatedMistake is a mistake that occurred at least twice in a session.
type RepeatedMistake struct {
	Word        string      `json:"word"`
	Type        string      `json:"type"`
	TajweedRule TajweedRule `json:"tajweed_rule"`
	Count       int         `json:"count"`
}

// SessionSummary rolls a practice session up into averaged scores and the
// list of mistakes the learner keeps repeating.
type SessionSummary struct {
	Accuracy         int               `json:"accuracy"`
	RepeatedMistakes []RepeatedMistake `json:"repeatedMistakes"`
	TajweedScore     int               `json:"tajweedScore"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr[T any](v T) *T { return &v }
