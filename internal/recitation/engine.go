package recitation

import (
	"errors"
	"fmt"

	"github.com/MrWong99/tartil/pkg/arabic"
)

// Engine runs the full analysis pipeline for one ayah: normalisation,
// alignment, order detection, scoring, tajweed analysis and mistake
// compilation. An Engine is immutable once built and safe for concurrent
// use.
type Engine struct {
	cfg     ScoringConfig
	tajweed TajweedAnalyzer
}

// NewEngine validates cfg and returns an Engine that delegates tajweed
// inspection to analyzer.
func NewEngine(cfg ScoringConfig, analyzer TajweedAnalyzer) (*Engine, error) {
	if analyzer == nil {
		return nil, errors.New("recitation: tajweed analyzer must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recitation: invalid scoring config: %w", err)
	}
	return &Engine{cfg: cfg, tajweed: analyzer}, nil
}

// Config returns the scoring thresholds the engine was built with.
func (e *Engine) Config() ScoringConfig { return e.cfg }

// Analyze compares expectedText with the transcription t. It never fails:
// empty or non-Arabic input simply produces an empty alignment and zero
// scores.
func (e *Engine) Analyze(expectedText string, t Transcription) AnalysisResult {
	expected := arabic.Tokenize(expectedText)
	spoken := arabic.Tokenize(t.Text)

	alignment := Align(expected, spoken)
	differences := e.differences(alignment, expected)
	annotateSimilarity(alignment)
	annotateSimilarity(differences)
	report := e.tajweed.Analyze(alignment)
	if report.Results == nil {
		report.Results = []TajweedResult{}
	}
	if report.Issues == nil {
		report.Issues = []TajweedIssue{}
	}

	t.Words = append(make([]WordTimestamp, 0, len(t.Words)), t.Words...)

	return AnalysisResult{
		Ayah:          expectedText,
		Accuracy:      Score(len(expected), differences),
		Transcription: t,
		Differences:   differences,
		Tajweed:       report,
		TajweedScore:  report.Score,
		Mistakes:      CompileMistakes(differences, report.Issues, alignment, t.Words),
		Alignment:     alignment,
	}
}

// differences lists every non-match alignment item followed by the order
// issues. With ReplaceExtraWithOrder the order issue takes the place of its
// extra item instead.
func (e *Engine) differences(alignment []AlignmentItem, expected []string) []AlignmentItem {
	diffs := make([]AlignmentItem, 0, len(alignment))
	for _, item := range alignment {
		if item.IsDifference() {
			diffs = append(diffs, item)
		}
	}

	order := DetectOrderIssues(alignment, expected)
	if !e.cfg.ReplaceExtraWithOrder {
		return append(diffs, order...)
	}

	moved := make(map[int]AlignmentItem, len(order))
	for _, o := range order {
		moved[*o.SpokenIndex] = o
	}
	for i, d := range diffs {
		if d.Type != ItemExtra || d.SpokenIndex == nil {
			continue
		}
		if o, ok := moved[*d.SpokenIndex]; ok {
			diffs[i] = o
		}
	}
	return diffs
}
