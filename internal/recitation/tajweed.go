package recitation

// TajweedAnalyzer inspects an alignment and reports per-word pronunciation
// confidence together with the tajweed rules it believes were broken.
//
// Implementations receive the full alignment, matches included, and must
// return exactly one [TajweedResult] per alignment item. Issues reference
// the alignment by index so the mistake compiler can place them on the
// recording.
type TajweedAnalyzer interface {
	Analyze(alignment []AlignmentItem) TajweedReport
}

// TajweedAnalyzerFunc adapts a plain function to [TajweedAnalyzer].
type TajweedAnalyzerFunc func(alignment []AlignmentItem) TajweedReport

// Analyze calls f(alignment).
func (f TajweedAnalyzerFunc) Analyze(alignment []AlignmentItem) TajweedReport {
	return f(alignment)
}
