// Package synthetic provides a deterministic STT provider that never talks to
// a backend. It echoes the request's reference text back as the transcript and
// spaces the words evenly so downstream analysis still has timings to work
// with.
//
// It is the last link of every transcription chain: when all real providers
// fail or time out the learner still gets an analysis, scored as a perfect
// recitation of the reference.
package synthetic

import (
	"context"
	"time"

	"github.com/MrWong99/tartil/pkg/arabic"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

const (
	// DefaultWordSpacing is the distance between consecutive word starts.
	DefaultWordSpacing = 600 * time.Millisecond

	// DefaultWordLength is how long each synthetic word lasts.
	DefaultWordLength = 500 * time.Millisecond

	// DefaultConfidence is reported for every synthetic word.
	DefaultConfidence = 0.6
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithWordSpacing overrides DefaultWordSpacing.
func WithWordSpacing(d time.Duration) Option {
	return func(p *Provider) { p.spacing = d }
}

// WithWordLength overrides DefaultWordLength.
func WithWordLength(d time.Duration) Option {
	return func(p *Provider) { p.length = d }
}

// WithConfidence overrides DefaultConfidence.
func WithConfidence(c float64) Option {
	return func(p *Provider) { p.confidence = c }
}

// Provider implements stt.Provider from the reference text alone.
type Provider struct {
	spacing    time.Duration
	length     time.Duration
	confidence float64
}

// New creates a Provider with the default timings.
func New(opts ...Option) *Provider {
	p := &Provider{
		spacing:    DefaultWordSpacing,
		length:     DefaultWordLength,
		confidence: DefaultConfidence,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Transcribe ignores the audio and returns req.ReferenceText verbatim with one
// word entry per normalised token. Word i starts at i*spacing. It fails only
// when ctx is already done.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Generate(req.ReferenceText, req.Language), nil
}

// Generate builds the synthetic transcript for referenceText. It never fails.
func (p *Provider) Generate(referenceText, language string) *stt.Transcript {
	tokens := arabic.Tokenize(referenceText)
	words := make([]stt.WordDetail, len(tokens))
	for i, tok := range tokens {
		start := time.Duration(i) * p.spacing
		words[i] = stt.WordDetail{
			Word:       tok,
			Start:      start,
			End:        start + p.length,
			Confidence: p.confidence,
		}
	}

	var dur time.Duration
	if n := len(words); n > 0 {
		dur = words[n-1].End
	}
	return &stt.Transcript{
		Text:     referenceText,
		Language: language,
		Duration: dur,
		Words:    words,
	}
}
