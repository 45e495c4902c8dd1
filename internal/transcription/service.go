// Package transcription turns an uploaded recording into the
// [recitation.Transcription] the analysis engine consumes.
//
// A [Service] calls the configured provider chain under a bounded deadline.
// Whenever the chain fails, times out or is not configured at all, the
// service answers with a synthetic transcript derived from the reference
// text instead, so an analysis request never fails because of speech
// recognition.
package transcription

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/tartil/internal/observe"
	"github.com/MrWong99/tartil/internal/recitation"
	"github.com/MrWong99/tartil/pkg/provider/stt"
	"github.com/MrWong99/tartil/pkg/provider/stt/synthetic"
)

const (
	// DefaultTimeout bounds one transcription attempt across the whole chain.
	DefaultTimeout = 30 * time.Second

	// DefaultLanguage is used when a request carries no language hint.
	DefaultLanguage = "ar"

	// SourceFallback marks a transcript produced from the reference text.
	SourceFallback = "fallback"
)

// Fallback reasons recorded on the fallback counter.
const (
	reasonError        = "error"
	reasonTimeout      = "timeout"
	reasonUnconfigured = "unconfigured"
)

// Chain is a provider chain that reports which backend served a request.
// [resilience.STTFallback] implements it.
type Chain interface {
	TranscribeNamed(ctx context.Context, req stt.Request) (*stt.Transcript, string, error)
}

// Single adapts one [stt.Provider] into a [Chain] under the given name.
func Single(name string, p stt.Provider) Chain {
	return single{name: name, p: p}
}

type single struct {
	name string
	p    stt.Provider
}

func (s single) TranscribeNamed(ctx context.Context, req stt.Request) (*stt.Transcript, string, error) {
	tr, err := s.p.Transcribe(ctx, req)
	return tr, s.name, err
}

// Option configures a [Service].
type Option func(*Service)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLanguage overrides DefaultLanguage.
func WithLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithMetrics records latency, provider outcomes and fallbacks on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSynthetic replaces the default synthetic provider.
func WithSynthetic(p *synthetic.Provider) Option {
	return func(s *Service) { s.fallback = p }
}

// Service transcribes recordings and never returns an error. It is safe for
// concurrent use.
type Service struct {
	chain    Chain
	fallback *synthetic.Provider
	timeout  time.Duration
	language string
	metrics  *observe.Metrics
}

// New creates a [Service] over chain. A nil chain makes every call fall
// back to the synthetic transcript.
func New(chain Chain, opts ...Option) *Service {
	s := &Service{
		chain:    chain,
		fallback: synthetic.New(),
		timeout:  DefaultTimeout,
		language: DefaultLanguage,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Configured reports whether a real provider chain is attached.
func (s *Service) Configured() bool { return s.chain != nil }

// Timeout returns the per-call deadline.
func (s *Service) Timeout() time.Duration { return s.timeout }

// Transcribe returns the chain's transcript for req, or the synthetic
// transcript of req.ReferenceText if the chain cannot deliver one within the
// timeout. The same provider is never retried.
func (s *Service) Transcribe(ctx context.Context, req stt.Request) recitation.Transcription {
	if req.Language == "" {
		req.Language = s.language
	}

	ctx, span := observe.StartSpan(ctx, "transcription.Transcribe",
		trace.WithAttributes(
			attribute.String("language", req.Language),
			attribute.Int("audio_bytes", len(req.Audio)),
		),
	)
	defer span.End()

	if s.chain == nil {
		return s.useFallback(ctx, span, req, reasonUnconfigured, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	tr, name, err := s.chain.TranscribeNamed(callCtx, req)
	elapsed := time.Since(start)

	if err == nil && tr == nil {
		err = errors.New("transcription: provider returned no transcript")
	}
	if err != nil {
		reason := reasonError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		if s.metrics != nil {
			if name == "" {
				name = "chain"
			}
			s.metrics.RecordProviderError(ctx, name, "stt")
			s.metrics.RecordProviderRequest(ctx, name, "stt", "error")
		}
		return s.useFallback(ctx, span, req, reason, err)
	}

	if s.metrics != nil {
		s.metrics.STTDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("provider", name)))
		s.metrics.RecordProviderRequest(ctx, name, "stt", "ok")
	}
	span.SetAttributes(
		attribute.String("provider", name),
		attribute.Int("words", len(tr.Words)),
	)
	observe.Logger(ctx).Debug("transcription complete",
		"provider", name,
		"words", len(tr.Words),
		"duration", elapsed)

	return convert(tr, name)
}

func (s *Service) useFallback(ctx context.Context, span trace.Span, req stt.Request, reason string, cause error) recitation.Transcription {
	if s.metrics != nil {
		s.metrics.RecordFallback(ctx, reason)
	}
	span.SetAttributes(
		attribute.String("provider", SourceFallback),
		attribute.String("fallback_reason", reason),
	)
	log := observe.Logger(ctx)
	if cause != nil {
		log.Warn("transcription failed, using fallback", "reason", reason, "error", cause)
	} else {
		log.Debug("no transcription provider configured, using fallback")
	}
	return convert(s.fallback.Generate(req.ReferenceText, req.Language), SourceFallback)
}

// convert maps a provider transcript onto the engine's wire type. Times
// become seconds from the start of the upload.
func convert(tr *stt.Transcript, source string) recitation.Transcription {
	words := make([]recitation.WordTimestamp, len(tr.Words))
	for i, w := range tr.Words {
		words[i] = recitation.WordTimestamp{
			Word:       w.Word,
			Start:      w.Start.Seconds(),
			End:        w.End.Seconds(),
			Confidence: w.Confidence,
		}
	}
	return recitation.Transcription{
		Text:   tr.Text,
		Words:  words,
		Source: source,
	}
}
