// Package server exposes the recitation analysis engine over HTTP.
//
// Routes:
//
//	POST /api/recitation/analyse       multipart upload, one ayah
//	POST /api/recitation/summary       JSON roll-up of a practice session
//	GET  /api/ayahs/{key}              reference ayah by "surah:ayah"
//	GET  /api/surahs/{surah}/ayahs     every stored ayah of a surah
//
// The catalog routes are only registered when a [catalog.Store] is
// configured.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrWong99/tartil/internal/catalog"
	"github.com/MrWong99/tartil/internal/observe"
	"github.com/MrWong99/tartil/internal/recitation"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// DefaultMaxUploadBytes is the audio size limit used when none is set.
const DefaultMaxUploadBytes int64 = 25 << 20

// DefaultLanguage is the language hint used when a request names none.
const DefaultLanguage = "ar"

// formOverhead is the room left for the text fields of an analyse request
// on top of the audio limit.
const formOverhead int64 = 1 << 20

// AllowedAudioTypes lists the accepted upload MIME types.
var AllowedAudioTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/x-wav",
	"audio/webm",
	"audio/ogg",
	"audio/flac",
	"audio/x-m4a",
	"audio/mp4",
}

// Transcriber turns an upload into a transcription. It must not fail; an
// unavailable provider is expected to degrade to a synthetic transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) recitation.Transcription
}

// Analyzer compares a reference ayah with a transcription.
type Analyzer interface {
	Analyze(expectedText string, t recitation.Transcription) recitation.AnalysisResult
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxUploadBytes sets the audio size limit. Non-positive values are ignored.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithCatalog lets analyse requests name an ayah by key and enables the
// catalog routes.
func WithCatalog(store catalog.Store) Option {
	return func(s *Server) { s.catalog = store }
}

// WithMetrics sets the metrics recorder. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDefaultLanguage sets the language hint for requests without one.
func WithDefaultLanguage(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.language = lang
		}
	}
}

// Server holds the API handlers.
type Server struct {
	transcriber Transcriber
	analyzer    Analyzer
	catalog     catalog.Store
	metrics     *observe.Metrics
	maxUpload   int64
	language    string
}

// New returns a Server that transcribes with t and analyses with a.
func New(t Transcriber, a Analyzer, opts ...Option) *Server {
	s := &Server{
		transcriber: t,
		analyzer:    a,
		maxUpload:   DefaultMaxUploadBytes,
		language:    DefaultLanguage,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/recitation/analyse", s.handleAnalyse)
	mux.HandleFunc("POST /api/recitation/summary", s.handleSummary)
	if s.catalog != nil {
		mux.HandleFunc("GET /api/ayahs/{key}", s.handleGetAyah)
		mux.HandleFunc("GET /api/surahs/{surah}/ayahs", s.handleListSurah)
	}
	slog.Debug("api routes registered", "catalog", s.catalog != nil, "max_upload_bytes", s.maxUpload)
}
