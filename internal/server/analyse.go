package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/tartil/internal/catalog"
	"github.com/MrWong99/tartil/internal/observe"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "server.analyse")
	defer span.End()
	r = r.WithContext(ctx)

	s.metrics.ActiveAnalyses.Add(ctx, 1)
	defer s.metrics.ActiveAnalyses.Add(ctx, -1)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		observe.RecordError(span, err)
		writeError(w, r, multipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "Invalid audio upload", Err: err})
		return
	}
	if file != nil {
		defer file.Close()
	}

	var mimeType string
	if header != nil {
		mimeType, err = audioType(header)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	ayahText, ayahKey, err := s.resolveAyah(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if file == nil {
		writeError(w, r, httpError(http.StatusBadRequest, "Audio file is required"))
		return
	}
	if header.Size > s.maxUpload {
		writeError(w, r, tooLarge(s.maxUpload))
		return
	}

	audio, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "Invalid audio upload", Err: err})
		return
	}
	if int64(len(audio)) > s.maxUpload {
		writeError(w, r, tooLarge(s.maxUpload))
		return
	}
	s.metrics.UploadBytes.Record(ctx, int64(len(audio)))

	language := strings.TrimSpace(r.FormValue("language"))
	if language == "" {
		language = s.language
	}
	span.SetAttributes(
		attribute.String("ayah.key", ayahKey),
		attribute.String("audio.mime_type", mimeType),
		attribute.Int("audio.bytes", len(audio)),
		attribute.String("language", language),
	)

	transcription := s.transcriber.Transcribe(ctx, stt.Request{
		Audio:         audio,
		FileName:      header.Filename,
		MimeType:      mimeType,
		Language:      language,
		ReferenceText: ayahText,
	})

	start := time.Now()
	result := s.analyzer.Analyze(ayahText, transcription)
	s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())

	if ayahKey != "" {
		result.AyahKey = &ayahKey
	}
	s.metrics.RecordScores(ctx, result.Accuracy, result.TajweedScore)
	for _, m := range result.Mistakes {
		s.metrics.RecordMistake(ctx, m.Type, string(m.Severity))
	}

	observe.Logger(ctx).Info("recitation analysed",
		"ayah_key", ayahKey,
		"source", transcription.Source,
		"accuracy", result.Accuracy,
		"tajweed_score", result.TajweedScore,
		"mistakes", len(result.Mistakes),
	)
	writeJSON(w, http.StatusOK, result)
}

// resolveAyah returns the reference text of the request and the ayah key it
// was given, if any. An explicit ayahText always wins over the catalog.
func (s *Server) resolveAyah(r *http.Request) (text, key string, err error) {
	text = strings.TrimSpace(r.FormValue("ayahText"))
	key = strings.TrimSpace(r.FormValue("ayahKey"))
	if text != "" {
		return text, key, nil
	}
	if key == "" || s.catalog == nil {
		return "", "", httpError(http.StatusBadRequest, "ayahText is required")
	}

	ayah, err := s.catalog.Get(r.Context(), key)
	switch {
	case errors.Is(err, catalog.ErrInvalidKey):
		return "", "", &HTTPError{Status: http.StatusBadRequest, Message: "ayahKey is invalid", Details: key, Err: err}
	case errors.Is(err, catalog.ErrNotFound):
		return "", "", &HTTPError{Status: http.StatusNotFound, Message: "Ayah not found", Details: key, Err: err}
	case err != nil:
		return "", "", fmt.Errorf("server: catalog lookup %q: %w", key, err)
	}
	return ayah.Text, key, nil
}

// audioType returns the bare media type of the uploaded file or a 415 when
// it is not an accepted audio type.
func audioType(h *multipart.FileHeader) (string, error) {
	raw := h.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil || !slices.Contains(AllowedAudioTypes, strings.ToLower(mt)) {
		return "", &HTTPError{
			Status:  http.StatusUnsupportedMediaType,
			Message: "Unsupported audio type.",
			Details: raw,
		}
	}
	return strings.ToLower(mt), nil
}

func multipartError(err error) error {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Upload is too large", Err: err}
	case errors.Is(err, http.ErrNotMultipart):
		return &HTTPError{Status: http.StatusBadRequest, Message: "Request must be multipart/form-data", Err: err}
	default:
		return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid multipart form", Err: err}
	}
}

func tooLarge(limit int64) *HTTPError {
	return &HTTPError{
		Status:  http.StatusRequestEntityTooLarge,
		Message: "Audio file is too large",
		Details: map[string]int64{"maxBytes": limit},
	}
}
