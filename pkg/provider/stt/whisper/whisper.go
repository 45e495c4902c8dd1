// Package whisper provides local whisper.cpp-backed STT providers.
//
// Provider connects to a running whisper-server binary, which exposes a REST
// API at POST /inference, and asks for the verbose JSON response format so
// that word timings come back alongside the text. NativeProvider runs the
// model in-process through the cgo bindings instead.
//
// whisper.cpp expects 16 kHz mono input. WAV uploads are decoded and
// converted before they are sent; other containers are forwarded untouched
// and rely on the server having been started with --convert.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("ar"),
//	)
//	t, err := p.Transcribe(ctx, stt.Request{Audio: wav, FileName: "ayah.wav"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/tartil/pkg/audio"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

const (
	defaultLanguage    = "ar"
	defaultTimeout     = 60 * time.Second
	defaultUploadName  = "audio.wav"
	maxErrorBodyLength = 512
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "large-v3", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server when the
// request carries none (e.g., "ar", "en"). Defaults to "ar".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (60 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a local whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the recording to the whisper.cpp /inference endpoint as
// multipart/form-data and returns the transcript with word timings.
//
// A WAV upload whose samples never rise above audio.SilenceRMS is not sent at
// all; an empty transcript is returned instead.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	upload, name := req.Audio, req.FileName
	if audio.IsWAV(req.Audio) {
		pcm, err := audio.DecodeWAV(req.Audio)
		if err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		if pcm.IsSilent() {
			return &stt.Transcript{Language: lang, Duration: pcm.Duration()}, nil
		}
		upload = audio.EncodeWAV(audio.Convert(pcm, audio.STTFormat))
		name = defaultUploadName
	}
	if name == "" {
		name = defaultUploadName
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(upload); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0.0"},
		{"language", lang},
		{"model", p.model},
		{"prompt", req.ReferenceText},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, truncate(data))
	}

	t, err := parseInference(data)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if t.Language == "" {
		t.Language = lang
	}
	return t, nil
}

// inferenceResponse is the verbose_json body of whisper-server. Older
// servers return only the top-level text.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

// parseInference converts a whisper-server response into a Transcript.
// Segments without word entries are split on whitespace and their duration
// is spread evenly across the words.
func parseInference(data []byte) (*stt.Transcript, error) {
	var resp inferenceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}

	var words []stt.WordDetail
	for _, seg := range resp.Segments {
		if len(seg.Words) > 0 {
			for _, w := range seg.Words {
				text := strings.TrimSpace(w.Word)
				if text == "" {
					continue
				}
				words = append(words, stt.WordDetail{
					Word:       text,
					Start:      stt.FromSeconds(w.Start),
					End:        stt.FromSeconds(w.End),
					Confidence: w.Probability,
				})
			}
			continue
		}
		words = append(words, spreadWords(seg.Text, stt.FromSeconds(seg.Start), stt.FromSeconds(seg.End), 0)...)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" && len(resp.Segments) > 0 {
		parts := make([]string, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			if s := strings.TrimSpace(seg.Text); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	}

	return &stt.Transcript{
		Text:     text,
		Language: resp.Language,
		Duration: stt.FromSeconds(resp.Duration),
		Words:    words,
	}, nil
}

// spreadWords splits text on whitespace and assigns each word an equal share
// of [start, end).
func spreadWords(text string, start, end time.Duration, confidence float64) []stt.WordDetail {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	step := (end - start) / time.Duration(len(fields))
	out := make([]stt.WordDetail, len(fields))
	for i, f := range fields {
		s := start + time.Duration(i)*step
		out[i] = stt.WordDetail{Word: f, Start: s, End: s + step, Confidence: confidence}
	}
	return out
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodyLength {
		return s[:maxErrorBodyLength] + "..."
	}
	return s
}
