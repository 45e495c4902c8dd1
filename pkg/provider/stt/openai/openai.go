// Package openai provides an STT provider backed by the OpenAI audio
// transcription API.
//
// Requests are sent with the verbose JSON response format and word-level
// timestamp granularity so every recognised word comes back with its start
// and end offsets. Temperature is pinned to zero to keep transcriptions of the
// same recording reproducible.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// DefaultWordConfidence is reported for words when the API does not return a
// per-word confidence, which is always the case for whisper-1.
const DefaultWordConfidence = 0.8

const defaultFileName = "recitation.webm"

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	maxRetries   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries a failed request. Defaults to
// zero: the transcription service falls back to the next provider instead.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new OpenAI STT Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// ModelID returns the transcription model in use.
func (p *Provider) ModelID() string { return p.model }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}

	name := req.FileName
	if name == "" {
		name = defaultFileName
	}
	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(req.Audio), name, req.MimeType),
		Model:                  p.model,
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
		Temperature:            oai.Float(0),
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	raw := resp.RawJSON()
	if raw == "" {
		return &stt.Transcript{Text: resp.Text, Language: req.Language}, nil
	}
	t, err := parseVerbose([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}
	if t.Language == "" {
		t.Language = req.Language
	}
	return t, nil
}

// verboseResponse is the verbose_json body of the transcription endpoint.
type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word       string   `json:"word"`
		Start      float64  `json:"start"`
		End        float64  `json:"end"`
		Confidence *float64 `json:"confidence"`
	} `json:"words"`
}

// parseVerbose converts a verbose_json body into a Transcript. Words without
// a confidence get DefaultWordConfidence.
func parseVerbose(data []byte) (*stt.Transcript, error) {
	var resp verboseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse verbose response: %w", err)
	}

	words := make([]stt.WordDetail, 0, len(resp.Words))
	for _, w := range resp.Words {
		conf := DefaultWordConfidence
		if w.Confidence != nil {
			conf = *w.Confidence
		}
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      stt.FromSeconds(w.Start),
			End:        stt.FromSeconds(w.End),
			Confidence: conf,
		})
	}

	return &stt.Transcript{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: stt.FromSeconds(resp.Duration),
		Words:    words,
	}, nil
}
