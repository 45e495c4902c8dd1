// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// live WebSocket API. It implements the stt.Provider interface.
//
// The whole recording is pushed through a live session followed by a
// CloseStream message; the provider then collects every final result until
// Deepgram closes the connection. WAV uploads are decoded and sent as raw
// linear16 PCM, other containers are sent as-is and left to Deepgram's
// format detection.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/tartil/pkg/audio"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "ar"

	// chunkSize is the number of bytes written per binary frame.
	chunkSize = 32 * 1024
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code for recognition when the
// request carries none (e.g., "ar", "en").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the live API URL. Used to point the provider at a
// proxy or a test server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams the recording to Deepgram and assembles the final
// results into one Transcript.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}

	payload := req.Audio
	var raw *audio.Format
	if audio.IsWAV(req.Audio) {
		pcm, err := audio.DecodeWAV(req.Audio)
		if err != nil {
			return nil, fmt.Errorf("deepgram: %w", err)
		}
		pcm = audio.Convert(pcm, audio.STTFormat)
		payload = pcm.Data
		raw = &pcm.Format
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	wsURL, err := p.buildURL(lang, raw)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeAudio(ctx, conn, payload)
	}()

	t, err := readResults(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}
	if err := <-writeErr; err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}

	conn.Close(websocket.StatusNormalClosure, "transcription complete")
	if t.Language == "" {
		t.Language = lang
	}
	return t, nil
}

// buildURL constructs the Deepgram live endpoint URL. raw is the PCM format
// when linear16 audio is sent, nil for containerised uploads.
func (p *Provider) buildURL(language string, raw *audio.Format) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", language)
	q.Set("punctuate", "false")
	q.Set("interim_results", "false")
	if raw != nil {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(raw.SampleRate))
		q.Set("channels", strconv.Itoa(raw.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// writeAudio sends payload in binary frames followed by CloseStream, which
// asks Deepgram to flush its results and end the session.
func writeAudio(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	for len(payload) > 0 {
		n := min(chunkSize, len(payload))
		if err := conn.Write(ctx, websocket.MessageBinary, payload[:n]); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		payload = payload[n:]
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("write CloseStream: %w", err)
	}
	return nil
}

// readResults collects final results until Deepgram sends its closing
// Metadata message or closes the connection normally.
func readResults(ctx context.Context, conn *websocket.Conn) (*stt.Transcript, error) {
	var (
		parts []string
		words []stt.WordDetail
		end   time.Duration
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("read: %w", err)
		}

		res, kind := parseDeepgramResponse(msg)
		if kind == messageMetadata {
			break
		}
		if kind != messageFinal {
			continue
		}
		if s := strings.TrimSpace(res.text); s != "" {
			parts = append(parts, s)
		}
		words = append(words, res.words...)
		end = max(end, res.end)
	}

	return &stt.Transcript{
		Text:     strings.Join(parts, " "),
		Duration: end,
		Words:    words,
	}, nil
}

// ---- parsing ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results
// or Metadata event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type messageKind int

const (
	messageIgnored messageKind = iota
	messageInterim
	messageFinal
	messageMetadata
)

// result is the useful part of one final Results message.
type result struct {
	text  string
	words []stt.WordDetail
	end   time.Duration
}

// parseDeepgramResponse classifies a raw Deepgram WebSocket message and, for
// Results messages, extracts the first alternative.
func parseDeepgramResponse(data []byte) (result, messageKind) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, messageIgnored
	}
	switch resp.Type {
	case "Metadata":
		return result{}, messageMetadata
	case "Results":
	default:
		return result{}, messageIgnored
	}
	if len(resp.Channel.Alternatives) == 0 {
		return result{}, messageIgnored
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      stt.FromSeconds(w.Start),
			End:        stt.FromSeconds(w.End),
			Confidence: w.Confidence,
		})
	}

	kind := messageInterim
	if resp.IsFinal {
		kind = messageFinal
	}
	return result{
		text:  alt.Transcript,
		words: words,
		end:   stt.FromSeconds(resp.Start + resp.Duration),
	}, kind
}
