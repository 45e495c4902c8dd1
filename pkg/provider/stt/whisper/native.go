// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/tartil/pkg/audio"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// ErrUnsupportedContainer is returned by NativeProvider for uploads that are
// not WAV files. In-process inference has no decoder for compressed formats.
var ErrUnsupportedContainer = errors.New("whisper: native inference requires a WAV upload")

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all requests.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription when the
// request carries none (e.g., "ar", "en"). Defaults to "ar".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of CPU threads per inference. Zero keeps
// the whisper.cpp default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The model is loaded once and shared across all
// concurrent requests. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes the WAV upload, converts it to 16 kHz mono and runs
// inference with one segment per word so every word carries its own timing.
//
// The cgo call itself cannot be interrupted. When ctx ends first Transcribe
// returns ctx.Err() immediately and the inference finishes in the background.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if !audio.IsWAV(req.Audio) {
		return nil, ErrUnsupportedContainer
	}
	pcm, err := audio.DecodeWAV(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if pcm.IsSilent() {
		return &stt.Transcript{Language: lang, Duration: pcm.Duration()}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	samples := audio.ToFloat32(audio.Convert(pcm, audio.STTFormat).Data)

	type result struct {
		words []stt.WordDetail
		err   error
	}
	done := make(chan result, 1)
	go func() {
		words, err := p.infer(samples, lang, req.ReferenceText)
		done <- result{words: words, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("whisper: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		text := make([]string, len(r.words))
		for i, w := range r.words {
			text[i] = w.Word
		}
		return &stt.Transcript{
			Text:     strings.Join(text, " "),
			Language: lang,
			Duration: pcm.Duration(),
			Words:    r.words,
		}, nil
	}
}

// infer runs whisper.cpp inference using a fresh context and returns one
// WordDetail per non-empty segment.
func (p *NativeProvider) infer(samples []float32, lang, prompt string) ([]stt.WordDetail, error) {
	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	wctx.SetTokenTimestamps(true)
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(1)
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var words []stt.WordDetail
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		words = append(words, stt.WordDetail{
			Word:       text,
			Start:      segment.Start,
			End:        segment.End,
			Confidence: segmentConfidence(segment.Tokens),
		})
	}
	return words, nil
}

// segmentConfidence averages the probability of the text tokens of a
// segment. Special tokens such as "[_BEG_]" are ignored.
func segmentConfidence(tokens []whisperlib.Token) float64 {
	var sum float64
	var n int
	for _, t := range tokens {
		if strings.HasPrefix(t.Text, "[_") {
			continue
		}
		sum += float64(t.P)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
