// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., OpenAI Whisper,
// Deepgram, or a local whisper.cpp server) and exposes a uniform request/
// response interface. A recitation upload is always a complete recording, so
// providers receive the whole file at once and return a single Transcript
// with word-level timings when the backend supports them.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by providers when a Request carries no audio.
var ErrEmptyAudio = errors.New("stt: audio must not be empty")

// Request describes one recording to transcribe.
type Request struct {
	// Audio is the raw uploaded file (WAV, MP3, WebM, ...). Providers that need
	// raw PCM decode it themselves.
	Audio []byte

	// FileName is the original upload name. Some backends infer the container
	// format from its extension.
	FileName string

	// MimeType is the declared content type of Audio (e.g., "audio/wav").
	MimeType string

	// Language is the BCP-47 language hint (e.g., "ar"). An empty string lets
	// the provider auto-detect the language, if supported.
	Language string

	// ReferenceText is the text the speaker was expected to say. Backends may
	// use it as a prompt; the synthetic provider derives its output from it.
	ReferenceText string
}

// Validate reports whether the request can be sent to a backend.
func (r Request) Validate() error {
	if len(r.Audio) == 0 {
		return ErrEmptyAudio
	}
	return nil
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts the recording in req into text. It blocks until the
	// backend answers or ctx is done.
	//
	// Returns an error if the backend cannot be reached, rejects the request,
	// or answers with something that cannot be parsed. Callers are expected to
	// treat every error as recoverable and fall back to another provider.
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Transcript, error)

// Transcribe calls f(ctx, req).
func (f ProviderFunc) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	return f(ctx, req)
}
