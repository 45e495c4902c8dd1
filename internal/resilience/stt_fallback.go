package resilience

import (
	"context"

	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over a chain of transcription
// backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers another backend, tried after those already added.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in the order they are tried.
func (f *STTFallback) Names() []string { return f.group.Names() }

// States returns the breaker state of every backend keyed by name.
func (f *STTFallback) States() map[string]State { return f.group.States() }

// Transcribe implements [stt.Provider].
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	tr, _, err := f.TranscribeNamed(ctx, req)
	return tr, err
}

// TranscribeNamed transcribes req with the first healthy backend that
// succeeds and also returns that backend's name.
func (f *STTFallback) TranscribeNamed(ctx context.Context, req stt.Request) (*stt.Transcript, string, error) {
	return Execute(ctx, f.group, func(ctx context.Context, p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}
