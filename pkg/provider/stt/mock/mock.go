// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller sends the expected Request and to
// feed controlled Transcript values or errors back.
//
// Example:
//
//	p := &mock.Provider{Transcript: &stt.Transcript{Text: "بسم الله"}}
//	t, _ := p.Transcribe(ctx, stt.Request{Audio: wav})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe. Audio is copied.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe. If nil and Err is nil, an empty
	// Transcript is returned.
	Transcript *stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, if positive, makes Transcribe wait this long (or until ctx is
	// done, in which case ctx.Err() is returned).
	Delay time.Duration

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	p.mu.Lock()
	cp := req
	cp.Audio = append([]byte(nil), req.Audio...)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: cp})
	delay, err, tr := p.Delay, p.Err, p.Transcript
	p.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return &stt.Transcript{}, nil
	}
	out := *tr
	out.Words = append([]stt.WordDetail(nil), tr.Words...)
	return &out, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
