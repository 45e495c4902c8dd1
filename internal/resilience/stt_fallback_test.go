package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/tartil/pkg/provider/stt"
	sttmock "github.com/MrWong99/tartil/pkg/provider/stt/mock"
)

var wavReq = stt.Request{Audio: []byte("RIFF"), Language: "ar"}

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Transcript: &stt.Transcript{Text: "بسم الله"}}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	tr, name, err := fb.TranscribeNamed(context.Background(), wavReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "بسم الله" {
		t.Errorf("text = %q", tr.Text)
	}
	if name != "openai" {
		t.Errorf("name = %q, want openai", name)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Transcript: &stt.Transcript{Text: "الرحمن"}}

	fb := NewSTTFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	tr, name, err := fb.TranscribeNamed(context.Background(), wavReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "whisper" || tr.Text != "الرحمن" {
		t.Errorf("got (%q, %q), want (whisper, الرحمن)", name, tr.Text)
	}
	if got := secondary.TranscribeCalls[0].Req.Language; got != "ar" {
		t.Errorf("forwarded language = %q, want ar", got)
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	_, err := fb.Transcribe(context.Background(), wavReq)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_StopsWhenContextDone(t *testing.T) {
	primary := &sttmock.Provider{Delay: time.Second}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "slow", FallbackConfig{})
	fb.AddFallback("fast", secondary)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fb.Transcribe(ctx, wavReq)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times after deadline, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_NamesAndStates(t *testing.T) {
	fb := NewSTTFallback(&sttmock.Provider{Err: errors.New("down")}, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback("synthetic", &sttmock.Provider{})

	_, _ = fb.Transcribe(context.Background(), wavReq)

	names := fb.Names()
	if len(names) != 2 || names[0] != "openai" || names[1] != "synthetic" {
		t.Errorf("Names() = %v", names)
	}
	states := fb.States()
	if states["openai"] != StateOpen {
		t.Errorf("openai state = %v, want open", states["openai"])
	}
	if states["synthetic"] != StateClosed {
		t.Errorf("synthetic state = %v, want closed", states["synthetic"])
	}
}
