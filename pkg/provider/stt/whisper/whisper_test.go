package whisper_test

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/tartil/pkg/audio"
	"github.com/MrWong99/tartil/pkg/provider/stt"
	"github.com/MrWong99/tartil/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// received captures what the mock server saw for a single request.
type received struct {
	fields   map[string]string
	filename string
	file     []byte
}

// newMockServer creates a test server that responds to POST /inference with
// body. It increments *callCount on every matched request and stores the
// parsed form in *got.
func newMockServer(t *testing.T, status int, body string, callCount *atomic.Int32, got *received) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if got != nil {
			if err := r.ParseMultipartForm(8 << 20); err == nil {
				got.fields = map[string]string{}
				for k, v := range r.MultipartForm.Value {
					got.fields[k] = strings.Join(v, ",")
				}
				if f, hdr, err := r.FormFile("file"); err == nil {
					got.file, _ = io.ReadAll(f)
					got.filename = hdr.Filename
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// makeSpeechWAV generates a WAV file holding a 440 Hz sine wave whose RMS is
// well above the silence threshold.
func makeSpeechWAV(samples, rate, channels int) []byte {
	const amplitude = 10_000.0 // RMS ≈ 7071, well above 300
	buf := make([]byte, samples*2*channels)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(buf[(i*channels+ch)*2:], uint16(v))
		}
	}
	return audio.EncodeWAV(audio.PCM{Data: buf, Format: audio.Format{SampleRate: rate, Channels: channels}})
}

const verboseBody = `{
  "task": "transcribe",
  "language": "arabic",
  "duration": 1.5,
  "text": " بسم الله",
  "segments": [
    {"id": 0, "text": " بسم الله", "start": 0.0, "end": 1.5, "words": [
      {"word": " بسم", "start": 0.1, "end": 0.5, "probability": 0.93},
      {"word": " الله", "start": 0.6, "end": 1.2, "probability": 0.88}
    ]}
  ]
}`

// ---- provider construction --------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	p, err := whisper.New("http://localhost:8080",
		whisper.WithModel("large-v3"),
		whisper.WithLanguage("ar"),
		whisper.WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_VerboseJSON(t *testing.T) {
	var got received
	srv := newMockServer(t, http.StatusOK, verboseBody, nil, &got)

	p, _ := whisper.New(srv.URL+"/", whisper.WithModel("large-v3"))
	tr, err := p.Transcribe(context.Background(), stt.Request{
		Audio:         makeSpeechWAV(16000, 16000, 1),
		FileName:      "ayah.wav",
		Language:      "ar",
		ReferenceText: "بسم الله",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if tr.Text != "بسم الله" {
		t.Errorf("Text = %q, want trimmed text", tr.Text)
	}
	if tr.Language != "arabic" {
		t.Errorf("Language = %q, want arabic", tr.Language)
	}
	if tr.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", tr.Duration)
	}
	if len(tr.Words) != 2 {
		t.Fatalf("len(Words) = %d, want 2", len(tr.Words))
	}
	if tr.Words[0].Word != "بسم" || tr.Words[0].Start != 100*time.Millisecond || tr.Words[0].Confidence != 0.93 {
		t.Errorf("word 0 = %+v", tr.Words[0])
	}

	for k, v := range map[string]string{
		"response_format": "verbose_json",
		"language":        "ar",
		"model":           "large-v3",
		"prompt":          "بسم الله",
	} {
		if got.fields[k] != v {
			t.Errorf("form field %q = %q, want %q", k, got.fields[k], v)
		}
	}
}

func TestTranscribe_ConvertsWAVTo16kMono(t *testing.T) {
	var got received
	srv := newMockServer(t, http.StatusOK, verboseBody, nil, &got)

	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: makeSpeechWAV(48000, 48000, 2)}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	pcm, err := audio.DecodeWAV(got.file)
	if err != nil {
		t.Fatalf("server received invalid WAV: %v", err)
	}
	if pcm.Format != audio.STTFormat {
		t.Errorf("uploaded format = %s, want %s", pcm.Format, audio.STTFormat)
	}
	if got.filename != "audio.wav" {
		t.Errorf("filename = %q, want audio.wav", got.filename)
	}
}

func TestTranscribe_NonWAVForwardedUntouched(t *testing.T) {
	var got received
	srv := newMockServer(t, http.StatusOK, `{"text":"بسم"}`, nil, &got)

	p, _ := whisper.New(srv.URL)
	upload := []byte("OggS fake opus payload")
	tr, err := p.Transcribe(context.Background(), stt.Request{Audio: upload, FileName: "ayah.ogg"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if string(got.file) != string(upload) || got.filename != "ayah.ogg" {
		t.Errorf("server got %q as %q, want original upload", got.file, got.filename)
	}
	if tr.Text != "بسم" || len(tr.Words) != 0 {
		t.Errorf("transcript = %+v", tr)
	}
	if tr.Language != "ar" {
		t.Errorf("Language = %q, want provider default ar", tr.Language)
	}
}

func TestTranscribe_SegmentsWithoutWords(t *testing.T) {
	body := `{"text":"بسم الله الرحمن","segments":[{"text":"بسم الله الرحمن","start":0,"end":3}]}`
	srv := newMockServer(t, http.StatusOK, body, nil, nil)

	p, _ := whisper.New(srv.URL)
	tr, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(tr.Words) != 3 {
		t.Fatalf("len(Words) = %d, want 3", len(tr.Words))
	}
	if tr.Words[2].Start != 2*time.Second || tr.Words[2].End != 3*time.Second {
		t.Errorf("word 2 timing = %v-%v, want 2s-3s", tr.Words[2].Start, tr.Words[2].End)
	}
}

func TestTranscribe_SilentWAVSkipsServer(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, http.StatusOK, verboseBody, &calls, nil)

	p, _ := whisper.New(srv.URL)
	silent := audio.EncodeWAV(audio.PCM{Data: make([]byte, 32000), Format: audio.STTFormat})
	tr, err := p.Transcribe(context.Background(), stt.Request{Audio: silent})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) for silence-only audio; want 0", n)
	}
	if tr.Text != "" || tr.Duration != time.Second {
		t.Errorf("transcript = %+v, want empty text lasting 1s", tr)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := newMockServer(t, http.StatusInternalServerError, "model not loaded", nil, nil)

	p, _ := whisper.New(srv.URL)
	_, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error %q lacks status or body", err)
	}
}

func TestTranscribe_InvalidJSON(t *testing.T) {
	srv := newMockServer(t, http.StatusOK, "<html>", nil, nil)
	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, _ := whisper.New("http://localhost:1")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	srv := newMockServer(t, http.StatusOK, verboseBody, nil, nil)
	p, _ := whisper.New(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, stt.Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
