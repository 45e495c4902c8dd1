package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New(nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New([]Checker{
		{Name: "catalog", Check: func(_ context.Context) error { return nil }},
		{Name: "transcription", Check: func(_ context.Context) error { return nil }},
	})

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Checks["catalog"] != "ok" {
		t.Errorf("catalog check = %q, want %q", body.Checks["catalog"], "ok")
	}
	if body.Checks["transcription"] != "ok" {
		t.Errorf("transcription check = %q, want %q", body.Checks["transcription"], "ok")
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New([]Checker{
		{Name: "catalog", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		{Name: "transcription", Check: func(_ context.Context) error { return nil }},
	})

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["catalog"] != "fail: connection refused" {
		t.Errorf("catalog check = %q, want %q", body.Checks["catalog"], "fail: connection refused")
	}
	if body.Checks["transcription"] != "ok" {
		t.Errorf("transcription check = %q, want %q", body.Checks["transcription"], "ok")
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New(nil)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersFail(t *testing.T) {
	h := New([]Checker{
		{Name: "catalog", Check: func(_ context.Context) error {
			return errors.New("timeout")
		}},
		{Name: "transcription", Check: func(_ context.Context) error {
			return errors.New("no providers configured")
		}},
	})

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["catalog"] != "fail: timeout" {
		t.Errorf("catalog check = %q", body.Checks["catalog"])
	}
	if body.Checks["transcription"] != "fail: no providers configured" {
		t.Errorf("transcription check = %q", body.Checks["transcription"])
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New([]Checker{
		{Name: "test", Check: func(_ context.Context) error { return nil }},
	}, WithVersion("v1.2.3"))

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New([]Checker{
		{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthz_ReportsVersion(t *testing.T) {
	h := New(nil, WithVersion("v1.2.3"))

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Version != "v1.2.3" {
		t.Errorf("version = %q, want v1.2.3", body.Version)
	}
	if body.Uptime == "" {
		t.Error("uptime is empty")
	}
}

func TestReadyz_AddAfterConstruction(t *testing.T) {
	h := New(nil)
	h.Add(Checker{Name: "late", Check: func(context.Context) error {
		return errors.New("not yet")
	}})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	block := func(context.Context) error {
		started.Done()
		<-release
		return nil
	}
	h := New([]Checker{{Name: "a", Check: block}, {Name: "b", Check: block}})

	go func() {
		started.Wait()
		close(release)
	}()

	done := make(chan struct{})
	go func() {
		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checks did not run concurrently")
	}
}
