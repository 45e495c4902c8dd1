package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newGroup(t *testing.T, cfg FallbackConfig) *FallbackGroup[string] {
	t.Helper()
	fg := NewFallbackGroup("primary", "primary", cfg)
	fg.AddFallback("secondary", "secondary")
	return fg
}

func echo(_ context.Context, v string) (string, error) { return "from-" + v, nil }

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newGroup(t, FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})

	got, name, err := Execute(context.Background(), fg, echo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-primary" || name != "primary" {
		t.Fatalf("got (%q, %q), want (from-primary, primary)", got, name)
	}
}

func TestFallbackGroup_PrimaryFailFallbackSuccess(t *testing.T) {
	fg := newGroup(t, FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})

	got, name, err := Execute(context.Background(), fg, func(ctx context.Context, v string) (string, error) {
		if v == "primary" {
			return "", errTest
		}
		return echo(ctx, v)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-secondary" || name != "secondary" {
		t.Fatalf("got (%q, %q), want (from-secondary, secondary)", got, name)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newGroup(t, FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})

	_, name, err := Execute(context.Background(), fg, func(context.Context, string) (int, error) {
		return 0, errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Errorf("err = %v, want it to wrap the last failure", err)
	}
	if !strings.Contains(err.Error(), "secondary") {
		t.Errorf("err = %q, want the failing entry named", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenProvider(t *testing.T) {
	fg := newGroup(t, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})

	var primaryCalls int
	failPrimary := func(_ context.Context, v string) (string, error) {
		if v == "primary" {
			primaryCalls++
			return "", errTest
		}
		return v, nil
	}
	for range 2 {
		_, _, _ = Execute(context.Background(), fg, failPrimary)
	}

	_, name, err := Execute(context.Background(), fg, failPrimary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "secondary" {
		t.Fatalf("name = %q, want secondary", name)
	}
	if primaryCalls != 2 {
		t.Errorf("primary called %d times, want 2 (circuit should be open)", primaryCalls)
	}
}

func TestFallbackGroup_ContextAlreadyDone(t *testing.T) {
	fg := newGroup(t, FallbackConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, _, err := Execute(ctx, fg, func(context.Context, string) (string, error) {
		called = true
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn called with a cancelled context")
	}
}

func TestFallbackGroup_SharedBreakerConfig(t *testing.T) {
	var opened []string
	fg := newGroup(t, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  1,
			ResetTimeout: time.Hour,
			OnStateChange: func(name string, to State) {
				if to == StateOpen {
					opened = append(opened, name)
				}
			},
		},
	})

	_, _, _ = Execute(context.Background(), fg, func(context.Context, string) (string, error) {
		return "", errTest
	})

	if len(opened) != 2 || opened[0] != "primary" || opened[1] != "secondary" {
		t.Errorf("opened = %v, want [primary secondary]", opened)
	}
}
