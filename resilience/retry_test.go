package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		return "Pen", nil
	})
	if err != nil || result != "Pen" {
		t.Fatalf("expected Pen, got %q, %v", result, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	result, err := Retry(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, stderrors.New("temporary")
		}
		return 7, nil
	})
	if err != nil || result != 7 {
		t.Fatalf("expected 7, got %d, %v", result, err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected OnRetry attempts %v", retried)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	last := stderrors.New("still down")
	calls := 0
	_, err := Retry(context.Background(), fastRetry(4), func(context.Context) (int, error) {
		calls++
		return 0, last
	})
	if !stderrors.Is(err, last) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_SkipsNonRetryableAppError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"not found", errors.NotFound("user", "Zed"), 1},
		{"cancelled", context.Canceled, 1},
		{"upstream", errors.UpstreamFailure("products", stderrors.New("io")), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})
			if !stderrors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
			if calls != tt.calls {
				t.Errorf("expected %d calls, got %d", tt.calls, calls)
			}
		})
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	_, err := Retry(ctx, cfg, func(context.Context) (int, error) {
		return 0, stderrors.New("fail")
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryDeferred_ReRunsColdWork(t *testing.T) {
	calls := 0
	d := deferred.From(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", stderrors.New("flaky")
		}
		return "Hat", nil
	})

	got, err := RetryDeferred(fastRetry(2), d).Await(context.Background())
	if err != nil || got != "Hat" {
		t.Fatalf("expected Hat, got %q, %v", got, err)
	}
	if calls != 2 {
		t.Errorf("expected 2 executions, got %d", calls)
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 25 * time.Millisecond, BackoffFactor: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := calculateBackoff(i+1, cfg); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	cfg := RetryConfig{Jitter: 2}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected jitter error")
	}
}
