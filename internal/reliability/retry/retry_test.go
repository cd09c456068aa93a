package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Do(context.Background(), testConfig(), testLogger(), "flaky", func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if result != "ok" || attempts != 3 {
		t.Fatalf("result=%q attempts=%d", result, attempts)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), testConfig(), testLogger(), "doomed", func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("still broken")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "doomed") || !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("error must name the operation and attempt count, got %q", err.Error())
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Do(ctx, testConfig(), testLogger(), "cancelled", func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("never reached")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts on a dead context, got %d", attempts)
	}
}

func TestBackoffIsCappedAtMax(t *testing.T) {
	cfg := testConfig()
	if got := calculateBackoff(0, cfg); got != time.Millisecond {
		t.Fatalf("first backoff = %v, want %v", got, time.Millisecond)
	}
	if got := calculateBackoff(10, cfg); got != cfg.MaxBackoff {
		t.Fatalf("late backoff = %v, want cap %v", got, cfg.MaxBackoff)
	}
}
