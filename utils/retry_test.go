package utils

import (
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var slept []time.Duration
	r := &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Logger:      NewLogger(),
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := r.Do("flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	// Back-off doubles: 2s then 4s.
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Errorf("backoff schedule wrong: %v", slept)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	r := &RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Second,
		Logger:      NewLogger(),
		Sleep:       func(time.Duration) {},
	}

	base := errors.New("down")
	err := r.Do("dead", func() error { return base })
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, base) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
}
