package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteRetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	})

	attempts := 0
	errTransient := errors.New("file locked")
	err := exec.Execute(context.Background(), "spreadsheet.open", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, func(err error) Classification {
		return Classification{Retryable: errors.Is(err, errTransient), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	})

	attempts := 0
	errTransient := errors.New("partially materialized")
	err := exec.Execute(context.Background(), "spreadsheet.open", func(context.Context) error {
		attempts++
		return errTransient
	}, func(error) Classification {
		return Classification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected the last attempt error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	})

	attempts := 0
	errCorrupt := errors.New("not a zip archive")
	err := exec.Execute(context.Background(), "spreadsheet.open", func(context.Context) error {
		attempts++
		return errCorrupt
	}, func(error) Classification {
		return Classification{Retryable: false, RecordFailure: true}
	})
	if !errors.Is(err, errCorrupt) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errTransient := errors.New("locked")
	attempts := 0
	err := exec.Execute(ctx, "spreadsheet.open", func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	}, func(error) Classification {
		return Classification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected underlying error after cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop the retry loop, got %d attempts", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:             1,
		InitialBackoff:          1 * time.Millisecond,
		MaxBackoff:              1 * time.Millisecond,
		Multiplier:              2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("storage unavailable")
	classify := func(error) Classification {
		return Classification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "store.insert", func(context.Context) error {
			return errDown
		}, classify)
	}

	err := exec.Execute(context.Background(), "store.insert", func(context.Context) error {
		return nil
	}, classify)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}
