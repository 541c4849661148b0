package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()
	fail := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); err == nil {
			t.Fatal("expected failure")
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.CurrentState())
	}

	calls := 0
	err := cb.Execute(ctx, func() error { calls++; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if calls != 0 {
		t.Error("open breaker must not invoke the call")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errors.New("boom") })
	cb.Execute(ctx, func() error { return errors.New("boom") })
	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, func() error { return errors.New("boom") })
	cb.Execute(ctx, func() error { return errors.New("boom") })

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed state after interleaved success, got %v", cb.CurrentState())
	}
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errors.New("boom") })
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected open state")
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe should run after cooldown: %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Fatalf("expected half-open after first probe, got %v", cb.CurrentState())
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after success threshold, got %v", cb.CurrentState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	cb.Execute(ctx, func() error { return errors.New("still down") })
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected reopen after failed probe, got %v", cb.CurrentState())
	}
}
