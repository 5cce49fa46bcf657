package infra

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Hour,
	})

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("request %d rejected while closed", i)
		}
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected OPEN after threshold failures, got %s", cb.GetState())
	}
	if cb.Allow() {
		t.Fatal("open breaker must reject requests")
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("expected OPEN")
	}

	time.Sleep(5 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("expected HALF_OPEN probe to be allowed after timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", cb.GetState())
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected CLOSED after recovery, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_FailureInHalfOpenReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow() // transitions to half-open
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Fatalf("expected re-OPEN, got %s", cb.GetState())
	}
}
