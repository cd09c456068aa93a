package circuitbreaker

import (
	"testing"
	"time"
)

func TestTripsOpenAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatal("must stay closed below the failure threshold")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("must trip open at the failure threshold")
	}
	if cb.AllowRequest() {
		t.Fatal("an open circuit rejects requests before the timeout")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatal("a success must reset the consecutive failure count")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("must trip open")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("expected a probe request after the timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.GetState())
	}

	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Fatal("must wait for the success threshold before closing")
	}
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatal("must close after enough probe successes")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("expected a probe request after the timeout")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("a half-open failure must reopen the circuit")
	}
}

func TestStateChangeCallback(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Minute)

	var transitions [][2]State
	cb.SetStateChangeCallback(func(from, to State) {
		transitions = append(transitions, [2]State{from, to})
	})

	cb.RecordFailure()
	if len(transitions) != 1 || transitions[0] != [2]State{StateClosed, StateOpen} {
		t.Fatalf("expected closed->open transition, got %v", transitions)
	}
}
