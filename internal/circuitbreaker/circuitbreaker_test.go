package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/token-price-engine/internal/apperror"
)

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	cb := New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if called {
		t.Error("fn must not run while open")
	}
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestCircuitBreaker_IgnoresDomainMisses(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 1
	cb := New[int](cfg)

	notFound := apperror.New(apperror.CodePoolNotFound)
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, notFound })
		_, _ = cb.Execute(func() (int, error) { return 0, context.Canceled })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("domain misses should not trip the breaker, state=%s", cb.State())
	}
}
