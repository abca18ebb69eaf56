// Package circuitbreaker wraps sony/gobreaker with typed results and
// application error codes.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/token-price-engine/internal/apperror"
)

// Config holds breaker settings.
type Config struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// FailureRatio trips the breaker once MinRequests were seen.
	FailureRatio float64
	MinRequests  uint32

	OnStateChange func(name string, from, to gobreaker.State)
	IsSuccessful  func(err error) bool
}

// DefaultConfig returns settings suited to RPC and HTTP upstreams.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
		IsSuccessful:        DefaultIsSuccessful,
	}
}

// DefaultIsSuccessful does not count caller cancellation or domain-level
// misses against the upstream.
func DefaultIsSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch apperror.GetCode(err) {
	case apperror.CodePoolNotFound, apperror.CodeNotFound, apperror.CodeDecodeFailed, apperror.CodeZeroLiquidity,
		apperror.CodeInvalidInput, apperror.CodeAggregatorNoPrice:
		return true
	}
	return false
}

// CircuitBreaker guards calls returning T.
type CircuitBreaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// New creates a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.MinRequests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return cfg.FailureRatio > 0 && ratio >= cfg.FailureRatio
		},
	}

	return &CircuitBreaker[T]{
		name: cfg.Name,
		cb:   gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Execute runs fn unless the breaker is open.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return res, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithCause(err),
			apperror.WithContext(c.name))
	}
	return res, err
}

// Name returns the breaker name.
func (c *CircuitBreaker[T]) Name() string {
	return c.name
}

// State returns the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
