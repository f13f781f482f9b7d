package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is the sentinel cause carried by errors returned while a
// breaker is open. Callers match it with errors.Is to tell "skipped" from
// "tried and failed".
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks requests until the reset timeout passes.
	StateOpen
	// StateHalfOpen lets a test request probe whether the service recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after repeated failures against an optional
// dependency (reranker, embedder) so searches fail fast and degrade
// instead of stacking timeouts. State transitions are logged under the
// breaker name.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the number of failures before opening the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets the time to wait before attempting recovery.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// NewCircuitBreaker creates a closed breaker with the given name.
// Default: 5 failures, 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState()
}

// currentState folds the reset timeout into the reported state. Must be
// called with at least a read lock held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow reports whether a request should be attempted. Callers that go
// ahead must report the outcome with RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState() != StateOpen
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		slog.Info("circuit_closed", slog.String("breaker", cb.name))
	}
	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure counts a failure and opens the circuit once the count
// reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.maxFailures && cb.state != StateOpen {
		cb.state = StateOpen
		slog.Warn("circuit_open",
			slog.String("breaker", cb.name),
			slog.Int("failures", cb.failures),
			slog.Duration("reset_timeout", cb.resetTimeout))
	}
}

// OpenError builds the coded error for a request skipped because the
// circuit is open. errors.Is(err, ErrCircuitOpen) holds on the result.
func (cb *CircuitBreaker) OpenError() *SihError {
	return New(ErrCodeDependencyUnavailable,
		fmt.Sprintf("%s unavailable, circuit open", cb.name), ErrCircuitOpen).
		WithDetail("breaker", cb.name).
		WithSuggestion(fmt.Sprintf("The %s failed repeatedly and is being skipped. It will be retried after %s.", cb.name, cb.resetTimeout))
}

// Do runs fn through the breaker. When the circuit is open it returns
// OpenError without calling fn. A half-open breaker lets fn run as the
// probe: failure re-opens the circuit, success closes it.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.Allow() {
		return cb.OpenError()
	}

	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}
