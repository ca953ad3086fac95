// internal/errors/breaker.go
package errors

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior.
// A zero ResetTimeout keeps a tripped breaker open for good.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// CircuitBreaker stops calls to a dependency after repeated failures
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	clock           clockwork.Clock
	state           CircuitBreakerState
	failures        int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	mu              sync.Mutex
}

// NewCircuitBreaker creates a closed breaker. A nil clock uses the real one.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, clock clockwork.Clock) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		clock:        clock,
		state:        CircuitClosed,
	}
}

// Name returns the breaker's name
func (cb *CircuitBreaker) Name() string { return cb.name }

// CanExecute checks if circuit breaker allows execution
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.resetTimeout > 0 && cb.clock.Now().After(cb.nextAttemptTime) {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records successful execution
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records failed execution; a failure while half-open reopens
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.clock.Now()

	if cb.failures >= cb.maxFailures || cb.state == CircuitHalfOpen {
		cb.open()
	}
}

// Trip opens the breaker immediately, regardless of the failure count
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.clock.Now()
	cb.open()
}

// Reset closes the breaker and clears the failure count
func (cb *CircuitBreaker) Reset() {
	cb.RecordSuccess()
}

func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.nextAttemptTime = cb.clock.Now().Add(cb.resetTimeout)
}

// GetState returns current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             cb.state.String(),
		"failures":          cb.failures,
		"max_failures":      cb.maxFailures,
		"last_failure_time": cb.lastFailureTime,
		"next_attempt_time": cb.nextAttemptTime,
		"reset_timeout":     cb.resetTimeout,
	}
}
