// internal/errors/service.go - retry, circuit breaking and CLI error reporting
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sentinel errors that drive exit codes and messages
var (
	ErrConfig      = stderrors.New("configuration error")
	ErrStorage     = stderrors.New("snapshot storage error")
	ErrValidation  = stderrors.New("validation error")
	ErrCircuitOpen = stderrors.New("circuit breaker is open")
)

// Retryable is implemented by errors that know whether a retry can help
type Retryable interface {
	Retryable() bool
}

// Service provides retry and circuit breaking for fallible operations
type Service struct {
	retryConfig     RetryConfig
	messageHandler  *MessageHandler
	circuitBreakers map[string]*CircuitBreaker
	clock           clockwork.Clock
	mu              sync.Mutex
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
}

// NewService creates a new error service with the default retry policy
func NewService() *Service {
	return &Service{
		retryConfig:     DefaultRetryConfig(),
		messageHandler:  &MessageHandler{},
		circuitBreakers: make(map[string]*CircuitBreaker),
		clock:           clockwork.NewRealClock(),
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry policy
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// WithClock swaps the clock used for backoff and breakers
func (s *Service) WithClock(clock clockwork.Clock) *Service {
	s.clock = clock
	return s
}

// ExecuteWithRetry runs operation until it succeeds, fails with a
// non-retryable error, or the retry budget is spent.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, s.retryConfig.MaxRetries+1, lastErr)
}

// Breaker returns the named circuit breaker, creating it with cfg on first use
func (s *Service) Breaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.circuitBreakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, cfg, s.clock)
	s.circuitBreakers[name] = cb
	return cb
}

// GetCircuitBreakerStats returns statistics for all circuit breakers
func (s *Service) GetCircuitBreakerStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]interface{}, len(s.circuitBreakers))
	for name, cb := range s.circuitBreakers {
		stats[name] = cb.GetStats()
	}
	return stats
}

// shouldRetry determines if error is retryable
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, ErrCircuitOpen) {
		return false
	}

	var r Retryable
	if stderrors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range []string{
		"timeout", "connection refused", "connection reset",
		"temporary", "service unavailable",
	} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.retryConfig.BaseDelay) * math.Pow(s.retryConfig.BackoffFactor, float64(attempt)))
	if s.retryConfig.MaxDelay > 0 && delay > s.retryConfig.MaxDelay {
		delay = s.retryConfig.MaxDelay
	}
	return delay
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch {
	case stderrors.Is(err, ErrStorage):
		return "Snapshot Storage Error",
			"The showtime snapshot could not be read or written.",
			[]string{
				"Check that the output directory exists and is writable",
				"Run 'showtimescrapexter run' to create a fresh snapshot",
			}
	case stderrors.Is(err, ErrConfig):
		return "Configuration Error",
			"The configuration or theater registry is invalid.",
			[]string{
				"Run 'showtimescrapexter validate <config>' for details",
				"Check YAML indentation (use spaces, not tabs)",
			}
	case stderrors.Is(err, ErrValidation):
		return "Validation Error",
			"The input did not pass validation.",
			[]string{"Check the reported field and fix its value"}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || stderrors.Is(err, context.DeadlineExceeded):
		return "Connection Timeout",
			"A theater page took too long to respond.",
			[]string{
				"Check your internet connection",
				"Increase fetch.timeout or source_timeout in configuration",
			}
	case strings.Contains(errStr, "no such host"):
		return "Domain Not Found",
			"Could not resolve the theater website domain.",
			[]string{"Check the source_url in the theater registry", "Check your DNS settings"}
	case strings.Contains(errStr, "connection refused"):
		return "Connection Refused",
			"The website server refused the connection.",
			[]string{"The server might be temporarily down", "Try again later"}
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return "Rate Limit Exceeded",
			"Requests are being sent too quickly.",
			[]string{"Lower fetch.rate_limit", "Use sequential mode (concurrency: 1)"}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{
			"Try running the command again",
			"Re-run with -v for technical details",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case stderrors.Is(err, ErrConfig):
		return 2
	case stderrors.Is(err, ErrStorage):
		return 5
	case stderrors.Is(err, ErrValidation):
		return 6
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return 2 // Configuration error
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") || strings.Contains(errStr, "host"):
		return 3 // Network error
	case strings.Contains(errStr, "parse"):
		return 4 // Parsing error
	case strings.Contains(errStr, "output") || strings.Contains(errStr, "write"):
		return 5 // Output error
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "429"):
		return 7 // Rate limit error
	default:
		return 1 // General error
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}

	return b.String()
}
