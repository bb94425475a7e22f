package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carepulse-systems/carepulse-stack/common/metrics"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"    // Normal operation
	StateOpen     State = "open"      // Failing, reject requests immediately
	StateHalfOpen State = "half_open" // Probing whether the dependency recovered
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is
// open. Callers can errors.Is against it to distinguish "dependency is down"
// from "this specific request failed".
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOptions configures a CircuitBreaker.
type BreakerOptions struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures while closed.
	FailureThreshold int

	// SuccessThreshold closes the breaker after this many consecutive
	// successes while half-open.
	SuccessThreshold int

	// Timeout is how long the breaker stays open before allowing a probe.
	Timeout time.Duration

	// ResetTimeout is how long a closed breaker remembers failures.
	// Stale failures decay to zero once it elapses.
	ResetTimeout time.Duration
}

// DefaultBreakerOptions returns the standard dependency-guard settings.
func DefaultBreakerOptions() BreakerOptions {
	return BreakerOptions{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		ResetTimeout:     300 * time.Second,
	}
}

// BreakerStats is a point-in-time snapshot of breaker state.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failureCount"`
	SuccessCount    int       `json:"successCount"`
	LastFailureTime time.Time `json:"lastFailureTime"`
}

// CircuitBreaker guards exactly one named external dependency. State never
// leaks across dependencies; construct one breaker per provider.
//
// All state transitions are evaluated lazily on invocation, never by a
// background timer. The struct is safe for concurrent use.
type CircuitBreaker struct {
	name string
	opts BreakerOptions

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	lastFailure  time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a breaker for the named dependency.
func NewCircuitBreaker(name string, opts BreakerOptions) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultBreakerOptions().FailureThreshold
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = DefaultBreakerOptions().SuccessThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOptions().Timeout
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = DefaultBreakerOptions().ResetTimeout
	}
	return &CircuitBreaker{
		name:  name,
		opts:  opts,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs op through the breaker. When the breaker is open the call is
// rejected with an error wrapping ErrCircuitOpen and op is never invoked.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op()
	cb.afterCall(err)
	return err
}

// beforeCall advances lazy state transitions and decides whether the call
// may proceed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	// Stale-failure decay: a closed breaker forgets old failures.
	if cb.state == StateClosed && !cb.lastFailure.IsZero() &&
		now.Sub(cb.lastFailure) >= cb.opts.ResetTimeout {
		cb.failureCount = 0
		cb.lastFailure = time.Time{}
	}

	if cb.state == StateOpen {
		if now.Sub(cb.lastFailure) >= cb.opts.Timeout {
			cb.transition(StateHalfOpen)
			cb.successCount = 0
		} else {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
	}

	return nil
}

// afterCall records the outcome of an executed call.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailure = cb.now()

		switch cb.state {
		case StateHalfOpen:
			// A single failure while probing reopens immediately.
			cb.transition(StateOpen)
			cb.successCount = 0
		case StateClosed:
			if cb.failureCount >= cb.opts.FailureThreshold {
				cb.transition(StateOpen)
			}
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.opts.SuccessThreshold {
			cb.transition(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailure,
	}
}

// Reset forces the breaker back to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastFailure = time.Time{}
}

// transition moves to a new state and records the change. Callers hold mu.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	cb.state = to
	metrics.BreakerTransitions.WithLabelValues(cb.name, string(to)).Inc()
}
