package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreaker rejects calls after a run of consecutive failures, then
// allows a probe call once the reset timeout passes. It protects the RDAP
// aggregator from being hammered while it is refusing service.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Execute runs fn unless the circuit is open. Only transient errors count
// toward the failure threshold; a success closes the circuit.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if time.Since(cb.openedAt) >= cb.resetTimeout {
		// Half-open: let one probe through.
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !IsTransient(err) {
		cb.failures = 0
		if cb.open {
			cb.open = false
			zap.L().Info("circuit closed", zap.String("breaker", cb.name))
		}
		return
	}

	cb.failures++
	if cb.failures >= cb.failureThreshold && !cb.open {
		cb.open = true
		cb.openedAt = time.Now()
		zap.L().Warn("circuit opened",
			zap.String("breaker", cb.name),
			zap.Int("consecutive_failures", cb.failures),
		)
	} else if cb.open {
		// Failed probe: stay open for another reset window.
		cb.openedAt = time.Now()
	}
}

// Open reports whether the circuit is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open && time.Since(cb.openedAt) < cb.resetTimeout
}
