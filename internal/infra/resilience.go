// Package infra provides shared infrastructure for the Confluence MCP server:
// a TTL cache, in-flight request coalescing and a circuit breaker.
package infra

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Coalescer collapses identical in-flight calls. While a call for a key is
// running, later callers with the same key wait for and share its result.
type Coalescer[V any] struct {
	mu       sync.Mutex
	inflight map[string]*inflightCall[V]
}

type inflightCall[V any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	result  V
	err     error
	waiters int
}

// NewCoalescer creates an empty Coalescer.
func NewCoalescer[V any]() *Coalescer[V] {
	return &Coalescer[V]{
		inflight: make(map[string]*inflightCall[V]),
	}
}

// Do runs fn unless a call with the same key is already running, in which case it
// waits for that call. It reports whether the result was shared.
//
// fn runs on a context that keeps the first caller's values but not its
// cancellation. That context is canceled once every waiting caller has given
// up. A caller whose own ctx ends returns ctx.Err() without affecting the others.
func (g *Coalescer[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	g.mu.Lock()
	call, shared := g.inflight[key]
	if shared {
		call.waiters++
	} else {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &inflightCall[V]{done: make(chan struct{}), cancel: cancel, waiters: 1}
		g.inflight[key] = call
		go g.run(callCtx, key, call, fn)
	}
	g.mu.Unlock()

	select {
	case <-call.done:
		return call.result, shared, call.err
	case <-ctx.Done():
		g.leave(key, call)
		var zero V
		return zero, shared, ctx.Err()
	}
}

func (g *Coalescer[V]) run(ctx context.Context, key string, call *inflightCall[V], fn func(context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			call.err = fmt.Errorf("coalesced call %q panicked: %v", key, r)
		}
		call.cancel()
		g.forget(key, call)
		close(call.done)
	}()
	call.result, call.err = fn(ctx)
}

// leave drops one waiter and cancels the call when nobody is left to receive it.
func (g *Coalescer[V]) leave(key string, call *inflightCall[V]) {
	g.mu.Lock()
	defer g.mu.Unlock()

	call.waiters--
	if call.waiters == 0 {
		call.cancel()
		if g.inflight[key] == call {
			delete(g.inflight, key)
		}
	}
}

func (g *Coalescer[V]) forget(key string, call *inflightCall[V]) {
	g.mu.Lock()
	if g.inflight[key] == call {
		delete(g.inflight, key)
	}
	g.mu.Unlock()
}

// InFlight returns the number of distinct keys currently running.
func (g *Coalescer[V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// CircuitState represents the current state of the circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing fast, rejecting requests
	CircuitHalfOpen                     // Testing if service recovered
)

func (s CircuitState) String() string {
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

// CircuitBreaker fails fast once Confluence has failed failureThreshold times in a
// row, then lets a few probe requests through after resetTimeout.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	onStateChange    func(from, to CircuitState)
	now              func() time.Time

	state            CircuitState
	consecutiveFails int
	lastFailure      time.Time
	halfOpenCount    int
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithResetTimeout sets how long the circuit stays open before probing.
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.resetTimeout = d
		}
	}
}

// WithHalfOpenMax sets how many probe requests are allowed while half-open.
func WithHalfOpenMax(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMax = n
		}
	}
}

// WithStateChange registers a callback invoked (under the breaker lock) on transitions.
func WithStateChange(fn func(from, to CircuitState)) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// NewCircuitBreaker creates a circuit breaker. Defaults: open after 5 failures,
// probe after 30s, 2 probes.
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
		halfOpenMax:      2,
		now:              time.Now,
		state:            CircuitClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow checks if a request should be allowed through the circuit breaker.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.transition(CircuitHalfOpen)
			cb.halfOpenCount = 1
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false

	default:
		return false
	}
}

// Abort hands back a probe slot taken by Allow when the request ended without
// an outcome, such as a canceled caller. It is a no-op unless half-open.
func (cb *CircuitBreaker) Abort() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen && cb.halfOpenCount > 0 {
		cb.halfOpenCount--
	}
}

// RecordSuccess records a successful request, closing a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.transition(CircuitClosed)
		cb.halfOpenCount = 0
	}
}

// RecordFailure records a failed request, potentially opening the circuit
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFails >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
		cb.halfOpenCount = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
		RetryAt:          cb.lastFailure.Add(cb.resetTimeout),
	}
}

// CircuitBreakerStats contains circuit breaker statistics
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
	RetryAt          time.Time `json:"retry_at,omitempty"`
}

// ErrCircuitOpen is returned when the circuit breaker is open
type ErrCircuitOpen struct {
	State    string
	RetryAt  time.Time
	Failures int
}

func (e *ErrCircuitOpen) Error() string {
	return "circuit breaker is open: Confluence is failing, retry after " + e.RetryAt.Format(time.RFC3339)
}
