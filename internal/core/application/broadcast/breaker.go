package broadcast

import (
	"sync"
	"time"
)

// Breaker thresholds.
const (
	breakerFailureThreshold = 3
	breakerCooldown         = 2 * time.Minute
)

// circuitState tracks one topic's failure history.
type circuitState struct {
	failures    int
	lastFailure time.Time
	open        bool
	probing     bool
}

// CircuitBreaker suppresses publishes to topics that keep failing. Each topic
// has its own circuit: three consecutive failures open it, and after a
// two-minute cooldown exactly one probe publish is let through. A successful
// probe closes the circuit; a failed one restarts the cooldown.
//
// Suppression is not an error condition for callers: a suppressed publish is
// simply skipped and never advances any send bookkeeping.
type CircuitBreaker struct {
	mu     sync.Mutex
	states map[string]*circuitState
	now    func() time.Time
}

// NewCircuitBreaker creates a breaker on the wall clock.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithClock(time.Now)
}

// NewCircuitBreakerWithClock creates a breaker with an injectable clock.
func NewCircuitBreakerWithClock(now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{
		states: make(map[string]*circuitState),
		now:    now,
	}
}

// Allow reports whether a publish on the topic may proceed. While the
// circuit is open it returns false until the cooldown has elapsed, then true
// exactly once to admit the half-open probe; further calls return false until
// the probe's outcome is recorded.
func (b *CircuitBreaker) Allow(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[topic]
	if !ok || !state.open {
		return true
	}

	if state.probing {
		return false
	}

	if b.now().Sub(state.lastFailure) < breakerCooldown {
		return false
	}

	state.probing = true
	return true
}

// RecordSuccess closes the topic's circuit and resets its failure count.
func (b *CircuitBreaker) RecordSuccess(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, topic)
}

// RecordFailure counts one failed publish. The third consecutive failure
// opens the circuit; a failed probe re-opens it and restarts the cooldown.
func (b *CircuitBreaker) RecordFailure(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[topic]
	if !ok {
		state = &circuitState{}
		b.states[topic] = state
	}

	state.failures++
	state.lastFailure = b.now()
	state.probing = false
	if state.failures >= breakerFailureThreshold {
		state.open = true
	}
}

// Reset drops the topic's circuit entirely, used when its lease is released.
func (b *CircuitBreaker) Reset(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, topic)
}
