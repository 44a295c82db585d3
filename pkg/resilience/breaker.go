// Package resilience guards outbound calls to the embedding and language
// model services with a circuit breaker and a token-bucket rate limiter.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's position in its closed/open/half-open cycle.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// BreakerOpts tunes a Breaker.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that opens the circuit.
	FailThreshold int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// HalfOpenMax caps in-flight probe calls while half-open.
	HalfOpenMax int
}

// DefaultBreakerOpts suits a chat-latency upstream: trip after five straight
// failures, hold for thirty seconds, probe one call at a time.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker trips after a run of consecutive failures and rejects calls until
// a timed probe succeeds. Safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    State
	streak   int // consecutive failures while closed
	openedAt time.Time
	probes   int // in-flight calls while half-open

	now func() time.Time // swapped in tests
}

func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold < 1 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax < 1 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the current state, moving open to half-open when the
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance()
}

// advance applies the open->half-open transition. Caller holds mu.
func (b *Breaker) advance() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// Call runs fn under the breaker. While open it fails fast with
// ErrCircuitOpen; while half-open it admits up to HalfOpenMax probes, and a
// single probe success closes the circuit.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	switch b.advance() {
	case StateOpen:
		b.mu.Unlock()
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probes++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.streak = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

func (b *Breaker) onFailure() {
	if b.state == StateHalfOpen {
		b.trip()
		return
	}
	b.streak++
	if b.streak >= b.opts.FailThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.streak = 0
	b.openedAt = b.now()
}
