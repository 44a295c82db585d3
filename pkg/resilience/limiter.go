package resilience

import (
	"context"
	"sync"
	"time"
)

// LimiterOpts tunes a Limiter.
type LimiterOpts struct {
	// Rate is the sustained allowance in tokens per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter is a token bucket. A full bucket absorbs a burst; after that,
// callers are paced at Rate. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time

	now func() time.Time // swapped in tests
}

func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	l := &Limiter{
		rate:  opts.Rate,
		burst: float64(opts.Burst),
		now:   time.Now,
	}
	l.tokens = l.burst
	l.last = time.Now()
	return l
}

// refill credits tokens for the time since the last call. Caller holds mu.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}

// Allow reports whether a call may proceed immediately, consuming a token
// when it does.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Wait blocks until a token is available or ctx is done. The token is
// consumed up front; a cancelled wait does not return it.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.refill()
	l.tokens--
	deficit := -l.tokens
	l.mu.Unlock()

	if deficit <= 0 {
		return nil
	}
	delay := time.Duration(deficit / l.rate * float64(time.Second))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
