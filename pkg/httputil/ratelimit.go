package httputil

import (
	"context"
	"sync"
	"time"
)

// Default limits applied when a Limiter field is zero. Thirty requests per
// minute with 200ms spacing keeps a client well inside the public index's
// tolerance.
const (
	DefaultPerMinute   = 30
	DefaultMinInterval = 200 * time.Millisecond
)

// Limiter enforces two independent constraints on outbound requests: a hard
// budget per one-minute window, and a minimum interval between consecutive
// requests. When the window budget is exhausted, Wait suspends the caller
// until the window rolls over; the minimum interval is enforced before every
// call regardless of budget.
//
// All counter state is owned by the Limiter and serialized through its mutex,
// so a single Limiter shared across goroutines never lets the per-minute
// budget be exceeded.
type Limiter struct {
	mu          sync.Mutex
	perMinute   int
	minInterval time.Duration

	windowStart time.Time
	count       int
	next        time.Time // earliest permitted time for the next request

	now func() time.Time // test hook
}

// NewLimiter creates a Limiter with the given per-minute budget and minimum
// inter-request interval. Zero or negative values fall back to the defaults.
func NewLimiter(perMinute int, minInterval time.Duration) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		perMinute:   perMinute,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Wait blocks until the caller may issue a request, or until ctx is done.
// The slot is reserved before sleeping, so concurrent callers queue up rather
// than racing for the same budget.
func (l *Limiter) Wait(ctx context.Context) error {
	d := l.reserve()
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// reserve books the next request slot and returns how long the caller must
// sleep before using it.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.count = 0
	}

	at := now
	if l.next.After(at) {
		at = l.next
	}

	// Budget exhausted: the request runs at the start of the next window.
	if l.count >= l.perMinute {
		rollover := l.windowStart.Add(time.Minute)
		if rollover.After(at) {
			at = rollover
		}
		l.windowStart = rollover
		l.count = 0
	}

	l.count++
	l.next = at.Add(l.minInterval)
	return at.Sub(now)
}
