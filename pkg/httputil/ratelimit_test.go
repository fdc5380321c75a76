package httputil

import (
	"context"
	"testing"
	"time"
)

// fakeClock lets tests drive the limiter's view of time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration)   { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock                 { return &fakeClock{t: time.Unix(1000, 0)} }
func withClock(l *Limiter, c *fakeClock) *Limiter {
	l.now = c.now
	return l
}

func TestLimiter_MinIntervalSpacing(t *testing.T) {
	clock := newFakeClock()
	l := withClock(NewLimiter(30, 200*time.Millisecond), clock)

	if d := l.reserve(); d != 0 {
		t.Fatalf("first reserve() = %v, want 0", d)
	}
	if d := l.reserve(); d != 200*time.Millisecond {
		t.Errorf("second reserve() = %v, want 200ms", d)
	}
	if d := l.reserve(); d != 400*time.Millisecond {
		t.Errorf("third reserve() = %v, want 400ms", d)
	}
}

func TestLimiter_WindowBudgetExhaustion(t *testing.T) {
	clock := newFakeClock()
	l := withClock(NewLimiter(3, time.Nanosecond), clock)

	for i := 0; i < 3; i++ {
		if d := l.reserve(); d > time.Millisecond {
			t.Fatalf("reserve %d suspended for %v inside budget", i, d)
		}
	}

	// Fourth request must be pushed to the window rollover.
	d := l.reserve()
	if d < 55*time.Second || d > time.Minute {
		t.Errorf("over-budget reserve() = %v, want near full window", d)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	clock := newFakeClock()
	l := withClock(NewLimiter(2, time.Nanosecond), clock)

	l.reserve()
	l.reserve()

	clock.advance(61 * time.Second)

	if d := l.reserve(); d != 0 {
		t.Errorf("reserve() after window elapsed = %v, want 0", d)
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(1, time.Nanosecond)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() over budget with expiring context returned nil")
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.perMinute != DefaultPerMinute {
		t.Errorf("perMinute = %d, want %d", l.perMinute, DefaultPerMinute)
	}
	if l.minInterval != DefaultMinInterval {
		t.Errorf("minInterval = %v, want %v", l.minInterval, DefaultMinInterval)
	}
}
