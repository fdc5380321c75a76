package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// coalesceGrace is how long a completed resolution remains available to
// immediately-following identical requests without a fresh cache read.
const coalesceGrace = 60 * time.Second

// flightGroup deduplicates concurrent identical work and keeps successful
// results around for a grace period. Failures are never retained; the next
// caller retries from scratch.
type flightGroup struct {
	group singleflight.Group

	mu     sync.Mutex
	recent map[string]recentResult
	grace  time.Duration

	now func() time.Time // test hook
}

type recentResult struct {
	res *Result
	at  time.Time
}

func newFlightGroup(grace time.Duration) *flightGroup {
	return &flightGroup{
		recent: make(map[string]recentResult),
		grace:  grace,
		now:    time.Now,
	}
}

// do returns the result for key, either from the grace window, by joining an
// in-flight execution, or by running fn itself. All concurrent callers of
// the same key receive the same result.
func (f *flightGroup) do(ctx context.Context, key string, fn func() (*Result, error)) (*Result, error) {
	f.mu.Lock()
	if r, ok := f.recent[key]; ok {
		if f.now().Sub(r.at) < f.grace {
			f.mu.Unlock()
			return r.res, nil
		}
		delete(f.recent, key)
	}
	f.mu.Unlock()

	ch := f.group.DoChan(key, func() (any, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		f.remember(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		// The execution keeps running for the remaining waiters.
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// remember records a completed result and schedules its removal after the
// grace period.
func (f *flightGroup) remember(key string, res *Result) {
	at := f.now()
	f.mu.Lock()
	f.recent[key] = recentResult{res: res, at: at}
	f.mu.Unlock()

	time.AfterFunc(f.grace, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r, ok := f.recent[key]; ok && r.at.Equal(at) {
			delete(f.recent, key)
		}
	})
}
