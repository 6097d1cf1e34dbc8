package rest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// ipLimiter applies a token bucket per client address and periodically
// evicts idle entries.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter returns nil, which allows everything, when rps or burst is
// not positive.
func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &ipLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		byKey: make(map[string]*limiterEntry),
	}
}

func (l *ipLimiter) allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}
