package riot

import (
	"context"
	"log"
	"sync"
	"time"
)

// Rate limits for dev key (using conservative values to be safe)
const (
	requestsPerSecond = 15 // Actual: 20
	requestsPer2Min   = 90 // Actual: 100
)

// rateLimiter enforces two sliding windows of request timestamps
type rateLimiter struct {
	mu          sync.Mutex
	perShort    int
	perLong     int
	shortSpan   time.Duration
	longSpan    time.Duration
	shortWindow []time.Time
	longWindow  []time.Time
}

func newRateLimiter(perSecond, per2Min int) *rateLimiter {
	return &rateLimiter{
		perShort:  perSecond,
		perLong:   per2Min,
		shortSpan: time.Second,
		longSpan:  2 * time.Minute,
	}
}

// Wait blocks until another request may be made or ctx is done
func (l *rateLimiter) Wait(ctx context.Context) error {
	for {
		wait := l.reserve(time.Now())
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a request at now and returns 0, or returns how long to wait
func (l *rateLimiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.shortWindow = prune(l.shortWindow, now.Add(-l.shortSpan))
	l.longWindow = prune(l.longWindow, now.Add(-l.longSpan))

	if l.perShort > 0 && len(l.shortWindow) >= l.perShort {
		return l.shortWindow[0].Add(l.shortSpan).Sub(now) + 100*time.Millisecond
	}
	if l.perLong > 0 && len(l.longWindow) >= l.perLong {
		wait := l.longWindow[0].Add(l.longSpan).Sub(now) + 100*time.Millisecond
		log.Printf("[Riot] %d req/2min, waiting %.1fs...", len(l.longWindow), wait.Seconds())
		return wait
	}

	l.shortWindow = append(l.shortWindow, now)
	l.longWindow = append(l.longWindow, now)
	return 0
}

// prune drops timestamps not after cutoff. Windows are kept in time order.
func prune(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}
