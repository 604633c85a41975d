package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"DailyBitesserver/internal/domain"
)

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter keeps one token bucket per caller uid. Idle buckets are
// dropped after ttl by a sweep that runs at most once per sweepEvery.
type callerLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*callerBucket
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

func newCallerLimiter(events int, window time.Duration, burst int) *callerLimiter {
	if events <= 0 {
		events = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		buckets:    make(map[string]*callerBucket),
		limit:      rate.Every(window / time.Duration(events)),
		burst:      burst,
		ttl:        10 * time.Minute,
		sweepEvery: time.Minute,
		now:        time.Now,
	}
}

func (l *callerLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

func (l *callerLimiter) sweepLocked(now time.Time) {
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}
}

// retryAfter is the whole number of seconds until one more event is allowed.
func (l *callerLimiter) retryAfter() int {
	secs := int(time.Duration(float64(time.Second) / float64(l.limit)).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (a *api) limitMutations(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.mutationLimiter != nil && !a.mutationLimiter.Allow(CurrentUID(r.Context())) {
			w.Header().Set("Retry-After", strconv.Itoa(a.mutationLimiter.retryAfter()))
			WriteDomainError(w, domain.ErrRateLimited)
			return
		}
		next(w, r)
	}
}
