package rate

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a key has exhausted its attempt budget.
var ErrRateLimited = errors.New("rate limited")

// Config holds rate limiter tuning parameters. A budget of MaxAttempts
// refills over Cooldown.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a per-key token bucket. Keys are arbitrary strings
// (identifier, identifier+IP, user ID); idle buckets are swept lazily
// so the map stays bounded by active callers.
type Limiter struct {
	cfg   Config
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Limiter{
		cfg:       cfg,
		limit:     rate.Limit(float64(cfg.MaxAttempts) / cfg.Cooldown.Seconds()),
		burst:     cfg.MaxAttempts,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// Allow consumes one attempt for the key. Returns ErrRateLimited when
// the budget is exhausted.
func (l *Limiter) Allow(key string) error {
	if l == nil {
		return nil
	}
	now := time.Now()

	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.Cooldown {
		return
	}
	idle := 2 * l.cfg.Cooldown
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
