package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL    = 10 * time.Minute
	defaultMaxClients = 10000
)

// LimitConfig bounds how often one client may fetch the table.
// A non-positive RequestsPerSecond disables limiting.
type LimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
	MaxClients        int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps a token bucket per client address.
type ClientLimiter struct {
	cfg LimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*clientBucket
}

// NewClientLimiter returns nil when cfg disables limiting.
func NewClientLimiter(cfg LimitConfig) *ClientLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(math.Ceil(cfg.RequestsPerSecond))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	return &ClientLimiter{cfg: cfg, now: time.Now, buckets: make(map[string]*clientBucket)}
}

// Allow consumes a token for client.
func (l *ClientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}
	if client == "" {
		client = "unknown"
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[client]
	if !ok {
		l.evictLocked(now)
		bucket = &clientBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[client] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// Clients is the number of tracked addresses.
func (l *ClientLimiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictLocked drops idle clients, then the least recently seen while full.
func (l *ClientLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.IdleTTL)
	for key, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}

	for len(l.buckets) >= l.cfg.MaxClients {
		oldestKey := ""
		var oldest time.Time
		for key, bucket := range l.buckets {
			if oldestKey == "" || bucket.lastSeen.Before(oldest) {
				oldestKey, oldest = key, bucket.lastSeen
			}
		}
		delete(l.buckets, oldestKey)
	}
}

func (l *ClientLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}

	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/l.cfg.RequestsPerSecond))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(util.GetIP(r)) {
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
