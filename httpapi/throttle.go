package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ThrottleConfig is the per-client-IP token bucket applied to /auth/*.
type ThrottleConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultThrottleConfig allows 30 requests per minute per IP with a burst of 10.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Rate:            rate.Limit(30.0 / 60.0),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Throttle is transport-level flood protection. It is independent of the
// per-email login lockout and never touches it.
type Throttle struct {
	config ThrottleConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewThrottle starts a background sweep of idle entries; call Stop to end it.
func NewThrottle(cfg ThrottleConfig, logger *zap.Logger) *Throttle {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Throttle{
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

func (t *Throttle) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Len returns the number of tracked client IPs.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

// Middleware answers 429 with Retry-After once a client IP exhausts its bucket.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		now := t.now()

		res := t.limiterFor(ip, now).ReserveN(now, 1)
		if !res.OK() {
			writeRateLimited(w, time.Second)
			return
		}
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			t.logger.Warn("client throttled",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			writeRateLimited(w, delay)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) limiterFor(ip string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[ip]; ok {
		l.lastAccess = now
		return l.limiter
	}
	l := &ipLimiter{
		limiter:    rate.NewLimiter(t.config.Rate, t.config.Burst),
		lastAccess: now,
	}
	t.limiters[ip] = l
	return l.limiter
}

func (t *Throttle) cleanupLoop() {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep(t.now())
		case <-t.stopCh:
			return
		}
	}
}

// sweep drops entries idle for more than two cleanup intervals.
func (t *Throttle) sweep(now time.Time) {
	ttl := 2 * t.config.CleanupInterval

	t.mu.Lock()
	defer t.mu.Unlock()
	for ip, l := range t.limiters {
		if now.Sub(l.lastAccess) > ttl {
			delete(t.limiters, ip)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Code:    codeRateLimited,
		Message: "too many requests, retry later",
	})
}

// remoteIP strips the port from RemoteAddr. chi's RealIP middleware has
// already applied X-Forwarded-For / X-Real-IP when it runs first.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
