package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/config"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client token bucket keyed by remote IP.
type RateLimiter struct {
	cfg   config.RateLimitConfig
	clock clockwork.Clock

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a RateLimiter. A nil clock means the real clock.
func NewRateLimiter(cfg config.RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		cfg:     cfg,
		clock:   clock,
		clients: make(map[string]*clientLimiter),
	}
}

// Enabled reports whether limiting is configured.
func (rl *RateLimiter) Enabled() bool {
	return rl.cfg.RequestsPerSecond > 0 && rl.cfg.Burst > 0
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on the ones it lets through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.clock.Now()
		limiter := rl.limiterFor(clientIP(r), now)

		reservation := limiter.ReserveN(now, 1)
		if !reservation.OK() {
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			return
		}
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(time.Second).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// Run evicts idle client entries until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.sweep(rl.clock.Now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) limiterFor(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if cl, ok := rl.clients[ip]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
	rl.clients[ip] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware runs
// earlier in the chain when the server sits behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
