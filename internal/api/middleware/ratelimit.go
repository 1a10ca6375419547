package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/fieldreport/reporting-api/internal/api/metrics"
)

const defaultCleanupInterval = 5 * time.Minute

// LoginLimiterConfig sets the per-client token bucket applied to login.
type LoginLimiterConfig struct {
	PerMinute       int
	Burst           int
	CleanupInterval time.Duration
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	rate     rate.Limit
	burst    int
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewLoginLimiter starts a background loop evicting idle clients. Call Stop on shutdown.
func NewLoginLimiter(cfg LoginLimiterConfig, log zerolog.Logger) *LoginLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	l := &LoginLimiter{
		rate:     rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:    cfg.Burst,
		interval: cfg.CleanupInterval,
		log:      log,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (l *LoginLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.get(ip).Allow() {
				metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
				l.log.Warn().Str("client_ip", ip).Msg("login rate limit exceeded")
				c.Response().Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, please try again later")
			}
			return next(c)
		}
	}
}

// Count returns the number of tracked clients.
func (l *LoginLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LoginLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// retryAfter is the number of seconds until one token is refilled.
func (l *LoginLimiter) retryAfter() int {
	if l.rate <= 0 {
		return 60
	}
	secs := int(math.Ceil(1.0 / float64(l.rate)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for more than twice the cleanup interval.
func (l *LoginLimiter) cleanup(now time.Time) {
	ttl := l.interval * 2

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, cl := range l.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(l.limiters, key)
		}
	}
}
