package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/database/redis"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RateLimiter decides whether the request identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, RateLimitInfo, error)
	Backend() string
}

// RateLimitInfo is the limiter state reported in X-RateLimit-* headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// KeyFunc extracts the limiter key. Defaults to the client IP.
	KeyFunc func(c *gin.Context) string
	// SkipPaths bypass the limiter.
	SkipPaths []string
}

// DefaultRateLimitConfig limits per client IP and skips probes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		KeyFunc:   func(c *gin.Context) string { return "ip:" + c.ClientIP() },
		SkipPaths: []string{"/", "/api/health", "/healthz", "/readyz", "/metrics"},
	}
}

// --- Token bucket ---

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// TokenBucketLimiter keeps one token bucket per key in process memory.
type TokenBucketLimiter struct {
	rate            float64
	burst           int
	buckets         map[string]*tokenBucket
	mu              sync.RWMutex
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

// NewTokenBucketLimiter refills at rate tokens per second up to burst.
// A positive cleanupInterval starts a goroutine that evicts idle buckets;
// call Stop to end it.
func NewTokenBucketLimiter(rate float64, burst int, cleanupInterval time.Duration) *TokenBucketLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &TokenBucketLimiter{
		rate:            rate,
		burst:           burst,
		buckets:         make(map[string]*tokenBucket),
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
		now:             time.Now,
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

// NewPerMinuteLimiter converts a requests-per-minute budget to a bucket.
func NewPerMinuteLimiter(perMinute, burst int) *TokenBucketLimiter {
	if burst < 1 {
		burst = perMinute
	}
	return NewTokenBucketLimiter(float64(perMinute)/60, burst, 5*time.Minute)
}

func (l *TokenBucketLimiter) Backend() string { return BackendMemory }

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, RateLimitInfo, error) {
	now := l.now()

	l.mu.RLock()
	rate, burst := l.rate, l.burst
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if !ok {
		l.mu.Lock()
		if b, ok = l.buckets[key]; !ok {
			b = &tokenBucket{tokens: float64(burst), lastRefill: now}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(float64(burst), b.tokens+now.Sub(b.lastRefill).Seconds()*rate)
	b.lastRefill = now

	info := RateLimitInfo{Limit: burst}
	if b.tokens >= 1 {
		b.tokens--
		info.Remaining = int(b.tokens)
		info.ResetAt = now.Add(untilFull(rate, burst, b.tokens))
		return true, info, nil
	}
	info.ResetAt = now.Add(time.Duration((1 - b.tokens) / rate * float64(time.Second)))
	return false, info, nil
}

// SetPerMinute changes the budget of every key. Existing buckets keep their
// tokens, capped at the new burst on the next request.
func (l *TokenBucketLimiter) SetPerMinute(perMinute, burst int) {
	if burst < 1 {
		burst = perMinute
	}
	if burst < 1 {
		burst = 1
	}
	l.mu.Lock()
	l.rate = float64(perMinute) / 60
	l.burst = burst
	l.mu.Unlock()
}

func untilFull(rate float64, burst int, tokens float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration((float64(burst) - tokens) / rate * float64(time.Second))
}

func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets idle for longer than the cleanup interval.
func (l *TokenBucketLimiter) cleanup() {
	threshold := l.now().Add(-l.cleanupInterval)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.lastRefill.Before(threshold) {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine.
func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// BucketCount returns the number of tracked keys.
func (l *TokenBucketLimiter) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// --- Redis fixed window ---

// RedisLimiter adapts redis.RateLimiter so replicas share one budget.
type RedisLimiter struct {
	limiter *redis.RateLimiter
}

// NewRedisLimiter wraps l.
func NewRedisLimiter(l *redis.RateLimiter) *RedisLimiter {
	return &RedisLimiter{limiter: l}
}

func (r *RedisLimiter) Backend() string { return BackendRedis }

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, RateLimitInfo, error) {
	res, err := r.limiter.Allow(ctx, key)
	if err != nil {
		return false, RateLimitInfo{}, err
	}
	return res.Allowed, RateLimitInfo{
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   time.Now().Add(res.ResetAfter),
	}, nil
}

// --- Middleware ---

// RateLimit enforces limiter per key. When the limiter itself fails the
// request is let through and the failure logged.
func RateLimit(limiter RateLimiter, config RateLimitConfig, metrics *prometheus.AppMetrics, logger logging.Logger) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = DefaultRateLimitConfig().KeyFunc
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		allowed, info, err := limiter.Allow(c.Request.Context(), keyFunc(c))
		if err != nil {
			prometheus.RecordError(metrics, "ratelimit", string(errors.GetCode(err)))
			logger.Warn("rate limiter unavailable, allowing request",
				logging.String("backend", limiter.Backend()),
				logging.Err(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !allowed {
			retry := int(math.Ceil(time.Until(info.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			if metrics != nil {
				metrics.RateLimitRejectionsTotal.WithLabelValues(limiter.Backend()).Inc()
			}
			abortWithError(c, http.StatusTooManyRequests, errors.ErrCodeTooManyRequests,
				"rate limit exceeded, please retry later")
			return
		}
		c.Next()
	}
}
