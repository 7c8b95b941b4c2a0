package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/database/redis"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/internal/testutil"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, RateLimitInfo, error) {
	return false, RateLimitInfo{}, errors.New(errors.ErrCodeServiceUnavailable, "down")
}

func (failingLimiter) Backend() string { return "broken" }

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	ok, info, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, info, _ = l.Allow(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, now.Add(time.Second), info.ResetAt)

	ok, _, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys have independent buckets")

	now = now.Add(time.Second)
	ok, _, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, l.BucketCount())
}

func TestTokenBucketLimiter_Cleanup(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1, time.Minute)
	defer l.Stop()
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _, _ = l.Allow(context.Background(), "idle")
	now = now.Add(2 * time.Minute)
	l.cleanup()
	assert.Equal(t, 0, l.BucketCount())
	l.Stop()
}

func TestNewPerMinuteLimiter(t *testing.T) {
	l := NewPerMinuteLimiter(60, 0)
	defer l.Stop()
	assert.Equal(t, 1.0, l.rate)
	assert.Equal(t, 60, l.burst)
}

func TestTokenBucketLimiter_SetPerMinute(t *testing.T) {
	l := NewTokenBucketLimiter(1, 5, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, info, _ := l.Allow(ctx, "a")
	assert.Equal(t, 4, info.Remaining)

	l.SetPerMinute(120, 2)
	assert.Equal(t, 2.0, l.rate)

	ok, info, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining, "tokens are capped at the new burst")

	l.SetPerMinute(30, 0)
	assert.Equal(t, 30, l.burst)
}

func TestRateLimit_Middleware(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "rl"}, nil)
	require.NoError(t, err)
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	h := newTestRouter(RateLimit(limiter, DefaultRateLimitConfig(), prometheus.NewAppMetrics(collector), testutil.NewMockLogger()))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.Contains(t, w.Body.String(), `"code":"COMMON_007"`)

	w = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code, "probes skip the limiter")

	body := serve(collector.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String()
	assert.Contains(t, body, `rl_rate_limit_rejections_total{backend="memory"} 1`)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	log := testutil.NewMockLogger()
	h := newTestRouter(RateLimit(failingLimiter{}, DefaultRateLimitConfig(), nil, log))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.True(t, log.HasMessage("warn", "rate limiter unavailable, allowing request"))
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.ClientConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, nil)
	require.NoError(t, err)
	defer client.Close()

	rl, err := redis.NewRateLimiter(client, 2, time.Minute)
	require.NoError(t, err)
	h := newTestRouter(RateLimit(NewRedisLimiter(rl), DefaultRateLimitConfig(), nil, testutil.NewMockLogger()))

	for i := 0; i < 2; i++ {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, BackendRedis, NewRedisLimiter(rl).Backend())
}
