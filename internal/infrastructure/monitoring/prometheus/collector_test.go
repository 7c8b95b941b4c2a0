package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_WithGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "go_goroutines")
}

func TestRegisterCounter_WithLabels(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("requests_total", "help", "method")
	vec.WithLabelValues("GET").Inc()
	vec.WithLabelValues("GET").Add(2)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_requests_total{method="GET"} 3`)
}

func TestRegisterCounter_DuplicateReturnsSameVector(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dup_total", "help", "k")
	second := c.RegisterCounter("dup_total", "help", "k")
	first.WithLabelValues("a").Inc()
	second.WithLabelValues("a").Inc()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_dup_total{k="a"} 2`)
}

func TestRegisterGauge_TypeMismatchFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("shared", "help")
	g := c.RegisterGauge("shared", "help")
	assert.IsType(t, noopGaugeVec{}, g)
	g.WithLabelValues().Set(5)
}

func TestRegisterGauge_SetIncDec(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("level", "help", "component")
	g.WithLabelValues("redis").Set(4)
	g.WithLabelValues("redis").Inc()
	g.WithLabelValues("redis").Dec()
	g.WithLabelValues("redis").Dec()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_level{component="redis"} 3`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("latency_seconds", "help", nil, "op")
	h.WithLabelValues("simplify").Observe(0.2)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{op="simplify",le="0.25"} 1`)
	assert.Contains(t, out, `test_unit_latency_seconds_count{op="simplify"} 1`)
}

func TestTimer_ObservesElapsed(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timer_seconds", "help", []float64{1, 10})
	timer := NewTimer(h.WithLabelValues())
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_timer_seconds_count 1")
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "help").WithLabelValues().Inc()
		}()
	}
	wg.Wait()
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_concurrent_total 16")
}

func TestNoopCollector(t *testing.T) {
	c := NewNoopCollector()
	c.RegisterCounter("x", "h").WithLabelValues("a").Inc()
	c.RegisterGauge("y", "h").WithLabelValues().Set(1)
	c.RegisterHistogram("z", "h", nil).WithLabelValues().Observe(1)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
