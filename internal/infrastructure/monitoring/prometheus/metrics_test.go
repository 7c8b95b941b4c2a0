package prometheus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	RecordHTTPRequest(m, "POST", "/api/simplify-text", 200, 30*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/simplify-text",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_http_request_duration_seconds_count{method="POST",path="/api/simplify-text"} 1`)
}

func TestRecordReport(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	RecordReport(m, "http", "Lipid Panel", 120, 2, time.Millisecond)
	RecordReport(m, "http", "Lipid Panel", 80, 0, time.Millisecond)
	RecordMeasurement(m, "lipid-panel", "high")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_reports_simplified_total{report_type="Lipid Panel",source="http"} 2`)
	assert.Contains(t, out, `test_unit_unclassified_mentions_total{source="http"} 2`)
	assert.Contains(t, out, `test_unit_input_characters_sum{source="http"} 200`)
	assert.Contains(t, out, `test_unit_measurements_total{category="lipid-panel",status="high"} 1`)
}

func TestRecordKnowledgeBase(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	RecordKnowledgeBase(m, "2024.06", "embedded", 32, time.Unix(1700000000, 0))

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_kb_entries{version="2024.06"} 32`)
	assert.Contains(t, out, `test_unit_kb_loaded_timestamp_seconds{source="embedded"}`)
}

func TestRecordMessage_SuccessAndFailure(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	RecordMessage(m, "lab-reports", time.Millisecond, "")
	RecordMessage(m, "lab-reports", time.Millisecond, "decode")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_messages_processed_total{topic="lab-reports"} 1`)
	assert.Contains(t, out, `test_unit_messages_failed_total{reason="decode",topic="lab-reports"} 1`)
	assert.Contains(t, out, `test_unit_message_process_duration_seconds_count{topic="lab-reports"} 2`)
}

func TestSetHealthAndRecordError(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	SetHealth(m, "redis", false)
	SetHealth(m, "kb", true)
	RecordError(m, "http", "SIMPLIFY_001")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_health_check_status{component="redis"} 0`)
	assert.Contains(t, out, `test_unit_health_check_status{component="kb"} 1`)
	assert.Contains(t, out, `test_unit_errors_total{code="SIMPLIFY_001",component="http"} 1`)
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest(nil, "GET", "/", 200, 0)
		RecordReport(nil, "cli", "General", 1, 1, 0)
		RecordMeasurement(nil, "other", "normal")
		RecordKnowledgeBase(nil, "v", "s", 1, time.Now())
		RecordMessage(nil, "t", 0, "x")
		RecordError(nil, "c", "e")
		SetHealth(nil, "c", true)
	})
}

func TestNoopAppMetrics(t *testing.T) {
	m := NewNoopAppMetrics()
	assert.NotPanics(t, func() {
		RecordReport(m, "grpc", "General", 10, 1, time.Millisecond)
		m.RateLimitRejectionsTotal.WithLabelValues("memory").Inc()
	})
}

func TestConcurrentMetricRecording(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordMeasurement(m, "blood-count", "normal")
		}()
	}
	wg.Wait()
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_measurements_total{category="blood-count",status="normal"} 50`)
}
