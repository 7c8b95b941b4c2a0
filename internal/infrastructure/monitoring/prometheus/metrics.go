package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the application metrics.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Engine
	ReportsTotal          CounterVec
	EngineDuration        HistogramVec
	MeasurementsTotal     CounterVec
	UnclassifiedTotal     CounterVec
	InputCharacters       HistogramVec
	KnowledgeBaseEntries  GaugeVec
	KnowledgeBaseLoadTime GaugeVec

	// Messaging
	MessagesProcessedTotal CounterVec
	MessagesFailedTotal    CounterVec
	MessageProcessDuration HistogramVec

	// Rate limiting
	RateLimitRejectionsTotal CounterVec

	// Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultEngineDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultCharacterBuckets      = []float64{100, 500, 1000, 2500, 5000, 10000, 20000}
)

// NewAppMetrics registers every application metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.ReportsTotal = collector.RegisterCounter("reports_simplified_total", "Reports simplified", "source", "report_type")
	m.EngineDuration = collector.RegisterHistogram("engine_duration_seconds", "Time spent in the simplification engine", DefaultEngineDurationBuckets, "source")
	m.MeasurementsTotal = collector.RegisterCounter("measurements_total", "Classified measurements", "category", "status")
	m.UnclassifiedTotal = collector.RegisterCounter("unclassified_mentions_total", "Mentions that matched no knowledge base entry", "source")
	m.InputCharacters = collector.RegisterHistogram("input_characters", "Characters per simplified text", DefaultCharacterBuckets, "source")
	m.KnowledgeBaseEntries = collector.RegisterGauge("kb_entries", "Knowledge base entries", "version")
	m.KnowledgeBaseLoadTime = collector.RegisterGauge("kb_loaded_timestamp_seconds", "Unix time the knowledge base was loaded", "source")

	m.MessagesProcessedTotal = collector.RegisterCounter("messages_processed_total", "Messages processed", "topic")
	m.MessagesFailedTotal = collector.RegisterCounter("messages_failed_total", "Messages that failed processing", "topic", "reason")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.RateLimitRejectionsTotal = collector.RegisterCounter("rate_limit_rejections_total", "Requests rejected by the rate limiter", "backend")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// NewNoopAppMetrics returns AppMetrics backed by the no-op collector.
func NewNoopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest records one unary call.
func RecordGRPCRequest(m *AppMetrics, service, method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordMeasurement counts one measurement.
func RecordMeasurement(m *AppMetrics, category, status string) {
	if m == nil {
		return
	}
	m.MeasurementsTotal.WithLabelValues(category, status).Inc()
}

// RecordReport records one simplification.
func RecordReport(m *AppMetrics, source, reportType string, characters, unclassified int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(source, reportType).Inc()
	m.EngineDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.InputCharacters.WithLabelValues(source).Observe(float64(characters))
	if unclassified > 0 {
		m.UnclassifiedTotal.WithLabelValues(source).Add(float64(unclassified))
	}
}

// RecordKnowledgeBase publishes the loaded knowledge base size.
func RecordKnowledgeBase(m *AppMetrics, version, source string, entries int, loadedAt time.Time) {
	if m == nil {
		return
	}
	m.KnowledgeBaseEntries.WithLabelValues(version).Set(float64(entries))
	m.KnowledgeBaseLoadTime.WithLabelValues(source).Set(float64(loadedAt.Unix()))
}

// RecordMessage records one consumed message.
func RecordMessage(m *AppMetrics, topic string, duration time.Duration, failReason string) {
	if m == nil {
		return
	}
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
	if failReason != "" {
		m.MessagesFailedTotal.WithLabelValues(topic, failReason).Inc()
		return
	}
	m.MessagesProcessedTotal.WithLabelValues(topic).Inc()
}

// RecordError counts an error by component and error code.
func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// SetHealth publishes a component health state.
func SetHealth(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
