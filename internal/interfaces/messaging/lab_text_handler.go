// Package messaging holds the Kafka message handlers run by cmd/worker.
package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/messaging/kafka"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// SourceService is written into the envelopes this worker emits.
const SourceService = "medsimplify-worker"

// Failure reasons recorded on messages_failed_total.
const (
	ReasonInvalidEnvelope = "invalid_envelope"
	ReasonRejected        = "rejected"
	ReasonSimplify        = "simplify"
	ReasonPublish         = "publish"
)

// Deduplicator claims submission IDs. *redis.Deduplicator implements it.
type Deduplicator interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// LabTextHandler simplifies lab.text.submitted events and publishes the
// report as a report.simplified event.
type LabTextHandler struct {
	service     simplify.Service
	publisher   kafka.Publisher
	dedup       Deduplicator
	metrics     *prometheus.AppMetrics
	logger      logging.Logger
	topic       string
	outputTopic string
	deadLetter  string
	timeout     time.Duration
}

// HandlerConfig names the topics a LabTextHandler reads and writes.
type HandlerConfig struct {
	InputTopic      string
	OutputTopic     string
	DeadLetterTopic string
	Timeout         time.Duration
}

// HandlerOption configures a LabTextHandler.
type HandlerOption func(*LabTextHandler)

// WithDeduplicator skips submissions that were already claimed.
func WithDeduplicator(d Deduplicator) HandlerOption {
	return func(h *LabTextHandler) { h.dedup = d }
}

// WithMetrics records per-message metrics.
func WithMetrics(m *prometheus.AppMetrics) HandlerOption {
	return func(h *LabTextHandler) { h.metrics = m }
}

// NewLabTextHandler creates a handler. publisher receives both reports and
// rejected messages.
func NewLabTextHandler(service simplify.Service, publisher kafka.Publisher, cfg HandlerConfig, logger logging.Logger, opts ...HandlerOption) *LabTextHandler {
	if service == nil {
		panic("nil service injected into LabTextHandler")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.InputTopic == "" {
		cfg.InputTopic = kafka.TopicLabTextSubmitted
	}
	if cfg.OutputTopic == "" {
		cfg.OutputTopic = kafka.TopicReportSimplified
	}
	h := &LabTextHandler{
		service:     service,
		publisher:   publisher,
		logger:      logger.Named("lab_text_handler"),
		topic:       cfg.InputTopic,
		outputTopic: cfg.OutputTopic,
		deadLetter:  cfg.DeadLetterTopic,
		timeout:     cfg.Timeout,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Topic returns the consumed topic.
func (h *LabTextHandler) Topic() string { return h.topic }

// Handle processes one message. Malformed or rejected submissions are sent
// to the dead letter topic at once and acknowledged; other failures are
// returned so that the consumer retries them.
func (h *LabTextHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	env, payload, err := decodeSubmission(msg)
	if err != nil {
		h.logger.Warn("discarding malformed submission",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		h.finish(msg, start, ReasonInvalidEnvelope)
		return h.reject(ctx, msg, err)
	}

	traceID := env.TraceID
	if traceID == "" {
		traceID = env.EventID
	}
	ctx = logging.ContextWithRequestID(ctx, traceID)
	log := h.logger.WithContext(ctx).With(logging.String("submission_id", payload.SubmissionID))

	claimID := payload.SubmissionID
	if claimID == "" {
		claimID = env.EventID
	}
	claimed := false
	if h.dedup != nil {
		ok, err := h.dedup.Claim(ctx, claimID)
		switch {
		case err != nil:
			log.Warn("submission claim failed, processing anyway", logging.Err(err))
		case !ok:
			log.Info("duplicate submission skipped", logging.String("event_id", env.EventID))
			h.finish(msg, start, "")
			return nil
		default:
			claimed = true
		}
	}

	source := payload.Source
	if source == "" {
		source = simplify.SourceKafka
	}
	report, err := h.service.SimplifyFrom(ctx, source, payload.Text)
	if err != nil {
		if errors.IsClientError(errors.GetCode(err)) {
			log.Warn("submission rejected", logging.Err(err))
			h.finish(msg, start, ReasonRejected)
			if rerr := h.reject(ctx, msg, err); rerr != nil {
				h.release(ctx, claimed, claimID)
				return rerr
			}
			return nil
		}
		h.release(ctx, claimed, claimID)
		h.finish(msg, start, ReasonSimplify)
		return err
	}

	out, err := kafka.NewEventEnvelope(kafka.EventReportSimplified, SourceService, kafka.ReportSimplifiedPayload{
		SubmissionID: payload.SubmissionID,
		Report:       report,
	})
	if err != nil {
		h.release(ctx, claimed, claimID)
		h.finish(msg, start, ReasonPublish)
		return err
	}
	out.TraceID = traceID
	key := payload.SubmissionID
	if key == "" {
		key = report.ReportID
	}
	pm, err := out.ToMessage(h.outputTopic, key)
	if err == nil {
		err = h.publish(ctx, pm)
	}
	if err != nil {
		log.Error("failed to publish simplified report", logging.Err(err))
		h.release(ctx, claimed, claimID)
		h.finish(msg, start, ReasonPublish)
		return err
	}

	log.Info("submission simplified",
		logging.String("report_id", report.ReportID),
		logging.String("report_type", report.ReportType),
		logging.Int("tests", report.Summary.TestsFound),
		logging.Duration("took", time.Since(start)))
	h.finish(msg, start, "")
	return nil
}

func decodeSubmission(msg *kafka.Message) (*kafka.EventEnvelope, *kafka.LabTextSubmittedPayload, error) {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return nil, nil, err
	}
	if env.EventType != kafka.EventLabTextSubmitted {
		return nil, nil, errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
	}
	var payload kafka.LabTextSubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return nil, nil, err
	}
	return env, &payload, nil
}

// reject forwards msg to the dead letter topic. When no dead letter topic is
// configured the message is dropped after logging.
func (h *LabTextHandler) reject(ctx context.Context, msg *kafka.Message, cause error) error {
	if h.deadLetter == "" {
		return nil
	}
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[kafka.HeaderOriginalTopic] = msg.Topic
	headers[kafka.HeaderErrorMessage] = cause.Error()
	headers[kafka.HeaderAttempts] = strconv.Itoa(1)
	return h.publish(ctx, &kafka.ProducerMessage{
		Topic:     h.deadLetter,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Timestamp: time.Now().UTC(),
	})
}

func (h *LabTextHandler) publish(ctx context.Context, msg *kafka.ProducerMessage) error {
	if h.publisher == nil {
		return errors.New(errors.ErrCodeServiceUnavailable, "no publisher configured").WithDetail(msg.Topic)
	}
	return h.publisher.Publish(ctx, msg)
}

func (h *LabTextHandler) release(ctx context.Context, claimed bool, id string) {
	if !claimed {
		return
	}
	// The caller's context may already be done; the release must still land.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.dedup.Release(rctx, id); err != nil {
		h.logger.Warn("failed to release submission claim", logging.String("submission_id", id), logging.Err(err))
	}
}

func (h *LabTextHandler) finish(msg *kafka.Message, start time.Time, reason string) {
	prometheus.RecordMessage(h.metrics, msg.Topic, time.Since(start), reason)
}
