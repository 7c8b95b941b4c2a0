// Package simplify is the application service behind every MedSimplify
// surface. It validates input, runs the engine, maps the Report onto the
// response DTO, records metrics and optionally publishes the result.
package simplify

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/messaging/kafka"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_extractor"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/internal/intelligence/report_builder"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

const (
	DefaultMaxTextLength = 20000
	DefaultPreviewLength = 1000

	// StatusSuccess is the response status of every successful call.
	StatusSuccess = "success"

	previewEllipsis = "..."
)

// Input sources, used as a metrics label.
const (
	SourceText     = "text"
	SourceDocument = "document"
	SourceKafka    = "kafka"
	SourceGRPC     = "grpc"
	SourceCLI      = "cli"
)

// Document is an uploaded report file.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service simplifies lab report text.
type Service interface {
	SimplifyText(ctx context.Context, req *lab.SimplifyTextRequest) (*lab.SimplifyResponse, error)
	SimplifyDocument(ctx context.Context, doc *Document) (*lab.SimplifyResponse, error)
	// SimplifyFrom is SimplifyText with an explicit source label.
	SimplifyFrom(ctx context.Context, source, text string) (*lab.SimplifyResponse, error)
	ListTests(ctx context.Context) []lab.KBTestDTO
	LookupTest(ctx context.Context, name string) (*lab.KBTestDTO, error)
	KnowledgeBaseVersion() string
}

// Config bounds the input accepted by the service.
type Config struct {
	MaxTextLength    int
	PreviewLength    int
	LogLowConfidence bool
}

// Option configures the service.
type Option func(*serviceImpl)

// WithConfig overrides the limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *serviceImpl) {
		if cfg.MaxTextLength > 0 {
			s.cfg.MaxTextLength = cfg.MaxTextLength
		}
		if cfg.PreviewLength > 0 {
			s.cfg.PreviewLength = cfg.PreviewLength
		}
		s.cfg.LogLowConfidence = cfg.LogLowConfidence
	}
}

// WithMetrics records per-report metrics.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithPublisher publishes every report to topic.
func WithPublisher(p kafka.Publisher, topic string) Option {
	return func(s *serviceImpl) {
		s.publisher = p
		s.topic = topic
	}
}

// WithExtractors replaces the content type extractor registry.
func WithExtractors(r *ExtractorRegistry) Option {
	return func(s *serviceImpl) {
		if r != nil {
			s.extractors = r
		}
	}
}

// WithIDGenerator sets the report ID source.
func WithIDGenerator(gen func() string) Option {
	return func(s *serviceImpl) {
		if gen != nil {
			s.newID = gen
		}
	}
}

type serviceImpl struct {
	engine     *report_builder.Simplifier
	extractors *ExtractorRegistry
	publisher  kafka.Publisher
	topic      string
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
	cfg        Config
	newID      func() string
}

// NewService wires the engine into a Service.
func NewService(engine *report_builder.Simplifier, logger logging.Logger, opts ...Option) Service {
	if engine == nil {
		panic("nil engine injected into simplify.Service")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		engine:     engine,
		extractors: DefaultExtractors(),
		topic:      kafka.TopicReportSimplified,
		logger:     logger,
		cfg: Config{
			MaxTextLength: DefaultMaxTextLength,
			PreviewLength: DefaultPreviewLength,
		},
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *serviceImpl) SimplifyText(ctx context.Context, req *lab.SimplifyTextRequest) (*lab.SimplifyResponse, error) {
	if req == nil {
		return nil, errors.New(errors.ErrCodeSimplifyEmptyInput, "no text provided")
	}
	return s.SimplifyFrom(ctx, SourceText, req.Text)
}

func (s *serviceImpl) SimplifyDocument(ctx context.Context, doc *Document) (*lab.SimplifyResponse, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, errors.New(errors.ErrCodeSimplifyNoFile, "no file provided")
	}
	text, err := s.extractors.Extract(ctx, doc)
	if err != nil {
		prometheus.RecordError(s.metrics, "simplify", string(errors.GetCode(err)))
		return nil, err
	}
	return s.SimplifyFrom(ctx, SourceDocument, text)
}

func (s *serviceImpl) SimplifyFrom(ctx context.Context, source, text string) (*lab.SimplifyResponse, error) {
	if err := s.validate(text); err != nil {
		prometheus.RecordError(s.metrics, "simplify", string(errors.GetCode(err)))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "request cancelled")
	}

	log := s.logger.WithContext(ctx)
	start := time.Now()

	cleaned := lab_extractor.Normalize(text)
	report := s.engine.Simplify(cleaned)
	elapsed := time.Since(start)

	resp := s.toResponse(report, cleaned, elapsed)
	s.record(source, report, resp.Summary.CharacterCount, elapsed)

	log.Info("report simplified",
		logging.String("report_id", resp.ReportID),
		logging.String("source", source),
		logging.String("report_type", resp.ReportType),
		logging.Int("tests_found", resp.Summary.TestsFound),
		logging.Int("characters", resp.Summary.CharacterCount),
		logging.Duration("elapsed", elapsed))

	if s.publisher != nil {
		s.publish(ctx, resp)
	}
	return resp, nil
}

func (s *serviceImpl) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New(errors.ErrCodeSimplifyEmptyInput, "no text provided")
	}
	if !utf8.ValidString(text) {
		return errors.New(errors.ErrCodeBadRequest, "text is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(text); n > s.cfg.MaxTextLength {
		return errors.Newf(errors.ErrCodeSimplifyTextTooLong,
			"text too long, maximum %d characters", s.cfg.MaxTextLength).
			WithDetailf("got %d characters", n)
	}
	return nil
}

func (s *serviceImpl) toResponse(r *report_builder.Report, cleaned string, elapsed time.Duration) *lab.SimplifyResponse {
	resp := &lab.SimplifyResponse{
		ReportID:        s.newID(),
		Status:          StatusSuccess,
		ReportType:      r.ReportType,
		OriginalText:    preview(cleaned, s.cfg.PreviewLength),
		Categories:      make([]lab.CategoryDTO, 0, len(r.Groups)),
		Recommendations: r.Recommendations,
		Timestamp:       r.Timestamp,
		Summary: lab.SummaryDTO{
			TestsFound:            r.Summary.Total,
			StatusCounts:          make(map[lab.Status]int, len(r.Summary.Counts)),
			ProcessingTimeSeconds: math.Round(elapsed.Seconds()*100) / 100,
			CharacterCount:        utf8.RuneCountInString(cleaned),
		},
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []string{}
	}
	for st, n := range r.Summary.Counts {
		resp.Summary.StatusCounts[st] = n
	}
	for _, g := range r.Groups {
		cat := lab.CategoryDTO{
			Category:     g.Category,
			Label:        g.Category.Label(),
			Measurements: make([]lab.MeasurementDTO, 0, len(g.Measurements)),
		}
		for _, m := range g.Measurements {
			cat.Measurements = append(cat.Measurements, toMeasurementDTO(m))
		}
		resp.Categories = append(resp.Categories, cat)
	}
	resp.SimplifiedText = RenderText(resp)
	return resp
}

func toMeasurementDTO(m *report_builder.Measurement) lab.MeasurementDTO {
	dto := lab.MeasurementDTO{
		Key:         m.Key(),
		Name:        m.Name,
		DisplayName: m.DisplayName(),
		Value:       m.Value,
		Unit:        m.Unit,
		RangeSource: string(m.RangeSource),
		Status:      m.Status,
		StatusLabel: m.Status.Label(),
		Indicator:   m.Status.Indicator(),
		Explanation: m.Explanation,
		Note:        m.Note,
		RawText:     m.RawText,
	}
	if m.Range != nil {
		r := *m.Range
		dto.Range = &r
	}
	return dto
}

// preview truncates s to n runes, appending an ellipsis when cut.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + previewEllipsis
}

func (s *serviceImpl) record(source string, r *report_builder.Report, characters int, elapsed time.Duration) {
	unclassified := 0
	for _, m := range r.Measurements() {
		prometheus.RecordMeasurement(s.metrics, string(m.Category), string(m.Status))
		if !m.Classified() {
			unclassified++
			if s.cfg.LogLowConfidence {
				s.logger.Info("unclassified mention",
					logging.String("name", m.Name),
					logging.String("raw_text", m.RawText))
			}
		}
	}
	prometheus.RecordReport(s.metrics, source, r.ReportType, characters, unclassified, elapsed)
}

// publish is best effort: a broker outage must not fail the request.
func (s *serviceImpl) publish(ctx context.Context, resp *lab.SimplifyResponse) {
	env, err := kafka.NewEventEnvelope(kafka.EventReportSimplified, "medsimplify-api",
		kafka.ReportSimplifiedPayload{Report: resp})
	if err == nil {
		env.TraceID = logging.RequestIDFromContext(ctx)
		var msg *kafka.ProducerMessage
		if msg, err = env.ToMessage(s.topic, resp.ReportID); err == nil {
			err = s.publisher.Publish(ctx, msg)
		}
	}
	if err != nil {
		prometheus.RecordError(s.metrics, "publisher", string(errors.GetCode(err)))
		s.logger.WithContext(ctx).Warn("failed to publish report",
			logging.String("report_id", resp.ReportID),
			logging.String("topic", s.topic),
			logging.Err(err))
	}
}

func (s *serviceImpl) ListTests(_ context.Context) []lab.KBTestDTO {
	entries := s.engine.KnowledgeBase().Entries()
	out := make([]lab.KBTestDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toKBTestDTO(e))
	}
	return out
}

func (s *serviceImpl) LookupTest(_ context.Context, name string) (*lab.KBTestDTO, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.InvalidParam("test name is required")
	}
	e, ok := s.engine.KnowledgeBase().Lookup(name)
	if !ok {
		return nil, errors.New(errors.ErrCodeKBTestNotFound, "test not found in knowledge base").WithDetail(name)
	}
	dto := toKBTestDTO(e)
	return &dto, nil
}

func (s *serviceImpl) KnowledgeBaseVersion() string {
	return s.engine.KnowledgeBase().Version()
}

func toKBTestDTO(e *lab_kb.Entry) lab.KBTestDTO {
	dto := lab.KBTestDTO{
		Key:          e.Key,
		DisplayName:  e.DisplayName,
		Category:     e.Category,
		Unit:         e.Unit,
		CriticalLow:  cloneFloat(e.CriticalLow),
		CriticalHigh: cloneFloat(e.CriticalHigh),
		Synonyms:     append([]string(nil), e.Synonyms...),
		Description:  e.Description,
	}
	if e.Range != nil {
		r := *e.Range
		dto.Range = &r
	}
	return dto
}

// cloneFloat keeps DTOs from aliasing the knowledge base's thresholds.
func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
