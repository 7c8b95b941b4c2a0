// Package report_builder is the engine entry point: it runs extraction,
// resolution and classification over a text blob and assembles the result
// into a categorized Report with explanations and recommendations.
//
// Simplify is synchronous and never fails. The knowledge base is only read,
// so one Simplifier may serve any number of goroutines.
package report_builder

import (
	"time"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_extractor"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/internal/intelligence/risk_classifier"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// Simplifier turns report text into a Report.
type Simplifier struct {
	kb        *lab_kb.KnowledgeBase
	extractor *lab_extractor.Extractor
	resolver  *lab_extractor.Resolver
	logger    logging.Logger
	now       func() time.Time
}

// Option configures a Simplifier.
type Option func(*Simplifier)

// WithLogger sets the logger. It is also handed to the default extractor.
func WithLogger(l logging.Logger) Option {
	return func(s *Simplifier) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Simplifier) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(x *lab_extractor.Extractor) Option {
	return func(s *Simplifier) { s.extractor = x }
}

// New returns a Simplifier over kb.
func New(kb *lab_kb.KnowledgeBase, opts ...Option) (*Simplifier, error) {
	if kb == nil {
		return nil, errors.InvalidParam("knowledge base is required")
	}
	s := &Simplifier{
		kb:       kb,
		resolver: lab_extractor.NewResolver(kb),
		logger:   logging.NewNopLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.extractor == nil {
		s.extractor = lab_extractor.NewExtractor(lab_extractor.WithLogger(s.logger.Named("extractor")))
	}
	return s, nil
}

// KnowledgeBase returns the knowledge base the Simplifier reads.
func (s *Simplifier) KnowledgeBase() *lab_kb.KnowledgeBase { return s.kb }

// Simplify extracts, resolves and classifies every measurement in text.
// Categories appear in the order their first measurement appears in text;
// measurements keep extraction order within a category.
func (s *Simplifier) Simplify(text string) *Report {
	report := &Report{
		Timestamp: s.now(),
		Summary:   newSummary(),
		KBVersion: s.kb.Version(),
	}

	index := make(map[lab.Category]int)
	var taken []lab_extractor.Span
	for _, c := range s.extractor.Extract(text) {
		if overlapsAny(taken, c.Span) {
			s.logger.Debug("skipping mention overlapping an earlier one",
				logging.Int("start", c.Span.Start),
				logging.Int("end", c.Span.End))
			continue
		}
		taken = append(taken, c.Span)

		m := s.measure(c)
		gi, ok := index[m.Category]
		if !ok {
			gi = len(report.Groups)
			index[m.Category] = gi
			report.Groups = append(report.Groups, CategoryGroup{Category: m.Category})
		}
		report.Groups[gi].Measurements = append(report.Groups[gi].Measurements, m)
		report.Summary.Total++
		report.Summary.Counts[m.Status]++
	}

	report.ReportType = reportType(report.Groups)
	report.Recommendations = s.recommend(report)

	s.logger.Debug("report simplified",
		logging.Int("tests_found", report.Summary.Total),
		logging.Int("categories", len(report.Groups)),
		logging.Int("critical", report.Summary.Critical()),
		logging.String("report_type", report.ReportType))
	return report
}

func (s *Simplifier) measure(c lab_extractor.Candidate) *Measurement {
	res := s.resolver.Resolve(c.Name)
	m := &Measurement{
		Entry:      res.Entry,
		Name:       c.Name,
		Value:      c.Value,
		Unit:       c.Unit,
		Category:   lab.CategoryUnclassified,
		Resolution: res.Method,
		RawText:    c.Raw,
		Span:       c.Span,
	}

	var th risk_classifier.Thresholds
	if e := res.Entry; e != nil {
		m.Category = e.Category
		if m.Unit == "" {
			m.Unit = e.Unit
		}
		if e.Range != nil {
			r := *e.Range
			m.Range, m.RangeSource = &r, RangeSourceKB
		}
		th.CriticalLow, th.CriticalHigh = e.CriticalLow, e.CriticalHigh
	}
	if c.InlineRange != nil {
		r := *c.InlineRange
		m.Range, m.RangeSource = &r, RangeSourceInline
	}
	th.Range = m.Range

	m.Status = risk_classifier.Classify(m.Value, th)
	m.Explanation = s.explain(m)
	m.Note = s.note(m)
	return m
}

func overlapsAny(spans []lab_extractor.Span, sp lab_extractor.Span) bool {
	for _, t := range spans {
		if t.Overlaps(sp) {
			return true
		}
	}
	return false
}

// reportType labels the report with the category holding the most classified
// measurements. Ties go to the category seen first.
func reportType(groups []CategoryGroup) string {
	best, bestN := lab.Category(""), 0
	for _, g := range groups {
		if g.Category == lab.CategoryUnclassified {
			continue
		}
		if len(g.Measurements) > bestN {
			best, bestN = g.Category, len(g.Measurements)
		}
	}
	if bestN == 0 {
		return DefaultReportType
	}
	return best.Label()
}
