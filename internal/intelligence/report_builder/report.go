package report_builder

import (
	"time"

	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_extractor"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// DefaultReportType labels reports in which no mention resolved to a known
// test.
const DefaultReportType = "General"

// RangeSource records where the effective range of a measurement came from.
type RangeSource string

const (
	RangeSourceNone   RangeSource = ""
	RangeSourceInline RangeSource = "inline"
	RangeSourceKB     RangeSource = "knowledge-base"
)

// Measurement is a resolved and classified mention.
type Measurement struct {
	// Entry is the knowledge base entry, nil when the name did not resolve.
	// It is shared with the knowledge base and must not be modified.
	Entry *lab_kb.Entry

	// Name is the test name as written in the text.
	Name  string
	Value float64

	// Unit is the unit found in the text, else the entry's default unit.
	Unit string

	// Range is the effective range: the inline range when present, else the
	// entry's range.
	Range       *lab.Range
	RangeSource RangeSource

	Status     lab.Status
	Category   lab.Category
	Resolution lab_extractor.ResolutionMethod

	Explanation string
	Note        string

	RawText string
	Span    lab_extractor.Span
}

// Key returns the canonical test key, or "" for unclassified measurements.
func (m *Measurement) Key() string {
	if m.Entry == nil {
		return ""
	}
	return m.Entry.Key
}

// DisplayName returns the entry's plain-language name, falling back to the
// name as written.
func (m *Measurement) DisplayName() string {
	if m.Entry == nil {
		return m.Name
	}
	return m.Entry.DisplayName
}

// Classified reports whether the measurement resolved to a knowledge base
// entry.
func (m *Measurement) Classified() bool { return m.Entry != nil }

// CategoryGroup holds the measurements of one category in extraction order.
type CategoryGroup struct {
	Category     lab.Category
	Measurements []*Measurement
}

// Summary counts measurements per status. Counts holds every status, zero
// included.
type Summary struct {
	Total  int
	Counts map[lab.Status]int
}

func newSummary() Summary {
	s := Summary{Counts: make(map[lab.Status]int, len(lab.AllStatuses()))}
	for _, st := range lab.AllStatuses() {
		s.Counts[st] = 0
	}
	return s
}

// Count returns the number of measurements with status st.
func (s Summary) Count(st lab.Status) int { return s.Counts[st] }

// Critical returns the number of critical-high and critical-low measurements.
func (s Summary) Critical() int {
	return s.Counts[lab.StatusCriticalHigh] + s.Counts[lab.StatusCriticalLow]
}

// Abnormal returns the number of measurements outside their range.
func (s Summary) Abnormal() int {
	return s.Critical() + s.Counts[lab.StatusHigh] + s.Counts[lab.StatusLow]
}

// Report is the structured result of one simplification. It is built fresh
// per call and owned by the caller.
type Report struct {
	ReportType      string
	Timestamp       time.Time
	Groups          []CategoryGroup
	Summary         Summary
	Recommendations []string
	KBVersion       string
}

// Measurements returns every measurement in group order.
func (r *Report) Measurements() []*Measurement {
	var out []*Measurement
	for _, g := range r.Groups {
		out = append(out, g.Measurements...)
	}
	return out
}

// Group returns the group for category c.
func (r *Report) Group(c lab.Category) (*CategoryGroup, bool) {
	for i := range r.Groups {
		if r.Groups[i].Category == c {
			return &r.Groups[i], true
		}
	}
	return nil, false
}

// HasCritical reports whether any measurement is critical.
func (r *Report) HasCritical() bool { return r.Summary.Critical() > 0 }

// Empty reports whether no measurement was found.
func (r *Report) Empty() bool { return r.Summary.Total == 0 }
