// Package lab defines the laboratory-report enumerations and the request and
// response DTOs shared by the engine, the service surfaces and the Go client.
// No domain logic lives here, only plain data types that are safe to import
// from any layer without creating circular dependencies.
package lab

import (
	"fmt"
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Status: outcome of classifying one measurement
// ─────────────────────────────────────────────────────────────────────────────

// Status is the classification assigned to a measurement. It is derived only
// from the value, the effective reference range and the critical thresholds.
type Status string

const (
	// StatusCriticalHigh is above the range and above the critical-high bound.
	StatusCriticalHigh Status = "critical-high"

	// StatusCriticalLow is below the range and below the critical-low bound.
	StatusCriticalLow Status = "critical-low"

	// StatusHigh is above the range.
	StatusHigh Status = "high"

	// StatusLow is below the range.
	StatusLow Status = "low"

	// StatusNormal is inside the inclusive range.
	StatusNormal Status = "normal"

	// StatusUnknown means no range was available.
	StatusUnknown Status = "unknown"
)

// AllStatuses lists every status in severity order. Summaries are emitted in
// this order.
func AllStatuses() []Status {
	return []Status{
		StatusCriticalHigh,
		StatusCriticalLow,
		StatusHigh,
		StatusLow,
		StatusNormal,
		StatusUnknown,
	}
}

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusCriticalHigh, StatusCriticalLow, StatusHigh, StatusLow, StatusNormal, StatusUnknown:
		return true
	}
	return false
}

// IsCritical reports whether s is critical-high or critical-low.
func (s Status) IsCritical() bool {
	return s == StatusCriticalHigh || s == StatusCriticalLow
}

// IsAbnormal reports whether s lies outside the reference range.
func (s Status) IsAbnormal() bool {
	return s == StatusHigh || s == StatusLow || s.IsCritical()
}

// Label returns the human-readable form used in rendered reports.
func (s Status) Label() string {
	switch s {
	case StatusCriticalHigh:
		return "Critically High"
	case StatusCriticalLow:
		return "Critically Low"
	case StatusHigh:
		return "High"
	case StatusLow:
		return "Low"
	case StatusNormal:
		return "Normal"
	default:
		return "Review Needed"
	}
}

// Indicator returns the emoji shown next to a measurement.
func (s Status) Indicator() string {
	switch s {
	case StatusCriticalHigh, StatusCriticalLow:
		return "🚨"
	case StatusHigh:
		return "🔺"
	case StatusLow:
		return "🔻"
	case StatusNormal:
		return "✅"
	case StatusUnknown:
		return "❓"
	default:
		return "📋"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Category: clinical panel a test belongs to
// ─────────────────────────────────────────────────────────────────────────────

// Category groups tests into the panels used to organise a report.
type Category string

const (
	CategoryBloodCount      Category = "blood-count"
	CategoryMetabolicPanel  Category = "metabolic-panel"
	CategoryLiverFunction   Category = "liver-function"
	CategoryKidneyFunction  Category = "kidney-function"
	CategoryLipidPanel      Category = "lipid-panel"
	CategoryThyroidFunction Category = "thyroid-function"
	CategoryOther           Category = "other"

	// CategoryUnclassified holds mentions that matched no knowledge base entry.
	// It is never assigned to a knowledge base entry.
	CategoryUnclassified Category = "unclassified"
)

// KnownCategories lists the categories a knowledge base entry may carry.
func KnownCategories() []Category {
	return []Category{
		CategoryBloodCount,
		CategoryMetabolicPanel,
		CategoryLiverFunction,
		CategoryKidneyFunction,
		CategoryLipidPanel,
		CategoryThyroidFunction,
		CategoryOther,
	}
}

// IsKnown reports whether c may be assigned to a knowledge base entry.
func (c Category) IsKnown() bool {
	for _, k := range KnownCategories() {
		if c == k {
			return true
		}
	}
	return false
}

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryBloodCount:
		return "Blood Count"
	case CategoryMetabolicPanel:
		return "Metabolic Panel"
	case CategoryLiverFunction:
		return "Liver Function"
	case CategoryKidneyFunction:
		return "Kidney Function"
	case CategoryLipidPanel:
		return "Lipid Panel"
	case CategoryThyroidFunction:
		return "Thyroid Function"
	case CategoryOther:
		return "Other"
	case CategoryUnclassified:
		return "Unclassified"
	default:
		return string(c)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Range: inclusive reference interval
// ─────────────────────────────────────────────────────────────────────────────

// Range is an inclusive [Low, High] reference interval.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Contains reports whether v lies within the inclusive interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Valid reports whether Low does not exceed High.
func (r Range) Valid() bool {
	return r.Low <= r.High
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", FormatNumber(r.Low), FormatNumber(r.High))
}

// FormatNumber renders v without trailing zeros ("14.2", "150", "0.7").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─────────────────────────────────────────────────────────────────────────────
// Request / response DTOs
// ─────────────────────────────────────────────────────────────────────────────

// SimplifyTextRequest is the body of POST /api/simplify-text.
type SimplifyTextRequest struct {
	Text string `json:"text"`
}

// MeasurementDTO is one classified test result as serialized to callers.
type MeasurementDTO struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`
	Range       *Range  `json:"range,omitempty"`
	RangeSource string  `json:"range_source,omitempty"`
	Status      Status  `json:"status"`
	StatusLabel string  `json:"status_label"`
	Indicator   string  `json:"indicator"`
	Explanation string  `json:"explanation"`
	Note        string  `json:"note"`
	RawText     string  `json:"raw_text"`
}

// CategoryDTO is one category group of a report.
type CategoryDTO struct {
	Category     Category         `json:"category"`
	Label        string           `json:"label"`
	Measurements []MeasurementDTO `json:"measurements"`
}

// SummaryDTO carries the per-status counts and request statistics.
type SummaryDTO struct {
	TestsFound            int            `json:"tests_found"`
	StatusCounts          map[Status]int `json:"status_counts"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	CharacterCount        int            `json:"character_count"`
}

// SimplifyResponse is the serialized report returned by every surface.
type SimplifyResponse struct {
	ReportID        string        `json:"report_id"`
	Status          string        `json:"status"`
	ReportType      string        `json:"report_type"`
	OriginalText    string        `json:"original_text"`
	SimplifiedText  string        `json:"simplified_text"`
	Summary         SummaryDTO    `json:"summary"`
	Categories      []CategoryDTO `json:"categories"`
	Recommendations []string      `json:"recommendations"`
	Timestamp       time.Time     `json:"timestamp"`
}

// KBTestDTO describes one knowledge base entry for listing endpoints.
type KBTestDTO struct {
	Key          string   `json:"key"`
	DisplayName  string   `json:"display_name"`
	Category     Category `json:"category"`
	Unit         string   `json:"unit,omitempty"`
	Range        *Range   `json:"range,omitempty"`
	CriticalLow  *float64 `json:"critical_low,omitempty"`
	CriticalHigh *float64 `json:"critical_high,omitempty"`
	Synonyms     []string `json:"synonyms"`
	Description  string   `json:"description,omitempty"`
}

// KBTestList is the body of GET /api/kb/tests.
type KBTestList struct {
	Version string      `json:"version"`
	Count   int         `json:"count"`
	Tests   []KBTestDTO `json:"tests"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status     string            `json:"status"`
	Service    string            `json:"service"`
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// ErrorBody is the error envelope returned by the HTTP API.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the application error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
