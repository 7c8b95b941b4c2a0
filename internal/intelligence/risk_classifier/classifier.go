// Package risk_classifier assigns a status to a measured value from its
// effective reference range and the optional critical thresholds of the test.
package risk_classifier

import (
	"math"

	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// Thresholds are the bounds a value is classified against. A nil Range means
// no reference interval is known. A nil critical bound disables escalation on
// that side.
type Thresholds struct {
	Range        *lab.Range
	CriticalLow  *float64
	CriticalHigh *float64
}

// Classify applies the rules in priority order:
//
//  1. no range: unknown
//  2. below range and below critical low: critical-low
//  3. below range: low
//  4. above range and above critical high: critical-high
//  5. above range: high
//  6. otherwise: normal
//
// Both range bounds are inclusive. NaN values are unknown.
func Classify(value float64, t Thresholds) lab.Status {
	if t.Range == nil || math.IsNaN(value) {
		return lab.StatusUnknown
	}
	switch {
	case value < t.Range.Low:
		if t.CriticalLow != nil && value < *t.CriticalLow {
			return lab.StatusCriticalLow
		}
		return lab.StatusLow
	case value > t.Range.High:
		if t.CriticalHigh != nil && value > *t.CriticalHigh {
			return lab.StatusCriticalHigh
		}
		return lab.StatusHigh
	default:
		return lab.StatusNormal
	}
}

// Severity orders statuses for sorting and alerting. Higher is more urgent.
func Severity(s lab.Status) int {
	switch s {
	case lab.StatusCriticalHigh, lab.StatusCriticalLow:
		return 3
	case lab.StatusHigh, lab.StatusLow:
		return 2
	case lab.StatusUnknown:
		return 1
	default:
		return 0
	}
}

// Deviation returns how far value lies outside r as a fraction of the nearest
// bound, or 0 when value is inside r. A zero bound yields the absolute
// distance instead.
func Deviation(value float64, r lab.Range) float64 {
	var bound, dist float64
	switch {
	case value < r.Low:
		bound, dist = r.Low, r.Low-value
	case value > r.High:
		bound, dist = r.High, value-r.High
	default:
		return 0
	}
	if bound == 0 {
		return dist
	}
	return dist / math.Abs(bound)
}
