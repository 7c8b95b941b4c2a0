package lab_kb

import (
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// Entry is one canonical laboratory test. Entries are immutable once the
// KnowledgeBase has been built; callers receive pointers and must not modify
// them.
type Entry struct {
	// Key is the canonical, lower-case test key ("hemoglobin", "cholesterol-total").
	Key string

	// DisplayName is the plain-language name shown to patients.
	DisplayName string

	// Synonyms are the normalized names that resolve to this entry. The
	// normalized key and display name are always included.
	Synonyms []string

	Category lab.Category

	// Unit is the default unit, used when the text carries none.
	Unit string

	// Range is the reference interval. nil means the range is unknown.
	Range *lab.Range

	// CriticalLow and CriticalHigh escalate low/high to critical. nil disables
	// escalation on that side.
	CriticalLow  *float64
	CriticalHigh *float64

	// Description is a one-sentence plain-language description of the test.
	Description string

	// ExplanationTemplate overrides the knowledge base default explanation
	// template for this entry.
	ExplanationTemplate string

	// Notes holds per-status note templates that override the defaults.
	Notes map[lab.Status]string

	order int
}

// Order is the declaration index of the entry in its source document.
func (e *Entry) Order() int { return e.order }

// HasRange reports whether a reference range is configured.
func (e *Entry) HasRange() bool { return e.Range != nil }

// Note returns the entry-specific note template for status, if any.
func (e *Entry) Note(status lab.Status) (string, bool) {
	if e.Notes == nil {
		return "", false
	}
	n, ok := e.Notes[status]
	return n, ok && n != ""
}

// SynonymRef links a normalized synonym to the entry that owns it.
type SynonymRef struct {
	Text  string
	Entry *Entry
}

// Advice holds the recommendation text blocks of the knowledge base.
type Advice struct {
	General    []string
	Urgent     []string
	FollowUp   []string
	Disclaimer []string
	Categories map[lab.Category][]string
}

// Templates holds the document-wide text templates.
type Templates struct {
	Explanation             string
	UnclassifiedExplanation string
	Notes                   map[lab.Status]string
}
