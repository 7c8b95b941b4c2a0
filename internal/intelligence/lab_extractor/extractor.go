// Package lab_extractor finds test-name/value/unit/range mentions in report
// text and resolves their names against the laboratory knowledge base.
//
// Extraction is a tokenizer followed by an ordered list of pattern rules.
// Each rule is a pure function of a tokenized line, so rules can be tested
// and reordered independently of resolution. Extraction never fails: lines
// without a parseable measurement are skipped.
package lab_extractor

import (
	"strings"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// Span is a half-open byte interval of the normalized text.
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Candidate is a provisional, unresolved measurement mention.
type Candidate struct {
	Raw         string
	Name        string
	Value       float64
	Unit        string
	InlineRange *lab.Range
	Span        Span
	Line        int
	Rule        string
}

// ignoredNames are report furniture that parse like measurements.
var ignoredNames = map[string]bool{
	"age":   true,
	"page":  true,
	"date":  true,
	"time":  true,
	"id":    true,
	"no":    true,
	"mrn":   true,
	"phone": true,
	"tel":   true,
}

// Extractor scans report text for Candidates.
type Extractor struct {
	rules  []Rule
	logger logging.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRules replaces the default rule list.
func WithRules(rules ...Rule) Option {
	return func(x *Extractor) { x.rules = rules }
}

// WithLogger sets the logger used for low-confidence diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(x *Extractor) { x.logger = l }
}

// NewExtractor returns an Extractor with DefaultRules.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{
		rules:  DefaultRules(),
		logger: logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(x)
	}
	if x.logger == nil {
		x.logger = logging.NewNopLogger()
	}
	return x
}

// Rules returns the rule names in priority order.
func (x *Extractor) Rules() []string {
	names := make([]string, len(x.rules))
	for i, r := range x.rules {
		names[i] = r.Name
	}
	return names
}

// Extract returns every Candidate in text in order of appearance. When the
// line-by-line pass yields nothing, the whole text is scanned once as a single
// line so that mentions broken across lines are still found.
func (x *Extractor) Extract(text string) []Candidate {
	normalized := Normalize(text)
	if strings.TrimSpace(normalized) == "" {
		return nil
	}

	var out []Candidate
	offset := 0
	for i, raw := range strings.Split(normalized, "\n") {
		line := Line{Number: i + 1, Text: raw, Offset: offset, Tokens: Tokenize(raw, offset)}
		found := x.scanLine(line)
		if len(found) == 0 {
			x.logLowConfidence(line)
		}
		out = append(out, found...)
		offset += len(raw) + 1
	}

	if len(out) == 0 && strings.Contains(normalized, "\n") {
		flat := strings.ReplaceAll(normalized, "\n", " ")
		out = x.scanLine(Line{Number: 0, Text: flat, Tokens: Tokenize(flat, 0)})
	}
	return out
}

func (x *Extractor) scanLine(line Line) []Candidate {
	var out []Candidate
	toks := line.Tokens
	for i := 0; i < len(toks); {
		if toks[i].Kind != TokenWord {
			i++
			continue
		}
		c, end, ok := x.apply(line, i)
		if !ok {
			i = skipWords(toks, i)
			continue
		}
		i = end
		if ignoredNames[strings.ToLower(c.Name)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (x *Extractor) apply(line Line, at int) (Candidate, int, bool) {
	for _, r := range x.rules {
		c, end, ok := r.Apply(line, at)
		if !ok || end <= at {
			continue
		}
		c.Rule = r.Name
		c.Line = line.Number
		return c, end, true
	}
	return Candidate{}, 0, false
}

// logLowConfidence reports lines that carry several numbers or malformed
// numbers but matched no rule.
func (x *Extractor) logLowConfidence(line Line) {
	numbers, malformed := 0, 0
	for _, t := range line.Tokens {
		switch t.Kind {
		case TokenNumber:
			numbers++
		case TokenMalformed:
			malformed++
		}
	}
	if malformed > 0 {
		x.logger.Debug("discarding malformed numeric token",
			logging.Int("line", line.Number),
			logging.Int("malformed", malformed))
	}
	if numbers >= 2 {
		x.logger.Debug("low-confidence line skipped",
			logging.Int("line", line.Number),
			logging.Int("numbers", numbers),
			logging.Int("length", len(line.Text)))
	}
}

func skipWords(toks []Token, i int) int {
	for i < len(toks) && toks[i].Kind == TokenWord {
		i++
	}
	return i
}
