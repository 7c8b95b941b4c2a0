// Package lab_kb holds the laboratory test knowledge base: canonical tests,
// their synonyms, categories, reference ranges and explanation templates.
//
// A KnowledgeBase is built once at process start by New and is never mutated
// afterwards, so it is safe for concurrent readers without locking. Build
// failures (duplicate keys, a synonym claimed by two tests, invalid ranges)
// are returned as *errors.AppError and must stop the process before it
// accepts traffic.
package lab_kb

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// KnowledgeBase is the immutable, process-wide table of known tests.
type KnowledgeBase struct {
	version   string
	entries   []*Entry
	byKey     map[string]*Entry
	byName    map[string]*Entry
	bySize    []SynonymRef
	advice    Advice
	templates Templates
}

// NormalizeName lower-cases s and collapses internal whitespace. It is the
// canonical form for keys, synonyms and candidate names.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// New builds a KnowledgeBase from a parsed document.
func New(doc *Document) (*KnowledgeBase, error) {
	if doc == nil || len(doc.Tests) == 0 {
		return nil, errors.New(errors.ErrCodeKBInvalidEntry, "knowledge base has no tests")
	}

	kb := &KnowledgeBase{
		version: doc.Version,
		entries: make([]*Entry, 0, len(doc.Tests)),
		byKey:   make(map[string]*Entry, len(doc.Tests)),
		byName:  make(map[string]*Entry, len(doc.Tests)*4),
	}

	for i, def := range doc.Tests {
		e, err := buildEntry(i, def)
		if err != nil {
			return nil, err
		}
		if _, dup := kb.byKey[e.Key]; dup {
			return nil, errors.New(errors.ErrCodeKBDuplicateKey, "duplicate test key").WithDetail(e.Key)
		}
		kb.byKey[e.Key] = e
		kb.entries = append(kb.entries, e)
	}

	// Synonyms are indexed after all keys so that a synonym colliding with a
	// later entry's key is reported regardless of declaration order.
	for _, e := range kb.entries {
		for _, syn := range e.Synonyms {
			if owner, ok := kb.byName[syn]; ok && owner != e {
				return nil, errors.New(errors.ErrCodeKBDuplicateSynonym, "synonym claimed by two tests").
					WithDetailf("%q claimed by %s and %s", syn, owner.Key, e.Key)
			}
			if owner, ok := kb.byKey[syn]; ok && owner != e {
				return nil, errors.New(errors.ErrCodeKBDuplicateSynonym, "synonym collides with another test key").
					WithDetailf("%q claimed by %s and %s", syn, owner.Key, e.Key)
			}
			kb.byName[syn] = e
			kb.bySize = append(kb.bySize, SynonymRef{Text: syn, Entry: e})
		}
	}

	sort.SliceStable(kb.bySize, func(i, j int) bool {
		return utf8.RuneCountInString(kb.bySize[i].Text) > utf8.RuneCountInString(kb.bySize[j].Text)
	})

	kb.advice = buildAdvice(doc.Advice)
	kb.templates = buildTemplates(doc.Templates)
	return kb, nil
}

func buildEntry(order int, def TestDef) (*Entry, error) {
	key := NormalizeName(def.Key)
	if key == "" {
		return nil, errors.New(errors.ErrCodeKBInvalidEntry, "test key is empty").WithDetailf("entry #%d", order)
	}
	if strings.TrimSpace(def.Name) == "" {
		return nil, errors.New(errors.ErrCodeKBInvalidEntry, "test name is empty").WithDetail(key)
	}

	category := lab.Category(def.Category)
	if !category.IsKnown() {
		return nil, errors.New(errors.ErrCodeKBInvalidEntry, "unknown category").
			WithDetailf("%s: %q", key, def.Category)
	}

	e := &Entry{
		Key:                 key,
		DisplayName:         strings.TrimSpace(def.Name),
		Category:            category,
		Unit:                strings.TrimSpace(def.Unit),
		Description:         strings.TrimSpace(def.Description),
		ExplanationTemplate: def.Explanation,
		order:               order,
	}

	if def.Range != nil {
		r := lab.Range{Low: def.Range.Low, High: def.Range.High}
		if !r.Valid() {
			return nil, errors.New(errors.ErrCodeKBInvalidEntry, "range low exceeds high").WithDetail(key)
		}
		e.Range = &r
	}
	if def.Critical != nil {
		e.CriticalLow = copyFloat(def.Critical.Low)
		e.CriticalHigh = copyFloat(def.Critical.High)
	}
	if e.Range != nil {
		if e.CriticalLow != nil && *e.CriticalLow > e.Range.Low {
			return nil, errors.New(errors.ErrCodeKBInvalidEntry, "critical low above range low").WithDetail(key)
		}
		if e.CriticalHigh != nil && *e.CriticalHigh < e.Range.High {
			return nil, errors.New(errors.ErrCodeKBInvalidEntry, "critical high below range high").WithDetail(key)
		}
	}

	if len(def.Notes) > 0 {
		e.Notes = make(map[lab.Status]string, len(def.Notes))
		for s, n := range def.Notes {
			status := lab.Status(s)
			if !status.IsValid() {
				return nil, errors.New(errors.ErrCodeKBInvalidEntry, "note for unknown status").
					WithDetailf("%s: %q", key, s)
			}
			e.Notes[status] = n
		}
	}

	seen := make(map[string]bool, len(def.Synonyms)+2)
	add := func(s string) {
		n := NormalizeName(s)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		e.Synonyms = append(e.Synonyms, n)
	}
	add(key)
	// Hyphenated keys such as "cholesterol-total" read naturally with a space.
	if strings.Contains(key, "-") {
		add(strings.ReplaceAll(key, "-", " "))
	}
	add(e.DisplayName)
	for _, s := range def.Synonyms {
		add(s)
	}

	return e, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func buildAdvice(def AdviceDef) Advice {
	a := Advice{
		General:    def.General,
		Urgent:     def.Urgent,
		FollowUp:   def.FollowUp,
		Disclaimer: def.Disclaimer,
		Categories: make(map[lab.Category][]string, len(def.Categories)),
	}
	for c, items := range def.Categories {
		a.Categories[lab.Category(c)] = items
	}
	return a
}

func buildTemplates(def TemplatesDef) Templates {
	t := Templates{
		Explanation:             def.Explanation,
		UnclassifiedExplanation: def.Unclassified,
		Notes:                   make(map[lab.Status]string, len(def.Notes)),
	}
	for s, n := range def.Notes {
		t.Notes[lab.Status(s)] = n
	}
	return t
}

// Lookup returns the entry whose key or synonym equals name after
// normalization.
func (kb *KnowledgeBase) Lookup(name string) (*Entry, bool) {
	n := NormalizeName(name)
	if e, ok := kb.byKey[n]; ok {
		return e, true
	}
	e, ok := kb.byName[n]
	return e, ok
}

// LookupKey returns the entry with exactly the given canonical key.
func (kb *KnowledgeBase) LookupKey(key string) (*Entry, bool) {
	e, ok := kb.byKey[NormalizeName(key)]
	return e, ok
}

// LookupSynonym returns the entry owning the normalized synonym.
func (kb *KnowledgeBase) LookupSynonym(name string) (*Entry, bool) {
	e, ok := kb.byName[NormalizeName(name)]
	return e, ok
}

// SynonymsBySize returns every synonym, longest first, ties in declaration
// order. The returned slice is shared and must not be modified.
func (kb *KnowledgeBase) SynonymsBySize() []SynonymRef {
	return kb.bySize
}

// Entries returns the entries in declaration order. The returned slice is
// shared and must not be modified.
func (kb *KnowledgeBase) Entries() []*Entry {
	return kb.entries
}

// Len returns the number of entries.
func (kb *KnowledgeBase) Len() int { return len(kb.entries) }

// Version returns the document version string.
func (kb *KnowledgeBase) Version() string { return kb.version }

// Advice returns the recommendation blocks.
func (kb *KnowledgeBase) Advice() Advice { return kb.advice }

// CategoryAdvice returns the advice list for category c.
func (kb *KnowledgeBase) CategoryAdvice(c lab.Category) []string {
	return kb.advice.Categories[c]
}

// Templates returns the document-wide templates.
func (kb *KnowledgeBase) Templates() Templates { return kb.templates }
