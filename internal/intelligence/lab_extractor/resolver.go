package lab_extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
)

// ResolutionMethod records which matching step resolved a name.
type ResolutionMethod string

const (
	MethodExactKey     ResolutionMethod = "exact_key"
	MethodExactSynonym ResolutionMethod = "exact_synonym"
	MethodContainment  ResolutionMethod = "containment"
	MethodNotFound     ResolutionMethod = "not_found"
)

// Resolution is the outcome of resolving one candidate name. Entry points
// into the knowledge base and is nil when Method is MethodNotFound.
type Resolution struct {
	Entry   *lab_kb.Entry
	Method  ResolutionMethod
	Matched string
}

// Resolved reports whether an entry was found.
func (r Resolution) Resolved() bool { return r.Entry != nil }

// Resolver maps candidate names to knowledge base entries. It only reads the
// knowledge base and is safe for concurrent use.
type Resolver struct {
	kb *lab_kb.KnowledgeBase
}

// NewResolver returns a Resolver over kb.
func NewResolver(kb *lab_kb.KnowledgeBase) *Resolver {
	return &Resolver{kb: kb}
}

// Resolve tries, in order: exact key, exact synonym, then whole-word
// containment of a key or synonym in name, longest synonym first.
func (r *Resolver) Resolve(name string) Resolution {
	n := lab_kb.NormalizeName(name)
	if n == "" {
		return Resolution{Method: MethodNotFound}
	}

	forms := []string{n}
	if spaced := strings.ReplaceAll(n, "-", " "); spaced != n {
		forms = append(forms, spaced)
	}

	for _, f := range forms {
		if e, ok := r.kb.LookupKey(f); ok {
			return Resolution{Entry: e, Method: MethodExactKey, Matched: f}
		}
	}
	for _, f := range forms {
		if e, ok := r.kb.LookupSynonym(f); ok {
			return Resolution{Entry: e, Method: MethodExactSynonym, Matched: f}
		}
	}

	for _, ref := range r.kb.SynonymsBySize() {
		for _, f := range forms {
			if containsWord(f, ref.Text) {
				return Resolution{Entry: ref.Entry, Method: MethodContainment, Matched: ref.Text}
			}
		}
	}
	return Resolution{Method: MethodNotFound}
}

// containsWord reports whether word occurs in s bounded on both sides by the
// string edge or a rune that is neither a letter nor a digit.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from <= len(s)-len(word); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if isBoundary(s, start, true) && isBoundary(s, end, false) {
			return true
		}
		_, w := utf8.DecodeRuneInString(s[start:])
		from = start + w
	}
	return false
}

func isBoundary(s string, at int, before bool) bool {
	var r rune
	if before {
		if at == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(s[:at])
	} else {
		if at >= len(s) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(s[at:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
