package lab_extractor

import (
	"strings"
	"unicode"

	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// maxNameWords bounds the name run. Longer runs keep their trailing words,
// which is where the test name sits in prose ("the patient's fasting glucose").
const maxNameWords = 8

// Line is one unit of scanning: a line of the report, or the whole text when
// the line-by-line pass finds nothing.
type Line struct {
	Number int
	Text   string
	Offset int
	Tokens []Token
}

func (l Line) slice(start, end int) string {
	return l.Text[start-l.Offset : end-l.Offset]
}

// RuleFunc tries to read one Candidate from line starting at token index at.
// It returns the index of the first token after the match. Rules must not
// keep state between calls.
type RuleFunc func(line Line, at int) (Candidate, int, bool)

// Rule is a named pattern rule. Rules are tried in order and the first match
// wins.
type Rule struct {
	Name  string
	Apply RuleFunc
}

const (
	RuleSeparated = "name-sep-value"
	RuleRanged    = "name-value-range"
	RuleAdjacent  = "name-value"
)

// DefaultRules returns the built-in rules in priority order:
//
//	Hemoglobin: 14.2 g/dL (13.8-17.2)    name-sep-value
//	Hemoglobin 14.2 g/dL 13.8 - 17.2     name-value-range
//	Hemoglobin 14.2 g/dL                 name-value
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleSeparated, Apply: matchSeparated},
		{Name: RuleRanged, Apply: matchRanged},
		{Name: RuleAdjacent, Apply: matchAdjacent},
	}
}

func matchSeparated(line Line, at int) (Candidate, int, bool) {
	n, ok := scanName(line.Tokens, at)
	if !ok {
		return Candidate{}, 0, false
	}
	j, seps := n.end, 0
	for j < len(line.Tokens) && seps < 2 && isSeparator(line.Tokens[j]) && !isSign(line.Tokens, j) {
		j++
		seps++
	}
	if seps == 0 {
		return Candidate{}, 0, false
	}
	v, ok := scanValue(line.Tokens, j)
	if !ok {
		return Candidate{}, 0, false
	}
	return buildCandidate(line, n, v), v.end, true
}

func matchRanged(line Line, at int) (Candidate, int, bool) {
	n, ok := scanName(line.Tokens, at)
	if !ok {
		return Candidate{}, 0, false
	}
	v, ok := scanValue(line.Tokens, n.end)
	if !ok || v.rng == nil {
		return Candidate{}, 0, false
	}
	return buildCandidate(line, n, v), v.end, true
}

func matchAdjacent(line Line, at int) (Candidate, int, bool) {
	n, ok := scanName(line.Tokens, at)
	if !ok {
		return Candidate{}, 0, false
	}
	v, ok := scanValue(line.Tokens, n.end)
	if !ok {
		return Candidate{}, 0, false
	}
	// A second bare number right after the value leaves no way to tell which
	// one belongs to the name.
	if v.end < len(line.Tokens) {
		if k := line.Tokens[v.end].Kind; k == TokenNumber || k == TokenMalformed {
			return Candidate{}, 0, false
		}
	}
	return buildCandidate(line, n, v), v.end, true
}

// ---------------------------------------------------------------------------
// Shared scanners
// ---------------------------------------------------------------------------

type nameMatch struct {
	text  string
	start int // offset of the first kept word
	end   int // token index after the run
}

type valueMatch struct {
	value   float64
	unit    string
	rng     *lab.Range
	endByte int
	end     int
}

var separatorWords = map[string]bool{"is": true, "was": true}

func isSeparator(t Token) bool {
	switch t.Kind {
	case TokenColon, TokenEquals, TokenDash:
		return true
	case TokenWord:
		return separatorWords[strings.ToLower(t.Text)]
	}
	return false
}

func isNameWord(t Token) bool {
	return t.Kind == TokenWord && !separatorWords[strings.ToLower(t.Text)] && hasLetter(t.Text)
}

// scanName reads a maximal run of name words starting at at. Dashes and
// commas between words and parenthesized word groups ("Glucose (Fasting)")
// are part of the run.
func scanName(toks []Token, at int) (nameMatch, bool) {
	if at >= len(toks) || !isNameWord(toks[at]) {
		return nameMatch{}, false
	}
	var words []Token
	j := at
	for j < len(toks) {
		t := toks[j]
		switch {
		case isNameWord(t):
			words = append(words, t)
			j++
			continue
		case (t.Kind == TokenDash || t.Kind == TokenComma) && j+1 < len(toks) && isNameWord(toks[j+1]):
			j++
			continue
		case t.Kind == TokenOpen:
			if k, inner := parenWords(toks, j); k > j {
				words = append(words, inner...)
				j = k
				continue
			}
		}
		break
	}
	if len(words) > maxNameWords {
		words = words[len(words)-maxNameWords:]
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return nameMatch{text: strings.Join(parts, " "), start: words[0].Start, end: j}, true
}

// parenWords matches "(" word+ ")" at j and returns the index after ")".
func parenWords(toks []Token, j int) (int, []Token) {
	k := j + 1
	var inner []Token
	for k < len(toks) && isNameWord(toks[k]) {
		inner = append(inner, toks[k])
		k++
	}
	if len(inner) == 0 || k >= len(toks) || toks[k].Kind != TokenClose {
		return j, nil
	}
	return k + 1, inner
}

// isSign reports whether the dash at j is a minus sign: it touches the
// number after it and is detached from, or follows punctuation after, the
// token before it. "Potassium-4.2" keeps the dash as a separator.
func isSign(toks []Token, j int) bool {
	if j+1 >= len(toks) || toks[j].Kind != TokenDash || toks[j+1].Kind != TokenNumber {
		return false
	}
	if toks[j].End != toks[j+1].Start {
		return false
	}
	if j == 0 || toks[j-1].End < toks[j].Start {
		return true
	}
	switch toks[j-1].Kind {
	case TokenColon, TokenEquals, TokenOpen, TokenDash:
		return true
	}
	return false
}

// scanNumber reads an optionally signed number at j.
func scanNumber(toks []Token, j int) (float64, int, bool) {
	if j < len(toks) && toks[j].Kind == TokenNumber {
		return toks[j].Value, j + 1, true
	}
	if isSign(toks, j) {
		return -toks[j+1].Value, j + 2, true
	}
	return 0, j, false
}

// scanValue reads <number> <unit>? <range>? at j.
func scanValue(toks []Token, j int) (valueMatch, bool) {
	value, next, ok := scanNumber(toks, j)
	if !ok {
		return valueMatch{}, false
	}
	v := valueMatch{value: value, endByte: toks[next-1].End, end: next}

	if unit, k := scanUnit(toks, v.end); k > v.end {
		v.unit = unit
		v.endByte = toks[k-1].End
		v.end = k
	}
	if rng, k, ok := scanRange(toks, v.end); ok {
		v.rng = &rng
		v.endByte = toks[k-1].End
		v.end = k
		// Some reports print the unit after the range.
		if v.unit == "" {
			if unit, k2 := scanUnit(toks, k); k2 > k {
				v.unit = unit
				v.endByte = toks[k2-1].End
				v.end = k2
			}
		}
	}
	return v, true
}

var unitWords = map[string]bool{
	"g": true, "mg": true, "mcg": true, "ug": true, "μg": true, "ng": true, "pg": true,
	"fl": true, "iu": true, "miu": true, "u": true, "meq": true, "mmol": true,
	"umol": true, "μmol": true, "mmhg": true, "ratio": true, "sec": true,
	"secs": true, "seconds": true, "cells": true, "lakh": true, "lakhs": true,
	"million": true, "thousand": true,
}

func looksLikeUnit(w string) bool {
	if strings.ContainsAny(w, "/%^") {
		return true
	}
	return unitWords[strings.ToLower(w)]
}

// scanUnit reads one unit word, optionally prefixed by a multiplication sign
// written as a separate word ("x 10^9/L").
func scanUnit(toks []Token, j int) (string, int) {
	if j >= len(toks) || toks[j].Kind != TokenWord {
		return "", j
	}
	w := toks[j].Text
	if (w == "x" || w == "×") && j+1 < len(toks) && toks[j+1].Kind == TokenWord && looksLikeUnit(toks[j+1].Text) {
		return w + toks[j+1].Text, j + 2
	}
	if looksLikeUnit(w) {
		return w, j + 1
	}
	return "", j
}

// scanRange reads "(low-high)", "[Ref: low - high]", "low-high" or
// "low to high" at j. Reversed bounds are rejected.
func scanRange(toks []Token, j int) (lab.Range, int, bool) {
	k := j
	opened := false
	if k < len(toks) && toks[k].Kind == TokenOpen {
		opened = true
		k++
		for words := 0; k < len(toks) && toks[k].Kind == TokenWord && words < 3; words++ {
			k++
		}
		if k < len(toks) && toks[k].Kind == TokenColon {
			k++
		}
	}
	low, k, ok := scanNumber(toks, k)
	if !ok || k >= len(toks) || !isRangeJoin(toks[k]) {
		return lab.Range{}, j, false
	}
	high, k, ok := scanNumber(toks, k+1)
	if !ok {
		return lab.Range{}, j, false
	}
	r := lab.Range{Low: low, High: high}
	if opened && k < len(toks) && toks[k].Kind == TokenClose {
		k++
	}
	if !r.Valid() {
		return lab.Range{}, j, false
	}
	return r, k, true
}

func isRangeJoin(t Token) bool {
	return t.Kind == TokenDash || (t.Kind == TokenWord && strings.EqualFold(t.Text, "to"))
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func buildCandidate(line Line, n nameMatch, v valueMatch) Candidate {
	return Candidate{
		Raw:         line.slice(n.start, v.endByte),
		Name:        n.text,
		Value:       v.value,
		Unit:        cleanUnit(v.unit),
		InlineRange: v.rng,
		Span:        Span{Start: n.start, End: v.endByte},
		Line:        line.Number,
	}
}

func cleanUnit(u string) string {
	return strings.Trim(u, ".,;:")
}
