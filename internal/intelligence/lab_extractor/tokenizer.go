package lab_extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Token kinds
// ---------------------------------------------------------------------------

// TokenKind classifies a lexical unit of a report line.
type TokenKind int

const (
	TokenWord      TokenKind = iota // letters, units and alphanumeric names ("HbA1c", "mg/dL")
	TokenNumber                     // a well-formed decimal number
	TokenMalformed                  // digits that do not form a valid number ("14.2.3")
	TokenCompound                   // dates, ratios and clock times ("12/05/2024", "120/80")
	TokenColon
	TokenEquals
	TokenDash
	TokenOpen
	TokenClose
	TokenComma
	TokenDelim
	TokenOther
)

func (k TokenKind) String() string {
	switch k {
	case TokenWord:
		return "word"
	case TokenNumber:
		return "number"
	case TokenMalformed:
		return "malformed"
	case TokenCompound:
		return "compound"
	case TokenColon:
		return "colon"
	case TokenEquals:
		return "equals"
	case TokenDash:
		return "dash"
	case TokenOpen:
		return "open"
	case TokenClose:
		return "close"
	case TokenComma:
		return "comma"
	case TokenDelim:
		return "delim"
	default:
		return "other"
	}
}

// Token is one lexical unit. Start and End are byte offsets into the
// normalized text passed to the Extractor.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
	Value float64
}

// IsNumber reports whether t carries a parsed numeric value.
func (t Token) IsNumber() bool { return t.Kind == TokenNumber }

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

var dashReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"‐", "-",
	"‑", "-",
	"‒", "-",
	"–", "-",
	"—", "-",
	"−", "-",
)

// Normalize applies NFKC compatibility folding (full-width digits, ligatures,
// non-breaking spaces), unifies dash variants and line endings. All spans
// produced by the Extractor refer to the normalized text.
func Normalize(text string) string {
	return dashReplacer.Replace(norm.NFKC.String(text))
}

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

var (
	numberPattern = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`)
	datePattern   = regexp.MustCompile(`^(\d{1,4}-\d{1,2}-\d{1,4}|\d{1,4}/\d{1,2}/\d{1,4}|\d{1,2}\.\d{1,2}\.\d{2,4})\b`)
)

// Tokenize splits s into tokens. base is added to every offset so that tokens
// of a single line carry offsets into the whole text. Whitespace and the
// column bar '|' separate tokens and are not emitted.
func Tokenize(s string, base int) []Token {
	var toks []Token
	i := 0
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r) || r == '|':
			i += w
		case isASCIIDigit(r):
			tok, end := scanNumeric(s, i)
			tok.Start, tok.End = base+i, base+end
			toks = append(toks, tok)
			i = end
		case isWordStart(r):
			end := scanWord(s, i)
			toks = append(toks, Token{Kind: TokenWord, Text: s[i:end], Start: base + i, End: base + end})
			i = end
		default:
			toks = append(toks, Token{Kind: punctKind(r), Text: s[i : i+w], Start: base + i, End: base + i + w})
			i += w
		}
	}
	return toks
}

func scanNumeric(s string, i int) (Token, int) {
	if m := datePattern.FindString(s[i:]); m != "" {
		return Token{Kind: TokenCompound, Text: m}, i + len(m)
	}

	j := i
	for j < len(s) && (isASCIIDigit(rune(s[j])) || s[j] == '.' || s[j] == ',') {
		j++
	}
	for j > i && (s[j-1] == '.' || s[j-1] == ',') {
		j--
	}

	if j < len(s) {
		switch {
		case (s[j] == '/' || s[j] == ':') && j+1 < len(s) && isASCIIDigit(rune(s[j+1])):
			k := j
			for k < len(s) && (isASCIIDigit(rune(s[k])) || s[k] == s[j] || s[k] == '.') {
				k++
			}
			for k > j && s[k-1] == '.' {
				k--
			}
			return Token{Kind: TokenCompound, Text: s[i:k]}, k
		case s[j] == '^':
			end := scanWord(s, i)
			return Token{Kind: TokenWord, Text: s[i:end]}, end
		}
	}

	text := s[i:j]
	v, ok := parseNumber(text)
	if !ok {
		return Token{Kind: TokenMalformed, Text: text}, j
	}
	return Token{Kind: TokenNumber, Text: text, Value: v}, j
}

// parseNumber accepts plain decimals and comma thousands separators.
func parseNumber(text string) (float64, bool) {
	if !numberPattern.MatchString(text) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func scanWord(s string, i int) int {
	j := i
	for j < len(s) {
		r, w := utf8.DecodeRuneInString(s[j:])
		if isWordRune(r) {
			j += w
			continue
		}
		if j > i && j+w < len(s) {
			next, _ := utf8.DecodeRuneInString(s[j+w:])
			if joins(r, next) {
				j += w
				continue
			}
		}
		break
	}
	return j
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '%' || r == '×'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%' || r == '×'
}

// joins reports whether the connector r glues the current word to next.
func joins(r, next rune) bool {
	switch r {
	case '-', '\'':
		return unicode.IsLetter(next)
	case '/', '^', '.':
		return unicode.IsLetter(next) || unicode.IsDigit(next)
	}
	return false
}

func punctKind(r rune) TokenKind {
	switch r {
	case ':':
		return TokenColon
	case '=':
		return TokenEquals
	case '-':
		return TokenDash
	case '(', '[', '{':
		return TokenOpen
	case ')', ']', '}':
		return TokenClose
	case ',':
		return TokenComma
	case ';':
		return TokenDelim
	default:
		return TokenOther
	}
}
