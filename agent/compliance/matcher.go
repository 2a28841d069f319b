package compliance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

type Kind string

const (
	KindKeyword     Kind = "keyword"
	KindPhrase      Kind = "phrase"
	KindPattern     Kind = "pattern"
	KindSuperlative Kind = "superlative"
	KindWord        Kind = "word"
)

// Expr is a compiled rule. With WholeWord set, a match glued to a letter,
// digit or underscore on either side is discarded.
type Expr struct {
	Re        *regexp.Regexp
	WholeWord bool
}

// Matcher compiles a rule into an Expr.
type Matcher func(r Rule) (Expr, error)

var (
	matchersMu sync.RWMutex
	matchers   = map[Kind]Matcher{
		KindKeyword:     matchTerms,
		KindPhrase:      matchTerms,
		KindPattern:     matchPattern,
		KindSuperlative: matchWholeWords,
		KindWord:        matchWholeWords,
	}
)

// RegisterMatcher adds or replaces the matcher for kind. Documents loaded
// afterwards may use the kind.
func RegisterMatcher(kind Kind, m Matcher) {
	matchersMu.Lock()
	defer matchersMu.Unlock()
	matchers[kind] = m
}

func compile(r Rule) (Rule, error) {
	matchersMu.RLock()
	m, ok := matchers[r.Kind]
	matchersMu.RUnlock()
	if !ok {
		return Rule{}, fmt.Errorf("unknown kind %q", r.Kind)
	}

	expr, err := m(r)
	if err != nil {
		return Rule{}, err
	}
	if expr.Re == nil {
		return Rule{}, errors.New("matcher returned no expression")
	}
	r.expr = expr
	return r, nil
}

// FindAll returns the [start, end) byte spans of every match in text.
func (e Expr) FindAll(text string) [][2]int {
	var out [][2]int
	for _, loc := range e.Re.FindAllStringIndex(text, -1) {
		if e.WholeWord && !(wordEdgeBefore(text, loc[0]) && wordEdgeAfter(text, loc[1])) {
			continue
		}
		out = append(out, [2]int{loc[0], loc[1]})
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r)
}

func wordEdgeBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func wordEdgeAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func termAlternation(terms []string) (string, error) {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return "", errors.New("terms are required")
	}
	return strings.Join(quoted, "|"), nil
}

func matchTerms(r Rule) (Expr, error) {
	alt, err := termAlternation(r.Terms)
	if err != nil {
		return Expr{}, err
	}
	re, err := regexp.Compile(`(?i)(?:` + alt + `)`)
	return Expr{Re: re}, err
}

// matchWholeWords only matches terms not glued to other letters, so "best"
// does not fire inside "bestow". Edges are checked outside the expression so
// that adjacent terms separated by one character both match.
func matchWholeWords(r Rule) (Expr, error) {
	expr, err := matchTerms(r)
	expr.WholeWord = true
	return expr, err
}

func matchPattern(r Rule) (Expr, error) {
	if strings.TrimSpace(r.Pattern) == "" {
		return Expr{}, errors.New("pattern is required")
	}
	re, err := regexp.Compile(r.Pattern)
	return Expr{Re: re}, err
}
