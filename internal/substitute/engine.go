// Package substitute rewrites text according to a keyword map.
//
// Rules are applied one after another over a deterministic order (longest key
// first, ties broken by key), each rule seeing the output of the previous
// one. Matching is literal and case-insensitive.
package substitute

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"livesub/internal/models"
)

// Mode selects how a key must sit in the text to match.
type Mode int

const (
	// ExactLine matches only when the whole text equals the key.
	ExactLine Mode = iota
	// WordBoundary matches the key as a standalone word anywhere in the text.
	WordBoundary
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown substitution mode")

func (m Mode) String() string {
	switch m {
	case ExactLine:
		return "exact"
	case WordBoundary:
		return "word"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name. An empty name selects ExactLine.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact", "exact-line", "line":
		return ExactLine, nil
	case "word", "word-boundary", "words":
		return WordBoundary, nil
	}
	return ExactLine, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Rule is one compiled map entry.
type Rule struct {
	Key         string
	Replacement string
	pattern     *regexp.Regexp
	leftWord    bool
	rightWord   bool
	mode        Mode
}

// Compile turns km into an ordered rule list. Empty keys are dropped.
func Compile(km models.KeywordMap, mode Mode) []Rule {
	if len(km) == 0 {
		return nil
	}

	keys := make([]string, 0, len(km))
	for k := range km {
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	rules := make([]Rule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, compileRule(k, km[k], mode))
	}
	return rules
}

func compileRule(key, replacement string, mode Mode) Rule {
	r := Rule{Key: key, Replacement: replacement, mode: mode}
	quoted := regexp.QuoteMeta(key)
	switch mode {
	case ExactLine:
		r.pattern = regexp.MustCompile(`(?is)\A` + quoted + `\z`)
	default:
		r.pattern = regexp.MustCompile(`(?i)` + quoted)
		first, _ := utf8.DecodeRuneInString(key)
		last, _ := utf8.DecodeLastRuneInString(key)
		r.leftWord = isWordRune(first)
		r.rightWord = isWordRune(last)
	}
	return r
}

// Apply rewrites text with every entry of km under mode. A nil or empty map
// returns text unchanged.
func Apply(text string, km models.KeywordMap, mode Mode) string {
	out, _ := ApplyRules(text, Compile(km, mode))
	return out
}

// ApplyRules runs rules sequentially over text and returns the result with
// the keys that fired, in rule order.
func ApplyRules(text string, rules []Rule) (string, []string) {
	var hits []string
	for _, r := range rules {
		next, ok := r.apply(text)
		if ok {
			hits = append(hits, r.Key)
			text = next
		}
	}
	return text, hits
}

func (r Rule) apply(text string) (string, bool) {
	if r.mode == ExactLine {
		if !r.pattern.MatchString(text) {
			return text, false
		}
		return r.Replacement, true
	}

	var b strings.Builder
	last := 0
	matched := false
	for pos := 0; pos <= len(text); {
		loc := r.pattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !r.bounded(text, start, end) {
			// retry one rune later so an overlapping bounded occurrence is seen
			_, size := utf8.DecodeRuneInString(text[start:])
			if size == 0 {
				break
			}
			pos = start + size
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(r.Replacement)
		last = end
		matched = true
		pos = end
	}
	if !matched {
		return text, false
	}
	b.WriteString(text[last:])
	return b.String(), true
}

// bounded reports whether text[start:end] is not glued to a neighbouring word
// rune. A side is only checked when the key itself starts or ends with a
// word rune, so keys like "c++" still match before punctuation.
func (r Rule) bounded(text string, start, end int) bool {
	if r.leftWord && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(prev) {
			return false
		}
	}
	if r.rightWord && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(next) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
