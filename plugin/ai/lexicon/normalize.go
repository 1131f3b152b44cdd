// Package lexicon holds the language knowledge of the funnel: text
// normalization, stemming, the trivial-turn vocabulary and the data-driven
// feature table used by the semantic matcher and the keyword extractor.
package lexicon

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/kljensen/snowball/russian"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}]+)*`)

	// Expanded per token, so "ул" in "улица" is never touched.
	abbreviations = map[string]string{
		"ул":   "улица",
		"пр":   "проспект",
		"пр-т": "проспект",
		"пер":  "переулок",
		"б-р":  "бульвар",
		"бул":  "бульвар",
		"гвс":  "горячая вода",
		"хвс":  "холодная вода",
		"ук":   "управляющая компания",
	}

	stemCache sync.Map
)

// Fold lower-cases s in NFC form and replaces ё with е.
// Punctuation is preserved, so Fold is safe for regex-based parsing.
func Fold(s string) string {
	s = norm.NFC.String(s)
	// A Caser carries state, so it is never shared between goroutines.
	s = cases.Lower(language.Russian).String(s)
	return strings.ReplaceAll(s, "ё", "е")
}

// Tokens folds s, splits it into word tokens and expands abbreviations.
func Tokens(s string) []string {
	raw := tokenPattern.FindAllString(Fold(s), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if expanded, ok := abbreviations[tok]; ok {
			tokens = append(tokens, strings.Fields(expanded)...)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Normalize returns the space-joined tokens of s.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Stem reduces a folded word to its stem. Cyrillic words use the Russian
// stemmer, Latin words the English one, anything else is returned as is.
func Stem(word string) string {
	if cached, ok := stemCache.Load(word); ok {
		return cached.(string)
	}

	var stem string
	switch script(word) {
	case unicode.Cyrillic:
		stem = russian.Stem(word, false)
	case unicode.Latin:
		stem = english.Stem(word, false)
	default:
		stem = word
	}
	if stem == "" {
		stem = word
	}
	stemCache.Store(word, stem)
	return stem
}

func script(word string) *unicode.RangeTable {
	for _, r := range word {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			return unicode.Cyrillic
		case unicode.Is(unicode.Latin, r):
			return unicode.Latin
		}
	}
	return nil
}

// Text is an analyzed utterance.
type Text struct {
	// Norm is the space-joined token string padded with spaces on both ends,
	// so " phrase " lookups match whole words only.
	Norm   string
	Tokens []string
	Stems  []string
}

// Analyze tokenizes and stems s.
func Analyze(s string) *Text {
	tokens := Tokens(s)
	stems := make([]string, len(tokens))
	for i, tok := range tokens {
		stems[i] = Stem(tok)
	}
	return &Text{
		Norm:   " " + strings.Join(tokens, " ") + " ",
		Tokens: tokens,
		Stems:  stems,
	}
}

// RuneLen is the length of the normalized text in runes, without padding.
func (t *Text) RuneLen() int {
	return len([]rune(strings.TrimSpace(t.Norm)))
}

// HasStem reports whether any token stems to stem.
func (t *Text) HasStem(stem string) bool {
	for _, s := range t.Stems {
		if s == stem {
			return true
		}
	}
	return false
}

// HasStemSequence reports whether stems occur contiguously in order.
func (t *Text) HasStemSequence(stems []string) bool {
	if len(stems) == 0 || len(stems) > len(t.Stems) {
		return false
	}
outer:
	for i := 0; i+len(stems) <= len(t.Stems); i++ {
		for j, s := range stems {
			if t.Stems[i+j] != s {
				continue outer
			}
		}
		return true
	}
	return false
}

// Keyword is a compiled single word or phrase.
type Keyword struct {
	Raw   string
	Norm  string
	Stems []string
}

// NewKeyword analyzes a keyword once so matching is cheap.
func NewKeyword(raw string) Keyword {
	t := Analyze(raw)
	return Keyword{Raw: raw, Norm: strings.TrimSpace(t.Norm), Stems: t.Stems}
}

// MatchedBy reports whether the keyword occurs in t. Single words match by
// stem equality, phrases by whole-word substring or by their stem sequence.
func (k Keyword) MatchedBy(t *Text) bool {
	switch len(k.Stems) {
	case 0:
		return false
	case 1:
		return t.HasStem(k.Stems[0])
	default:
		return strings.Contains(t.Norm, " "+k.Norm+" ") || t.HasStemSequence(k.Stems)
	}
}
