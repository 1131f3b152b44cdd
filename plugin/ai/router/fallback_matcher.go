package router

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

const (
	fallbackConfidence = 0.3
	// A name word may carry at most this many runes beyond the matched stem.
	fallbackMaxSuffix = 4
)

// FallbackMatcher is the cheap keyword match run when every fast classifier
// came back empty. Utterance stems are matched fuzzily against the words of
// service names.
type FallbackMatcher struct {
	catalog CatalogProvider
}

// NewFallbackMatcher creates the fallback matcher.
func NewFallbackMatcher(provider CatalogProvider) *FallbackMatcher {
	return &FallbackMatcher{catalog: provider}
}

func (m *FallbackMatcher) Source() Source { return SourceFallback }

// nameWords adapts the words of all service names to fuzzy.Source.
type nameWords struct {
	words    []string
	services []*catalog.Service
}

func (n nameWords) String(i int) string { return n.words[i] }
func (n nameWords) Len() int            { return len(n.words) }

func newNameWords(snap *catalog.Snapshot) nameWords {
	var nw nameWords
	for _, svc := range snap.Services() {
		for _, w := range lexicon.Tokens(svc.Name) {
			if utf8.RuneCountInString(w) >= minTagTokenLen {
				nw.words = append(nw.words, w)
				nw.services = append(nw.services, svc)
			}
		}
	}
	return nw
}

func (m *FallbackMatcher) Search(ctx context.Context, utterance string) Result {
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return Failed(SourceFallback, err)
	}

	source := newNameWords(snap)
	seen := make(map[int32]bool)
	var cands []Candidate
	for _, tok := range lexicon.Tokens(utterance) {
		if utf8.RuneCountInString(tok) < minTagTokenLen {
			continue
		}
		stem := lexicon.Stem(tok)
		for _, match := range fuzzy.FindFrom(stem, source) {
			word := source.words[match.Index]
			if !closeWord(stem, word) {
				continue
			}
			svc := source.services[match.Index]
			if seen[svc.ID] {
				continue
			}
			seen[svc.ID] = true
			cands = append(cands, Candidate{
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				Confidence:  fallbackConfidence,
				Source:      SourceFallback,
			})
		}
	}
	sortCandidates(cands)
	return NewResult(SourceFallback, cands)
}

// closeWord accepts a fuzzy hit only when the word starts like the stem and
// is not much longer than it.
func closeWord(stem, word string) bool {
	first, _ := utf8.DecodeRuneInString(stem)
	if !strings.HasPrefix(word, string(first)) {
		return false
	}
	return utf8.RuneCountInString(word)-utf8.RuneCountInString(stem) <= fallbackMaxSuffix
}
