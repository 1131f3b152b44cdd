package router

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

const minTagTokenLen = 3

// TagMatcher qualifies a service when one of its tags shares a stem with the
// utterance. Membership is binary, so every match has confidence 1.0.
type TagMatcher struct {
	catalog CatalogProvider

	mu       sync.Mutex
	indexed  *catalog.Snapshot
	tagIndex []serviceTags
}

type serviceTags struct {
	service *catalog.Service
	stems   map[string]bool
	phrases []lexicon.Keyword
}

// NewTagMatcher creates a tag matcher over the catalog.
func NewTagMatcher(provider CatalogProvider) *TagMatcher {
	return &TagMatcher{catalog: provider}
}

func (m *TagMatcher) Source() Source { return SourceTag }

func (m *TagMatcher) Search(ctx context.Context, utterance string) Result {
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return Failed(SourceTag, err)
	}

	text := lexicon.Analyze(utterance)
	stems := make(map[string]bool, len(text.Tokens))
	for i, tok := range text.Tokens {
		if utf8.RuneCountInString(tok) >= minTagTokenLen {
			stems[text.Stems[i]] = true
		}
	}
	if len(stems) == 0 {
		return NewResult(SourceTag, nil)
	}

	var cands []Candidate
	for _, st := range m.index(snap) {
		if st.matches(text, stems) {
			cands = append(cands, Candidate{
				ServiceID:   st.service.ID,
				ServiceName: st.service.Name,
				Confidence:  1.0,
				Source:      SourceTag,
			})
		}
	}
	return NewResult(SourceTag, cands)
}

func (st serviceTags) matches(text *lexicon.Text, stems map[string]bool) bool {
	for stem := range st.stems {
		if stems[stem] {
			return true
		}
	}
	for _, phrase := range st.phrases {
		if phrase.MatchedBy(text) {
			return true
		}
	}
	return false
}

// index stems the tags once per catalog snapshot. Phrase tags are kept whole
// and also split into their words.
func (m *TagMatcher) index(snap *catalog.Snapshot) []serviceTags {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexed == snap {
		return m.tagIndex
	}

	idx := make([]serviceTags, 0, snap.Len())
	for _, svc := range snap.Services() {
		st := serviceTags{service: svc, stems: make(map[string]bool)}
		for _, tag := range svc.Tags {
			kw := lexicon.NewKeyword(tag)
			if len(kw.Stems) > 1 {
				st.phrases = append(st.phrases, kw)
			}
			for _, tok := range lexicon.Tokens(tag) {
				if utf8.RuneCountInString(tok) >= minTagTokenLen {
					st.stems[lexicon.Stem(tok)] = true
				}
			}
		}
		if len(st.stems) > 0 || len(st.phrases) > 0 {
			idx = append(idx, st)
		}
	}
	m.indexed, m.tagIndex = snap, idx
	return idx
}
