package router

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

const (
	trigramFloor       = 0.2
	trigramShortRunes  = 5
	trigramSubstrScore = 0.5
)

// TrigramMatcher ranks services by trigram similarity between the utterance
// and the service name or description, in the manner of pg_trgm.
type TrigramMatcher struct {
	catalog CatalogProvider

	mu      sync.Mutex
	indexed *catalog.Snapshot
	grams   []serviceGrams
}

type serviceGrams struct {
	service *catalog.Service
	name    string
	desc    string
	nameSet map[string]struct{}
	descSet map[string]struct{}
}

// NewTrigramMatcher creates a trigram matcher.
func NewTrigramMatcher(provider CatalogProvider) *TrigramMatcher {
	return &TrigramMatcher{catalog: provider}
}

func (m *TrigramMatcher) Source() Source { return SourceTrigram }

func (m *TrigramMatcher) Search(ctx context.Context, utterance string) Result {
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return Failed(SourceTrigram, err)
	}

	norm := lexicon.Normalize(utterance)
	if norm == "" {
		return NewResult(SourceTrigram, nil)
	}
	short := utf8.RuneCountInString(norm) < trigramShortRunes
	query := Trigrams(norm)

	var cands []Candidate
	for _, sg := range m.index(snap) {
		var score float64
		if short {
			if strings.Contains(sg.name, norm) || strings.Contains(sg.desc, norm) {
				score = trigramSubstrScore
			}
		} else {
			score = max(Similarity(query, sg.nameSet), Similarity(query, sg.descSet))
		}
		if score < trigramFloor {
			continue
		}
		cands = append(cands, Candidate{
			ServiceID:   sg.service.ID,
			ServiceName: sg.service.Name,
			Confidence:  round3(score),
			Source:      SourceTrigram,
		})
	}
	sortCandidates(cands)
	return NewResult(SourceTrigram, limit(cands, trigramLimit(norm)))
}

// trigramLimit adapts the number of results to the size of the utterance.
func trigramLimit(norm string) int {
	words := len(strings.Fields(norm))
	runes := utf8.RuneCountInString(norm)
	switch {
	case words <= 2 && runes < 15:
		return 5
	case words <= 5 && runes < 40:
		return 7
	default:
		return 10
	}
}

func (m *TrigramMatcher) index(snap *catalog.Snapshot) []serviceGrams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexed == snap {
		return m.grams
	}

	idx := make([]serviceGrams, 0, snap.Len())
	for _, svc := range snap.Services() {
		name := lexicon.Normalize(svc.Name)
		desc := lexicon.Normalize(svc.Description)
		idx = append(idx, serviceGrams{
			service: svc,
			name:    name,
			desc:    desc,
			nameSet: Trigrams(name),
			descSet: Trigrams(desc),
		})
	}
	m.indexed, m.grams = snap, idx
	return idx
}

// Trigrams returns the trigram set of a normalized string. Every word is
// padded with two leading and one trailing space before splitting.
func Trigrams(norm string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(norm) {
		r := []rune("  " + word + " ")
		for i := 0; i+3 <= len(r); i++ {
			set[string(r[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity is the Jaccard index of two trigram sets.
func Similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
