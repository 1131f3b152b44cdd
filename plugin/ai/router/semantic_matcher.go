package router

import (
	"context"
	"math"
	"sync"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

const semanticLimit = 5

// SemanticMatcher scores the utterance against the feature table of the
// lexicon and credits each feature to the services eligible for it.
type SemanticMatcher struct {
	catalog CatalogProvider
	lex     *lexicon.Lexicon

	mu          sync.Mutex
	indexed     *catalog.Snapshot
	eligibility map[*lexicon.Feature][]*catalog.Service
}

// NewSemanticMatcher creates a semantic matcher.
func NewSemanticMatcher(provider CatalogProvider, lex *lexicon.Lexicon) *SemanticMatcher {
	return &SemanticMatcher{catalog: provider, lex: lex}
}

func (m *SemanticMatcher) Source() Source { return SourceSemantic }

// FeatureScore is the strength of one feature in an utterance.
type FeatureScore struct {
	Feature *lexicon.Feature
	Hits    int
	Score   float64
}

// Features returns the features present in the utterance with their scores.
func (m *SemanticMatcher) Features(utterance string) []FeatureScore {
	text := lexicon.Analyze(utterance)
	var out []FeatureScore
	for _, f := range m.lex.Features() {
		hits := f.Hits(text)
		if hits == 0 {
			continue
		}
		strength := math.Min(float64(hits)/m.lex.Saturation, 1)
		out = append(out, FeatureScore{Feature: f, Hits: hits, Score: strength * f.Weight})
	}
	return out
}

func (m *SemanticMatcher) Search(ctx context.Context, utterance string) Result {
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return Failed(SourceSemantic, err)
	}

	features := m.Features(utterance)
	if len(features) == 0 {
		return NewResult(SourceSemantic, nil)
	}

	eligible := m.index(snap)
	scores := make(map[int32]float64)
	for _, fs := range features {
		contribution := fs.Score * m.lex.DimensionFactor(fs.Feature.Dimension)
		for _, svc := range eligible[fs.Feature] {
			scores[svc.ID] += contribution
		}
	}

	var cands []Candidate
	for id, score := range scores {
		score = math.Min(score, 1.0)
		if score <= 0 || score < m.lex.MinScore {
			continue
		}
		svc, _ := snap.Get(id)
		cands = append(cands, Candidate{
			ServiceID:   id,
			ServiceName: svc.Name,
			Confidence:  round3(score),
			Source:      SourceSemantic,
		})
	}
	sortCandidates(cands)
	return NewResult(SourceSemantic, limit(cands, semanticLimit))
}

// index evaluates feature eligibility once per catalog snapshot.
func (m *SemanticMatcher) index(snap *catalog.Snapshot) map[*lexicon.Feature][]*catalog.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexed == snap {
		return m.eligibility
	}

	idx := make(map[*lexicon.Feature][]*catalog.Service)
	for _, f := range m.lex.Features() {
		for _, svc := range snap.Services() {
			if f.Eligible(svc) {
				idx[f] = append(idx[f], svc)
			}
		}
	}
	m.indexed, m.eligibility = snap, idx
	return idx
}
