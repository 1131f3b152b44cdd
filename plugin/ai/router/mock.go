package router

import (
	"context"
	"sync"
)

// MockClassifier returns a fixed result, for tests of the funnel.
type MockClassifier struct {
	mu sync.Mutex

	source Source
	// Results maps an utterance to its result; Default is used otherwise.
	Results map[string]Result
	Default Result
	// Panic makes Search panic, Block makes it wait for ctx.
	Panic bool
	Block bool

	Utterances []string
}

// NewMockClassifier creates a mock returning candidates for every utterance.
func NewMockClassifier(source Source, candidates ...Candidate) *MockClassifier {
	for i := range candidates {
		candidates[i].Source = source
	}
	return &MockClassifier{
		source:  source,
		Results: make(map[string]Result),
		Default: NewResult(source, candidates),
	}
}

func (m *MockClassifier) Source() Source { return m.source }

func (m *MockClassifier) Search(ctx context.Context, utterance string) Result {
	m.mu.Lock()
	m.Utterances = append(m.Utterances, utterance)
	res, ok := m.Results[utterance]
	if !ok {
		res = m.Default
	}
	panicking, blocking := m.Panic, m.Block
	m.mu.Unlock()

	if panicking {
		panic("mock classifier failure")
	}
	if blocking {
		<-ctx.Done()
		return Failed(m.source, ctx.Err())
	}
	return res
}

// Calls returns how many searches were made.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Utterances)
}
