package funnel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	"github.com/hrygo/servicefunnel/plugin/ai/router"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
)

type stubEscalator struct {
	mu       sync.Mutex
	result   router.Result
	disabled bool
	calls    int
	current  []int32
}

func (e *stubEscalator) Enabled() bool { return !e.disabled }

func (e *stubEscalator) SearchWithCandidates(_ context.Context, _ string, current []int32) router.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.current = current
	return e.result
}

func (e *stubEscalator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubExtractor struct {
	filters extract.Filters
	err     error
}

func (e *stubExtractor) Extract(context.Context, extract.Input) (extract.Filters, error) {
	return e.filters, e.err
}

type stubRanker struct {
	ranking *extract.Ranking
	err     error
	calls   int
}

func (r *stubRanker) Rank(context.Context, string, string, []*catalog.Service) (*extract.Ranking, error) {
	r.calls++
	return r.ranking, r.err
}

type panicCatalog struct{}

func (panicCatalog) Snapshot(context.Context) (*catalog.Snapshot, error) {
	panic("snapshot exploded")
}

type fixture struct {
	svc      *Service
	store    *session.MemoryStore
	tag      *router.MockClassifier
	semantic *router.MockClassifier
	trigram  *router.MockClassifier
}

func newFixture(deps Deps) *fixture {
	f := &fixture{
		store:    session.NewMemoryStore(),
		tag:      router.NewMockClassifier(router.SourceTag),
		semantic: router.NewMockClassifier(router.SourceSemantic),
		trigram:  router.NewMockClassifier(router.SourceTrigram),
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(catalog.NewMockSource(catalog.DemoServices()...), time.Minute)
	}
	if deps.Lexicon == nil {
		deps.Lexicon = lexicon.Default()
	}
	if deps.Store == nil {
		deps.Store = f.store
	}
	if deps.Fast == nil {
		deps.Fast = []router.Classifier{f.tag, f.semantic, f.trigram}
	}
	f.svc = NewService(DefaultConfig(), deps)
	return f
}

func results(source router.Source, cands ...router.Candidate) router.Result {
	for i := range cands {
		cands[i].Source = source
	}
	return router.NewResult(source, cands)
}

func ids(cands []AggregatedCandidate) []int32 {
	out := make([]int32, len(cands))
	for i, c := range cands {
		out[i] = c.ServiceID
	}
	return out
}

func TestDetectService_KitchenLeakAsksLocation(t *testing.T) {
	f := newFixture(Deps{})
	f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

	res := f.svc.DetectService(context.Background(), "leaking faucet in the kitchen", DetectContext{DialogID: "d-kitchen"})

	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Equal(t, StateSingleLowConfidence, res.State)
	assert.Equal(t, QuestionLocation, res.Message)
	assert.Equal(t, extract.DimensionLocation, res.Dimension)
	assert.Equal(t, session.StateClarifying, res.DialogState)
	assert.False(t, res.Escalated)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int32(1), res.Candidates[0].ServiceID)
	assert.Equal(t, "Устранение протечки в квартире", res.Candidates[0].ServiceName)
	assert.InDelta(t, 0.51, res.Candidates[0].Priority, 1e-9)

	assert.Equal(t, catalog.LocationInUnit, res.Filters.Location.Value)
	assert.False(t, res.Filters.Location.Established())
	assert.True(t, res.Filters.Incident.Established())
	assert.Equal(t, "leaking faucet in the kitchen", res.Problem)

	stored, err := f.store.Load(context.Background(), "d-kitchen")
	require.NoError(t, err)
	assert.Equal(t, session.StateClarifying, stored.State)
	assert.Equal(t, string(StateSingleLowConfidence), stored.Reason)
	assert.True(t, stored.Asked(QuestionLocation))
	require.Len(t, stored.History, 2)
	assert.Equal(t, memory.RoleUser, stored.History[0].Role)
	assert.Equal(t, QuestionLocation, stored.History[1].Text)

	snap := f.svc.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TurnTotal)
	assert.Equal(t, int64(1), snap.States[string(StateSingleLowConfidence)])

	// The answer establishes the location, so the next question moves on.
	res = f.svc.DetectService(context.Background(), "в квартире", DetectContext{DialogID: "d-kitchen", IsFollowup: true})
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.NotEqual(t, QuestionLocation, res.Message)
	assert.Equal(t, extract.DimensionCategory, res.Dimension)
	assert.True(t, res.Filters.Location.Established())
	assert.Contains(t, f.trigram.Utterances[1], "leaking faucet in the kitchen")
}

func TestDetectService_HighConfidenceResolves(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Default = results(router.SourceTag, cand(7, 1.0))

	res := f.svc.DetectService(context.Background(), "лифт застрял", DetectContext{DialogID: "d-lift"})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, StateSingleHighConfidence, res.State)
	assert.Equal(t, int32(7), res.ServiceID)
	assert.Equal(t, "Остановка лифта", res.ServiceName)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.True(t, res.NeedsConfirmation)
	assert.Equal(t, "Правильно ли я понял, что у вас проблема: Остановка лифта?", res.Message)
	assert.Equal(t, session.StateResolved, res.DialogState)

	stored, err := f.store.Load(context.Background(), "d-lift")
	require.NoError(t, err)
	assert.Equal(t, session.StateResolved, stored.State)
	assert.Equal(t, int32(7), stored.ServiceID)
}

func TestDetectService_QuestionsNeverRepeat(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Default = results(router.SourceTag, cand(1, 0.7), cand(2, 0.7))

	utterances := []string{"течет вода", "не знаю", "сложно сказать", "не уверен", "может быть"}
	seen := make(map[string]int)
	for i, u := range utterances {
		res := f.svc.DetectService(context.Background(), u, DetectContext{DialogID: "d-repeat"})
		require.Equal(t, StatusAmbiguous, res.Status, "turn %d", i)
		require.Equal(t, StateFewCandidates, res.State, "turn %d", i)
		assert.True(t, Question{Text: res.Message}.IsQuestion(), "turn %d: %s", i, res.Message)

		if prev, ok := seen[res.Message]; ok {
			t.Fatalf("turn %d repeats the question of turn %d: %s", i, prev, res.Message)
		}
		seen[res.Message] = i
	}
	assert.Contains(t, seen, QuestionLocation)
	assert.Contains(t, seen, questionLeak)
}

func TestDetectService_FiltersNarrowFewCandidates(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(2, 0.8))

	res := f.svc.DetectService(context.Background(), "течет кран в квартире", DetectContext{DialogID: "d-few"})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, StateFewCandidates, res.State)
	assert.Equal(t, int32(1), res.ServiceID)
	assert.Equal(t, "Понял, у вас: Устранение протечки в квартире. Это правильно?", res.Message)
	assert.True(t, res.NeedsConfirmation)
	assert.Equal(t, []int32{1}, ids(res.Candidates))
}

func TestDetectService_RankerPicksAmongRemaining(t *testing.T) {
	object := extract.Filters{Object: extract.Value{Value: "смеситель", Confidence: 0.95}}

	t.Run("confident ranking resolves", func(t *testing.T) {
		ranker := &stubRanker{ranking: &extract.Ranking{ServiceID: 3, Confidence: 0.8}}
		f := newFixture(Deps{Extractor: &stubExtractor{filters: object}, Ranker: ranker})
		f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(3, 0.8))

		res := f.svc.DetectService(context.Background(), "проблема в квартире", DetectContext{DialogID: "d-rank"})
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, int32(3), res.ServiceID)
		assert.Equal(t, 1, ranker.calls)
		assert.Equal(t, "смеситель", res.Filters.Object.Value)
	})

	t.Run("weak ranking asks", func(t *testing.T) {
		ranker := &stubRanker{ranking: &extract.Ranking{ServiceID: 3, Confidence: 0.6}}
		f := newFixture(Deps{Extractor: &stubExtractor{filters: object}, Ranker: ranker})
		f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(3, 0.8))

		res := f.svc.DetectService(context.Background(), "проблема в квартире", DetectContext{DialogID: "d-rank"})
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.ElementsMatch(t, []int32{1, 3}, ids(res.Candidates))
	})

	t.Run("ranking failure asks", func(t *testing.T) {
		ranker := &stubRanker{err: errors.New("model down")}
		f := newFixture(Deps{Extractor: &stubExtractor{filters: object}, Ranker: ranker})
		f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(3, 0.8))

		res := f.svc.DetectService(context.Background(), "проблема в квартире", DetectContext{DialogID: "d-rank"})
		assert.Equal(t, StatusAmbiguous, res.Status)
	})

	t.Run("extractor failure degrades", func(t *testing.T) {
		f := newFixture(Deps{Extractor: &stubExtractor{err: errors.New("model down")}})
		f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(2, 0.8))

		res := f.svc.DetectService(context.Background(), "течет кран в квартире", DetectContext{DialogID: "d-rank"})
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, int32(1), res.ServiceID)
	})
}

func TestDetectService_ManyCandidatesRetainTop(t *testing.T) {
	f := newFixture(Deps{})
	var all []router.Candidate
	for id := int32(1); id <= 11; id++ {
		all = append(all, cand(id, 0.8))
	}
	f.tag.Default = results(router.SourceTag, all...)

	res := f.svc.DetectService(context.Background(), "все плохо", DetectContext{DialogID: "d-many"})
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Equal(t, StateManyCandidates, res.State)
	assert.Equal(t, broadQuestions[0], res.Message)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(res.Candidates))

	stored, err := f.store.Load(context.Background(), "d-many")
	require.NoError(t, err)
	assert.Len(t, stored.RetainedIDs, 10)

	// The next turn only considers what was retained.
	f.tag.Default = results(router.SourceTag, cand(1, 0.8), cand(11, 0.8))
	res = f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-many"})
	assert.Equal(t, StateSingleLowConfidence, res.State)
	assert.Equal(t, []int32{1}, ids(res.Candidates))

	stored, err = f.store.Load(context.Background(), "d-many")
	require.NoError(t, err)
	assert.Empty(t, stored.RetainedIDs)
}

func TestDetectService_Escalation(t *testing.T) {
	llm := results(router.SourceLLM, cand(4, 0.9))

	t.Run("disjoint weak sources escalate", func(t *testing.T) {
		esc := &stubEscalator{result: llm}
		f := newFixture(Deps{Escalator: esc})
		f.tag.Default = results(router.SourceTag, cand(1, 0.1))
		f.semantic.Default = results(router.SourceSemantic, cand(2, 0.15))
		f.trigram.Default = results(router.SourceTrigram, cand(3, 0.2))

		res := f.svc.DetectService(context.Background(), "что-то случилось", DetectContext{DialogID: "d-esc"})
		assert.True(t, res.Escalated)
		assert.Equal(t, 1, esc.Calls())
		assert.ElementsMatch(t, []int32{1, 2, 3}, esc.current)
		assert.Equal(t, StateFewCandidates, res.State)
		assert.Equal(t, int32(4), res.Candidates[0].ServiceID)
		assert.Equal(t, int64(1), f.svc.Metrics.Snapshot().Escalations)
	})

	t.Run("disjoint confident sources escalate", func(t *testing.T) {
		esc := &stubEscalator{result: llm}
		f := newFixture(Deps{Escalator: esc})
		f.tag.Default = results(router.SourceTag, cand(1, 0.9))
		f.semantic.Default = results(router.SourceSemantic, cand(2, 0.8))

		res := f.svc.DetectService(context.Background(), "что-то случилось", DetectContext{})
		assert.True(t, res.Escalated)
		assert.Equal(t, 1, esc.Calls())
	})

	t.Run("single weak source escalates", func(t *testing.T) {
		esc := &stubEscalator{}
		f := newFixture(Deps{Escalator: esc})
		f.tag.Default = results(router.SourceTag, cand(1, 0.35))

		res := f.svc.DetectService(context.Background(), "что-то случилось", DetectContext{})
		assert.True(t, res.Escalated)
		assert.Equal(t, []int32{1}, ids(res.Candidates))
	})

	t.Run("agreeing sources do not escalate", func(t *testing.T) {
		esc := &stubEscalator{result: llm}
		f := newFixture(Deps{Escalator: esc})
		f.tag.Default = results(router.SourceTag, cand(1, 0.5))
		f.semantic.Default = results(router.SourceSemantic, cand(1, 0.6))
		f.trigram.Default = results(router.SourceTrigram, cand(1, 0.7))

		res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{})
		assert.False(t, res.Escalated)
		assert.Zero(t, esc.Calls())
		assert.Equal(t, []int32{1}, ids(res.Candidates))
	})

	t.Run("fallback hit after empty fast results does not escalate", func(t *testing.T) {
		esc := &stubEscalator{result: llm}
		fallback := router.NewMockClassifier(router.SourceFallback, router.Candidate{ServiceID: 5, Confidence: 0.3})
		f := newFixture(Deps{Escalator: esc, Fallback: fallback})

		res := f.svc.DetectService(context.Background(), "искрит", DetectContext{})
		assert.False(t, res.Escalated)
		assert.Equal(t, 1, fallback.Calls())
		assert.Zero(t, esc.Calls())
		assert.Equal(t, []int32{5}, ids(res.Candidates))
		assert.Equal(t, StateSingleLowConfidence, res.State)
	})

	t.Run("empty fallback escalates", func(t *testing.T) {
		esc := &stubEscalator{result: llm}
		fallback := router.NewMockClassifier(router.SourceFallback)
		f := newFixture(Deps{Escalator: esc, Fallback: fallback})

		res := f.svc.DetectService(context.Background(), "искрит", DetectContext{})
		assert.True(t, res.Escalated)
		assert.Equal(t, 1, fallback.Calls())
		assert.Equal(t, 1, esc.Calls())
		assert.Empty(t, esc.current)
		assert.Equal(t, []int32{4}, ids(res.Candidates))
	})

	t.Run("disabled escalator is skipped", func(t *testing.T) {
		esc := &stubEscalator{result: llm, disabled: true}
		f := newFixture(Deps{Escalator: esc})
		f.tag.Default = results(router.SourceTag, cand(1, 0.1))

		res := f.svc.DetectService(context.Background(), "что-то случилось", DetectContext{})
		assert.False(t, res.Escalated)
		assert.Zero(t, esc.Calls())
		assert.Zero(t, f.svc.Metrics.Snapshot().Escalations)
	})
}

func TestDetectService_NoCandidates(t *testing.T) {
	f := newFixture(Deps{})

	res := f.svc.DetectService(context.Background(), "абракадабра", DetectContext{DialogID: "d-none"})
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Equal(t, StateNoCandidates, res.State)
	assert.Equal(t, openQuestions[0], res.Message)
	assert.Equal(t, session.StateCollectingProblem, res.DialogState)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)

	res = f.svc.DetectService(context.Background(), "абракадабра", DetectContext{DialogID: "d-none"})
	assert.Equal(t, openQuestions[1], res.Message)
}

func TestDetectService_EmptyUtterance(t *testing.T) {
	f := newFixture(Deps{})

	res := f.svc.DetectService(context.Background(), "   ", DetectContext{DialogID: "d-empty"})
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Equal(t, StateNoCandidates, res.State)
	assert.Equal(t, messageAskProblem, res.Message)
	assert.Zero(t, f.tag.Calls())
}

func TestDetectService_EmptyUtterancesNeverRepeat(t *testing.T) {
	f := newFixture(Deps{})

	seen := map[string]bool{}
	for i, utterance := range []string{"", "   ", "\t", ""} {
		res := f.svc.DetectService(context.Background(), utterance, DetectContext{DialogID: "d-silent"})
		require.Equal(t, StatusAmbiguous, res.Status, "turn %d", i)
		assert.False(t, seen[res.Message], "turn %d repeated %q", i, res.Message)
		seen[res.Message] = true
	}
	assert.True(t, seen[messageAskProblem])
	assert.True(t, seen[openQuestions[0]])
}

func TestDetectService_TrivialTurnKeepsProblem(t *testing.T) {
	f := newFixture(Deps{})
	f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

	res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-trivial"})
	require.Equal(t, "течет кран", res.Problem)

	res = f.svc.DetectService(context.Background(), "спасибо", DetectContext{DialogID: "d-trivial"})
	assert.Equal(t, "течет кран", res.Problem)

	res = f.svc.DetectService(context.Background(), "на кухне", DetectContext{DialogID: "d-trivial"})
	assert.Equal(t, "течет кран, на кухне", res.Problem)
}

func TestDetectService_AccumulatesAddress(t *testing.T) {
	f := newFixture(Deps{})
	f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

	res := f.svc.DetectService(context.Background(), "ул. Ленина", DetectContext{DialogID: "d-addr"})
	assert.Equal(t, "Ленина", res.Address.Street)
	assert.False(t, res.AddressComplete)

	res = f.svc.DetectService(context.Background(), "дом 5", DetectContext{DialogID: "d-addr"})
	assert.Equal(t, "Ленина", res.Address.Street)
	assert.Equal(t, "5", res.Address.House)
	assert.True(t, res.AddressComplete)
}

func TestDetectService_CatalogEmpty(t *testing.T) {
	f := newFixture(Deps{Catalog: catalog.New(catalog.NewMockSource(), time.Minute)})

	res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-err"})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, string(funnelerrors.ErrCodeCatalogEmpty), res.ErrorCode)
	assert.Equal(t, messageUnavailable, res.Message)
	assert.Zero(t, f.store.Saves())
	assert.Equal(t, int64(1), f.svc.Metrics.Snapshot().TurnFailed)
}

func TestDetectService_PanicBecomesError(t *testing.T) {
	f := newFixture(Deps{Catalog: panicCatalog{}})

	res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-panic"})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, string(funnelerrors.ErrCodeInternal), res.ErrorCode)
	assert.Equal(t, messageTechnicalError, res.Message)
	assert.Zero(t, f.store.Saves())
	assert.Zero(t, f.svc.locks.size())
}

func TestDetectService_FailingClassifierCountsAsEmpty(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Panic = true
	f.semantic.Default = results(router.SourceSemantic, cand(1, 1.0))

	res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-partial"})
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Equal(t, StateSingleLowConfidence, res.State)
	assert.Equal(t, []int32{1}, ids(res.Candidates))
}

func TestDetectService_StoreFailures(t *testing.T) {
	t.Run("load failure uses caller history", func(t *testing.T) {
		f := newFixture(Deps{})
		f.store.LoadErr = errors.New("database is down")
		f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

		history := memory.History{
			{Role: memory.RoleUser, Text: "течет кран"},
			{Role: memory.RoleBot, Text: QuestionLocation},
		}
		res := f.svc.DetectService(context.Background(), "не знаю", DetectContext{DialogID: "d-load", DialogHistory: history})
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.NotEqual(t, QuestionLocation, res.Message)
		assert.Equal(t, "течет кран не знаю", f.trigram.Utterances[0])
	})

	t.Run("save failure still answers", func(t *testing.T) {
		f := newFixture(Deps{})
		f.store.SaveErr = errors.New("database is down")
		f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

		res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-save"})
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.Equal(t, QuestionLocation, res.Message)
		assert.Zero(t, f.store.Saves())
	})

	t.Run("anonymous turn is not saved", func(t *testing.T) {
		f := newFixture(Deps{})
		f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

		f.svc.DetectService(context.Background(), "течет кран", DetectContext{})
		assert.Zero(t, f.store.Saves())
	})
}

func TestService_Reset(t *testing.T) {
	f := newFixture(Deps{})
	f.trigram.Default = results(router.SourceTrigram, cand(1, 0.85))

	f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-reset"})
	require.NoError(t, f.svc.Reset(context.Background(), "d-reset"))

	d, err := f.store.Load(context.Background(), "d-reset")
	require.NoError(t, err)
	assert.Empty(t, d.History)
	assert.Empty(t, d.AskedQuestions)

	res := f.svc.DetectService(context.Background(), "течет кран", DetectContext{DialogID: "d-reset"})
	assert.Equal(t, QuestionLocation, res.Message)
}

func TestDetectService_SerializesTurnsOfOneDialog(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Default = results(router.SourceTag, cand(7, 1.0))

	const turns = session.MaxHistoryEntries / 2
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.DetectService(context.Background(), fmt.Sprintf("лифт застрял %d", i), DetectContext{DialogID: "d-busy"})
		}()
	}
	wg.Wait()

	d, err := f.store.Load(context.Background(), "d-busy")
	require.NoError(t, err)
	assert.Len(t, d.History, session.MaxHistoryEntries)
	assert.Equal(t, turns, f.store.Saves())
	assert.Zero(t, f.svc.locks.size())
}

func TestBuild_DeterministicFunnel(t *testing.T) {
	cat := catalog.New(catalog.NewMockSource(catalog.DemoServices()...), time.Minute)
	svc := Build(cat, lexicon.Default(), session.NewMemoryStore(), nil, nil)

	assert.Len(t, svc.Fast, 3)
	assert.NotNil(t, svc.Fallback)
	assert.Nil(t, svc.Escalator)
	assert.Nil(t, svc.Ranker)

	res := svc.DetectService(context.Background(), "лифт застрял", DetectContext{DialogID: "d-build"})
	assert.NotEqual(t, StatusError, res.Status)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, int32(7), res.Candidates[0].ServiceID)
	assert.False(t, res.Escalated)
}

func TestKeyedMutex(t *testing.T) {
	ctx := context.Background()
	k := newKeyedMutex()

	unlockA, err := k.Lock(ctx, "a")
	require.NoError(t, err)
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock, err := k.Lock(ctx, "a")
		if err == nil {
			close(acquired)
			unlock()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()

	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestKeyedMutex_WaiterGivesUp(t *testing.T) {
	k := newKeyedMutex()

	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, k.size())

	unlock()
	assert.Zero(t, k.size())
}

func TestDetectService_AnonymousTurnsRunConcurrently(t *testing.T) {
	f := newFixture(Deps{})
	f.tag.Default = results(router.SourceTag, cand(7, 1.0))

	unlock, err := f.svc.locks.Lock(context.Background(), "")
	require.NoError(t, err)
	defer unlock()

	done := make(chan *DetectResult, 1)
	go func() {
		done <- f.svc.DetectService(context.Background(), "лифт застрял", DetectContext{})
	}()

	select {
	case res := <-done:
		assert.Equal(t, StatusSuccess, res.Status)
	case <-time.After(time.Second):
		t.Fatal("anonymous turn waited for a dialog lock")
	}
}
