package funnel

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/servicefunnel/plugin/ai/router"
)

func cand(id int32, conf float64) router.Candidate {
	return router.Candidate{ServiceID: id, Confidence: conf}
}

func src(source router.Source, cands ...router.Candidate) SourceResult {
	return SourceResult{Source: source, Weight: router.DefaultWeights[source], Candidates: cands}
}

func TestAggregate(t *testing.T) {
	out := Aggregate([]SourceResult{
		src(router.SourceTag, cand(1, 0.9)),
		src(router.SourceSemantic, cand(1, 0.7), cand(2, 0.5)),
	})
	require.Len(t, out, 2)

	// wavg = (0.9 + 0.56) / 1.6, base = max(wavg·0.9, 0.9) = 0.9, +0.08 for two sources.
	assert.Equal(t, int32(1), out[0].ServiceID)
	assert.InDelta(t, 0.98, out[0].Priority, 1e-9)
	assert.InDelta(t, 0.8, out[0].Confidence, 1e-9)
	assert.Equal(t, []router.Source{router.SourceSemantic, router.SourceTag}, out[0].Sources)
	assert.Equal(t, 2, out[0].SourceCount)

	assert.Equal(t, int32(2), out[1].ServiceID)
	assert.InDelta(t, 0.4, out[1].Priority, 1e-9)
}

func TestAggregate_RepeatedSourceKeepsMax(t *testing.T) {
	out := Aggregate([]SourceResult{
		src(router.SourceTrigram, cand(1, 0.3), cand(1, 0.5)),
	})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].SourceCount)
	assert.InDelta(t, 0.5, out[0].Confidence, 1e-9)
	assert.InDelta(t, 0.3, out[0].Priority, 1e-9)
}

func TestAggregate_ConfidenceBonusAndClamp(t *testing.T) {
	out := Aggregate([]SourceResult{
		src(router.SourceTag, cand(1, 1.0)),
		src(router.SourceLLM, cand(1, 1.0), cand(2, 0.92)),
	})
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0].Priority, 1e-9)
	// 0.9 · 0.92 + 0.03
	assert.InDelta(t, 0.858, out[1].Priority, 1e-9)
}

func TestSourceBonus(t *testing.T) {
	want := map[int]float64{1: 0, 2: 0.08, 3: 0.12, 4: 0.14, 5: 0.15, 6: 0.15, 10: 0.15}
	for n, bonus := range want {
		assert.InDelta(t, bonus, sourceBonus(n), 1e-9, "n=%d", n)
	}
}

func TestAggregate_TiesOrderedByID(t *testing.T) {
	out := Aggregate([]SourceResult{
		src(router.SourceTag, cand(9, 0.8), cand(3, 0.8), cand(5, 0.8)),
	})
	ids := []int32{}
	for _, c := range out {
		ids = append(ids, c.ServiceID)
	}
	assert.Equal(t, []int32{3, 5, 9}, ids)
}

func TestAggregate_Deterministic(t *testing.T) {
	in := []SourceResult{
		src(router.SourceTag, cand(1, 1.0), cand(4, 1.0)),
		src(router.SourceSemantic, cand(4, 0.62), cand(2, 0.41), cand(1, 0.35)),
		src(router.SourceTrigram, cand(2, 0.33), cand(3, 0.27), cand(4, 0.21)),
	}
	want := Aggregate(in)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]SourceResult, len(in))
		for j, r := range in {
			r.Candidates = slices.Clone(r.Candidates)
			rng.Shuffle(len(r.Candidates), func(a, b int) { r.Candidates[a], r.Candidates[b] = r.Candidates[b], r.Candidates[a] })
			shuffled[j] = r
		}
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		assert.Equal(t, want, Aggregate(shuffled))
	}
}

func TestAggregate_MonotoneInCorroboration(t *testing.T) {
	sources := []router.Source{router.SourceTrigram, router.SourceSemantic, router.SourceFallback, router.SourceLLM, router.SourceTag}
	for _, conf := range []float64{0.3, 0.6, 0.9, 1.0} {
		prev := 0.0
		var in []SourceResult
		for _, s := range sources {
			in = append(in, src(s, cand(1, conf)))
			out := Aggregate(in)
			require.Len(t, out, 1)
			assert.GreaterOrEqual(t, out[0].Priority, prev, "conf=%.1f sources=%d", conf, len(in))
			prev = out[0].Priority
		}
	}
}

func TestAggregate_WeakExtraSourceKeepsPriority(t *testing.T) {
	pair := Aggregate([]SourceResult{
		src(router.SourceTrigram, cand(1, 0.96)),
		src(router.SourceFallback, cand(1, 0.96)),
	})
	triple := Aggregate([]SourceResult{
		src(router.SourceTrigram, cand(1, 0.96)),
		src(router.SourceFallback, cand(1, 0.96)),
		src(router.SourceSemantic, cand(1, 0.1)),
	})
	require.Len(t, pair, 1)
	require.Len(t, triple, 1)

	// 0.6 · 0.96 + 0.08 + 0.05
	assert.InDelta(t, 0.706, pair[0].Priority, 1e-9)
	assert.GreaterOrEqual(t, triple[0].Priority, pair[0].Priority)
	assert.Equal(t, 3, triple[0].SourceCount)
}

func TestAggregate_MonotoneInCorroborationMixed(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	sources := []router.Source{router.SourceTag, router.SourceLLM, router.SourceSemantic, router.SourceTrigram, router.SourceFallback}

	for i := 0; i < 300; i++ {
		order := slices.Clone(sources)
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

		prev := 0.0
		var in []SourceResult
		for _, s := range order {
			in = append(in, src(s, cand(1, rng.Float64())))
			p := Aggregate(in)[0].Priority
			require.GreaterOrEqual(t, p, prev-1e-12, "iteration %d sources=%d", i, len(in))
			prev = p
		}
	}
}

func TestAggregate_MonotoneInConfidence(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		prev := 0.0
		for conf := 0.05; conf <= 1.0; conf += 0.05 {
			var in []SourceResult
			for _, s := range []router.Source{router.SourceTag, router.SourceSemantic, router.SourceTrigram}[:n] {
				in = append(in, src(s, cand(1, conf)))
			}
			p := Aggregate(in)[0].Priority
			assert.GreaterOrEqual(t, p, prev, "n=%d conf=%.2f", n, conf)
			prev = p
		}
	}
}

func TestAggregate_NeverBelowStrongestContribution(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sources := []router.Source{router.SourceTag, router.SourceLLM, router.SourceSemantic, router.SourceTrigram, router.SourceFallback}

	for i := 0; i < 200; i++ {
		var in []SourceResult
		strongest := 0.0
		for _, s := range sources {
			if rng.Intn(2) == 0 {
				continue
			}
			c := rng.Float64()
			in = append(in, src(s, cand(1, c)))
			strongest = max(strongest, router.DefaultWeights[s]*c)
		}
		if len(in) == 0 {
			continue
		}
		out := Aggregate(in)
		require.Len(t, out, 1)
		assert.GreaterOrEqual(t, out[0].Priority+1e-12, strongest)
		assert.LessOrEqual(t, out[0].Priority, 1.0)
	}
}
