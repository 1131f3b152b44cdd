package funnel

import (
	"math"
	"sort"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/router"
)

const (
	maxSourceBonus = 0.15
	sourceBonusCap = 0.16
)

// SourceResult is the input of aggregation for one classifier.
type SourceResult struct {
	Source     router.Source
	Weight     float64
	Candidates []router.Candidate
}

// AggregatedCandidate is one service after merging every source's opinion.
type AggregatedCandidate struct {
	ServiceID   int32   `json:"serviceId"`
	ServiceName string  `json:"serviceName"`
	Priority    float64 `json:"priority"`
	// Confidence is the average confidence of the contributing sources.
	Confidence  float64            `json:"confidence"`
	Sources     []router.Source    `json:"sources"`
	SourceCount int                `json:"sourceCount"`
	Attributes  catalog.Attributes `json:"attributes"`
}

type contribution struct {
	weight     float64
	confidence float64
}

// Aggregate merges the candidates of several sources into one ranking.
//
// For the contributions wᵢ, cᵢ of a set of sources:
//
//	base  = max(Σwᵢcᵢ/Σcᵢ · max cᵢ, max wᵢcᵢ)
//	score = clamp(base + sourceBonus(n) + confidenceBonus(avg cᵢ), 0, 1)
//
// The priority of a service is the best score over the subsets of its
// sources, so a weak extra source never lowers it. A source naming a service
// twice keeps its highest confidence. The result is ordered by priority, then
// service id, and is independent of input order.
func Aggregate(results []SourceResult) []AggregatedCandidate {
	groups := make(map[int32]map[router.Source]contribution)
	names := make(map[int32]string)

	for _, r := range results {
		for _, c := range r.Candidates {
			conf := clamp(c.Confidence)
			g, ok := groups[c.ServiceID]
			if !ok {
				g = make(map[router.Source]contribution)
				groups[c.ServiceID] = g
			}
			if prev, ok := g[r.Source]; !ok || conf > prev.confidence {
				g[r.Source] = contribution{weight: r.Weight, confidence: conf}
			}
			if names[c.ServiceID] == "" {
				names[c.ServiceID] = c.ServiceName
			}
		}
	}

	out := make([]AggregatedCandidate, 0, len(groups))
	for id, g := range groups {
		sources := make([]router.Source, 0, len(g))
		for s := range g {
			sources = append(sources, s)
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

		contribs := make([]contribution, len(sources))
		var sumC float64
		for i, s := range sources {
			contribs[i] = g[s]
			sumC += contribs[i].confidence
		}
		n := len(sources)
		avg := sumC / float64(n)

		out = append(out, AggregatedCandidate{
			ServiceID:   id,
			ServiceName: names[id],
			Priority:    priority(contribs),
			Confidence:  avg,
			Sources:     sources,
			SourceCount: n,
		})
	}

	sortAggregated(out)
	return out
}

// priority is the best score over every non-empty subset of contribs.
// There are at most as many contributions as classifier sources.
func priority(contribs []contribution) float64 {
	best := 0.0
	subset := make([]contribution, 0, len(contribs))
	for mask := 1; mask < 1<<len(contribs); mask++ {
		subset = subset[:0]
		for i, c := range contribs {
			if mask&(1<<i) != 0 {
				subset = append(subset, c)
			}
		}
		best = math.Max(best, score(subset))
	}
	return best
}

func score(contribs []contribution) float64 {
	var sumWC, sumC, maxC, maxWC float64
	for _, c := range contribs {
		sumWC += c.weight * c.confidence
		sumC += c.confidence
		maxC = math.Max(maxC, c.confidence)
		maxWC = math.Max(maxWC, c.weight*c.confidence)
	}

	var wavg float64
	if sumC > 0 {
		wavg = sumWC / sumC
	}
	n := len(contribs)
	base := math.Max(wavg*maxC, maxWC)
	return clamp(base + sourceBonus(n) + confidenceBonus(sumC/float64(n)))
}

func sortAggregated(cands []AggregatedCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Priority != cands[j].Priority {
			return cands[i].Priority > cands[j].Priority
		}
		return cands[i].ServiceID < cands[j].ServiceID
	})
}

// sourceBonus rewards corroboration: 0.08 for two sources, 0.12 for three,
// 0.14 for four, 0.15 from five on.
func sourceBonus(n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Min(maxSourceBonus, sourceBonusCap*(1-math.Pow(0.5, float64(n-1))))
}

func confidenceBonus(avg float64) float64 {
	switch {
	case avg >= 0.95:
		return 0.05
	case avg >= 0.90:
		return 0.03
	default:
		return 0
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
