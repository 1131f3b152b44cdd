package store

import (
	"sort"
	"time"
)

// LLMUsage records one language model call.
type LLMUsage struct {
	ID           int64
	Purpose      string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Success      bool
	ErrorKind    string
	CreatedTs    int64
}

type FindLLMUsage struct {
	CreatedAfter *int64
	Purpose      *string
	Limit        *int
}

// LLMUsageDay aggregates usage for one UTC day and purpose.
type LLMUsageDay struct {
	Day          string
	Purpose      string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// SummarizeLLMUsage groups records by UTC day and purpose, newest day first.
func SummarizeLLMUsage(list []*LLMUsage) []*LLMUsageDay {
	type key struct{ day, purpose string }
	groups := make(map[key]*LLMUsageDay)
	for _, u := range list {
		k := key{
			day:     time.Unix(u.CreatedTs, 0).UTC().Format(time.DateOnly),
			purpose: u.Purpose,
		}
		g, ok := groups[k]
		if !ok {
			g = &LLMUsageDay{Day: k.day, Purpose: k.purpose}
			groups[k] = g
		}
		g.Calls++
		if !u.Success {
			g.Failures++
		}
		g.InputTokens += u.InputTokens
		g.OutputTokens += u.OutputTokens
		g.CostUSD += u.CostUSD
	}

	result := make([]*LLMUsageDay, 0, len(groups))
	for _, g := range groups {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return result[i].Day > result[j].Day
		}
		return result[i].Purpose < result[j].Purpose
	})
	return result
}
