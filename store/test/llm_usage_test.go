package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/servicefunnel/store"
)

func TestLLMUsageStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	records := []*store.LLMUsage{
		{Purpose: "classify", Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 10, CostUSD: 0.001, Success: true, CreatedTs: day},
		{Purpose: "classify", Model: "gpt-4o-mini", InputTokens: 50, Success: false, ErrorKind: "LLM_TIMEOUT", CreatedTs: day + 60},
		{Purpose: "problem", Model: "gpt-4o-mini", InputTokens: 80, OutputTokens: 40, CostUSD: 0.002, Success: true, CreatedTs: day + 86400},
	}
	for _, r := range records {
		created, err := ts.CreateLLMUsage(ctx, r)
		require.NoError(t, err)
		require.NotZero(t, created.ID)
	}

	list, err := ts.ListLLMUsage(ctx, &store.FindLLMUsage{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "problem", list[0].Purpose)
	require.False(t, list[1].Success)
	require.True(t, list[2].Success)
	require.InDelta(t, 0.001, list[2].CostUSD, 1e-9)

	purpose := "classify"
	limit := 1
	list, err = ts.ListLLMUsage(ctx, &store.FindLLMUsage{Purpose: &purpose, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "LLM_TIMEOUT", list[0].ErrorKind)

	all, err := ts.ListLLMUsage(ctx, &store.FindLLMUsage{})
	require.NoError(t, err)
	summary := store.SummarizeLLMUsage(all)
	require.Len(t, summary, 2)
	require.Equal(t, "2026-03-02", summary[0].Day)
	require.Equal(t, "2026-03-01", summary[1].Day)
	require.Equal(t, 2, summary[1].Calls)
	require.Equal(t, 1, summary[1].Failures)
	require.Equal(t, 150, summary[1].InputTokens)
}
