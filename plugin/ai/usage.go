package ai

import (
	"context"
	"time"

	"github.com/hrygo/servicefunnel/store"
)

// UsageRecord describes one model call for cost accounting.
type UsageRecord struct {
	Purpose      string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Success      bool
	ErrorKind    string
}

// UsageRecorder persists usage records.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec *UsageRecord) error
}

// StoreUsageRecorder writes usage records to the llm_usage table.
type StoreUsageRecorder struct {
	store *store.Store
}

func NewStoreUsageRecorder(s *store.Store) *StoreUsageRecorder {
	return &StoreUsageRecorder{store: s}
}

func (r *StoreUsageRecorder) RecordUsage(ctx context.Context, rec *UsageRecord) error {
	_, err := r.store.CreateLLMUsage(ctx, &store.LLMUsage{
		Purpose:      rec.Purpose,
		Model:        rec.Model,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		CostUSD:      rec.CostUSD,
		LatencyMs:    rec.LatencyMs,
		Success:      rec.Success,
		ErrorKind:    rec.ErrorKind,
		CreatedTs:    time.Now().Unix(),
	})
	return err
}

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"gpt-4o":        {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":   {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1-mini":  {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"deepseek-chat": {InputPerMillion: 0.27, OutputPerMillion: 1.10},
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Unknown models (including local ones) cost 0.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000.0*pricing.InputPerMillion +
		float64(outputTokens)/1_000_000.0*pricing.OutputPerMillion
}
