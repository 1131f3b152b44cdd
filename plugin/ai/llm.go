package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/plugin/ai/timeout"
)

// Completion is the text produced by one model call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// LLMClient is the minimal completion contract the funnel depends on.
// Errors are always *errors.FunnelError with one of the LLM codes.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (*Completion, error)
}

type purposeKey struct{}

// WithPurpose tags the context so usage records can tell classification, extraction and ranking apart.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFromContext returns the purpose set by WithPurpose, or "unknown".
func PurposeFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}

type llmClient struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	limiter  *rate.Limiter
	recorder UsageRecorder
	metrics  *observability.Metrics
}

// LLMOption configures the client.
type LLMOption func(*llmClient)

// WithUsageRecorder records every call, successful or not.
func WithUsageRecorder(r UsageRecorder) LLMOption {
	return func(c *llmClient) { c.recorder = r }
}

// WithMetrics counts calls and failures.
func WithMetrics(m *observability.Metrics) LLMOption {
	return func(c *llmClient) { c.metrics = m }
}

// NewLLMClient creates an OpenAI compatible client. DeepSeek and Ollama are
// reached through their OpenAI compatible endpoints.
func NewLLMClient(cfg *LLMConfig, opts ...LLMOption) (LLMClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	callTimeout := cfg.Timeout
	if callTimeout <= 0 {
		callTimeout = timeout.LLMCallTimeout
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	c := &llmClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: callTimeout,
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *llmClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.complete(ctx, prompt, maxTokens, temperature)
	c.record(ctx, completion, err, time.Since(start))
	return completion, err
}

func (c *llmClient) complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyLLMError(ctx, err)
	}

	if maxTokens <= 0 {
		maxTokens = 512
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, classifyLLMError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, funnelerrors.LLMMalformedResponse("empty choices", nil)
	}

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}, nil
}

// classifyLLMError maps transport failures to the funnel's error kinds.
// Provider error text is kept in the cause only.
func classifyLLMError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return funnelerrors.LLMTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return funnelerrors.LLMTimeout(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return funnelerrors.LLMUnavailable(fmt.Sprintf("provider returned status %d", apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 200 && reqErr.HTTPStatusCode < 300 {
			return funnelerrors.LLMMalformedResponse("undecodable provider response", err)
		}
		return funnelerrors.LLMUnavailable(fmt.Sprintf("provider returned status %d", reqErr.HTTPStatusCode), err)
	}
	return funnelerrors.LLMUnavailable("provider unreachable", err)
}

func (c *llmClient) record(ctx context.Context, completion *Completion, err error, latency time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordLLMCall(err != nil)
	}
	if c.recorder == nil {
		return
	}

	rec := &UsageRecord{
		Purpose:   PurposeFromContext(ctx),
		Model:     c.model,
		LatencyMs: latency.Milliseconds(),
		Success:   err == nil,
	}
	if completion != nil {
		rec.InputTokens = completion.InputTokens
		rec.OutputTokens = completion.OutputTokens
		rec.CostUSD = EstimateCost(c.model, completion.InputTokens, completion.OutputTokens)
	}
	if err != nil {
		rec.ErrorKind = string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeLLMUnavailable))
	}

	// The call context may already be past its deadline.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout.StoreTimeout)
	defer cancel()
	if recErr := c.recorder.RecordUsage(recordCtx, rec); recErr != nil {
		slog.Warn("failed to record llm usage", "purpose", rec.Purpose, "error", recErr)
	}
}
