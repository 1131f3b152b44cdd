package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/cache"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

const (
	// PurposeServiceMatch tags usage records of the matcher's calls.
	PurposeServiceMatch = "service_match"

	llmCatalogCap        = 50
	llmAcceptThreshold   = 0.75
	llmMatcherMaxTokens  = 256
	llmMatcherTemp       = 0.1
	llmDecisionCacheSize = 500
	llmDecisionCacheTTL  = 30 * time.Minute
)

// LLMMatcher asks the language model to pick one service from the catalog.
// It is the most expensive classifier and only runs on escalation.
type LLMMatcher struct {
	catalog CatalogProvider
	client  ai.LLMClient

	threshold float64
	decisions *cache.LRUCache[*llmDecision]
}

// NewLLMMatcher creates the LLM matcher. A nil client disables it.
func NewLLMMatcher(provider CatalogProvider, client ai.LLMClient) *LLMMatcher {
	return &LLMMatcher{
		catalog:   provider,
		client:    client,
		threshold: llmAcceptThreshold,
		decisions: cache.NewLRUCache[*llmDecision](llmDecisionCacheSize, llmDecisionCacheTTL),
	}
}

// llmDecision is the reply format of the matcher prompt.
type llmDecision struct {
	ServiceID  *int32  `json:"service_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ServiceMatchPrompt is the prompt template of the matcher.
const ServiceMatchPrompt = `Ты диспетчер управляющей компании. Выбери одну услугу из каталога, которая лучше всего соответствует обращению жителя.

Каталог услуг (id | название | категория | тип | место):
%s
Обращение: %s

Ответь только JSON без пояснений:
{"service_id": <id из каталога или null>, "confidence": <число от 0 до 1>, "reason": "<краткое обоснование>"}
Если ни одна услуга не подходит, верни {"service_id": null, "confidence": 0, "reason": "..."}.`

func (m *LLMMatcher) Source() Source { return SourceLLM }

// Enabled reports whether a model client is configured.
func (m *LLMMatcher) Enabled() bool {
	return m != nil && m.client != nil
}

func (m *LLMMatcher) Search(ctx context.Context, utterance string) Result {
	return m.SearchWithCandidates(ctx, utterance, nil)
}

// SearchWithCandidates lists the current candidates first in the prompt catalog.
func (m *LLMMatcher) SearchWithCandidates(ctx context.Context, utterance string, current []int32) Result {
	if !m.Enabled() {
		return Failed(SourceLLM, funnelerrors.LLMUnavailable("llm client not configured", nil))
	}
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return Failed(SourceLLM, err)
	}

	services := promptCatalog(snap, current)
	key := decisionKey(utterance, services)

	decision, ok := m.decisions.Get(key)
	if !ok {
		decision, err = m.ask(ctx, utterance, services)
		if err != nil {
			slog.Warn("llm matcher failed",
				slog.String("error_code", string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeLLMUnavailable))))
			return Failed(SourceLLM, err)
		}
		m.decisions.Set(key, decision, 0)
	}

	if decision.ServiceID == nil || decision.Confidence < m.threshold {
		return NewResult(SourceLLM, nil)
	}
	svc, ok := snap.Get(*decision.ServiceID)
	if !ok {
		slog.Warn("llm matcher returned unknown service", slog.Int("service_id", int(*decision.ServiceID)))
		return NewResult(SourceLLM, nil)
	}
	return NewResult(SourceLLM, []Candidate{{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Confidence:  round3(min(decision.Confidence, 1.0)),
		Source:      SourceLLM,
	}})
}

func (m *LLMMatcher) ask(ctx context.Context, utterance string, services []*catalog.Service) (*llmDecision, error) {
	var b strings.Builder
	for _, svc := range services {
		fmt.Fprintf(&b, "%d | %s | %s | %s | %s\n", svc.ID, svc.Name,
			svc.Attributes.Category, svc.Attributes.IncidentType, svc.Attributes.LocationType)
	}
	prompt := fmt.Sprintf(ServiceMatchPrompt, b.String(), utterance)

	completion, err := m.client.Complete(ai.WithPurpose(ctx, PurposeServiceMatch), prompt, llmMatcherMaxTokens, llmMatcherTemp)
	if err != nil {
		return nil, err
	}

	decision := &llmDecision{}
	found, err := ai.DecodeJSON(completion.Text, decision)
	if err != nil {
		return nil, err
	}
	if !found {
		return &llmDecision{}, nil
	}
	return decision, nil
}

// promptCatalog returns at most llmCatalogCap services, the current candidates
// first and then the rest by id.
func promptCatalog(snap *catalog.Snapshot, current []int32) []*catalog.Service {
	out := make([]*catalog.Service, 0, min(snap.Len(), llmCatalogCap))
	picked := make(map[int32]bool)
	for _, id := range current {
		if svc, ok := snap.Get(id); ok && !picked[id] && len(out) < llmCatalogCap {
			out = append(out, svc)
			picked[id] = true
		}
	}
	for _, svc := range snap.Services() {
		if len(out) >= llmCatalogCap {
			break
		}
		if !picked[svc.ID] {
			out = append(out, svc)
		}
	}
	return out
}

func decisionKey(utterance string, services []*catalog.Service) string {
	ids := make([]string, len(services))
	for i, svc := range services {
		ids[i] = fmt.Sprint(svc.ID)
	}
	sort.Strings(ids)
	return lexicon.Normalize(utterance) + "|" + strings.Join(ids, ",")
}
