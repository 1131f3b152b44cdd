package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
)

const (
	// PurposeFilterDetection tags usage records of the extractor's calls.
	PurposeFilterDetection = "filter_detection"

	llmHistoryEntries = 5
	// Values only the model reports stay tentative.
	llmUncorroboratedCap = 0.85
	extractMaxTokens     = 256
	extractTemperature   = 0.1
)

// FilterDetectionPrompt is the prompt template of the LLM extractor.
const FilterDetectionPrompt = `Ты опытный диспетчер управляющей компании. Определи фильтры для поиска услуги по обращению жителя.

История диалога:
%s
Текущее сообщение: "%s"

Если в истории есть предыдущие сообщения пользователя, объедини их с текущим.
Например, "у меня течет", а потом "в ванной" означает "у меня течет в ванной".

Верни только JSON:
{
  "incident_type": "incident" или "request",
  "location_type": "in_unit" или "shared",
  "category": одно из: %s,
  "object_description": "2-3 ключевых слова: что случилось и где",
  "confidence": число от 0.5 до 1.0
}

Правила:
- incident: что-то сломалось, течет, не работает; request: нужна информация или услуга.
- in_unit: квартира, ванная, кухня, балкон; shared: подъезд, лифт, подвал, крыша, двор.
- Если поле определить нельзя, верни пустую строку.`

// LLMExtractor asks the language model for the filters of a turn.
type LLMExtractor struct {
	client ai.LLMClient
	lex    *lexicon.Lexicon
}

// NewLLMExtractor creates the LLM extractor.
func NewLLMExtractor(client ai.LLMClient, lex *lexicon.Lexicon) *LLMExtractor {
	return &LLMExtractor{client: client, lex: lex}
}

type filterReply struct {
	IncidentType      string  `json:"incident_type"`
	LocationType      string  `json:"location_type"`
	Category          string  `json:"category"`
	ObjectDescription string  `json:"object_description"`
	Confidence        float64 `json:"confidence"`
}

func (e *LLMExtractor) Extract(ctx context.Context, in Input) (Filters, error) {
	prompt := fmt.Sprintf(FilterDetectionPrompt, formatHistory(in.History, llmHistoryEntries), in.Utterance, e.categoryList())

	completion, err := e.client.Complete(ai.WithPurpose(ctx, PurposeFilterDetection), prompt, extractMaxTokens, extractTemperature)
	if err != nil {
		return Filters{}, err
	}

	var reply filterReply
	found, err := ai.DecodeJSON(completion.Text, &reply)
	if err != nil || !found {
		return Filters{}, err
	}

	conf := min(max(reply.Confidence, 0), 1)
	var f Filters
	if v := strings.TrimSpace(reply.IncidentType); v == catalog.IncidentTypeIncident || v == catalog.IncidentTypeRequest {
		f.Incident = Value{Value: v, Confidence: conf}
	}
	if v := strings.TrimSpace(reply.LocationType); v == catalog.LocationInUnit || v == catalog.LocationShared {
		f.Location = Value{Value: v, Confidence: conf}
	}
	if v := strings.TrimSpace(reply.Category); e.isCategory(v) {
		f.Category = Value{Value: v, Confidence: conf}
	}
	if v := strings.TrimSpace(reply.ObjectDescription); v != "" {
		f.Object = Value{Value: v, Confidence: conf}
	}
	return f, nil
}

func (e *LLMExtractor) categoryList() string {
	var values []string
	for _, f := range e.lex.FeaturesOf(lexicon.DimensionCategory) {
		values = append(values, fmt.Sprintf("%q (%s)", f.Value, e.lex.CategoryLabel(f.Value)))
	}
	return strings.Join(values, ", ")
}

func (e *LLMExtractor) isCategory(v string) bool {
	for _, f := range e.lex.FeaturesOf(lexicon.DimensionCategory) {
		if f.Value == v {
			return true
		}
	}
	return false
}

func formatHistory(h memory.History, last int) string {
	if len(h) > last {
		h = h[len(h)-last:]
	}
	var b strings.Builder
	for _, e := range h {
		role := "Пользователь"
		if e.Role == memory.RoleBot {
			role = "Бот"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, e.Text)
	}
	return b.String()
}

// Combine joins the keyword and model filters of the same turn. Agreement
// keeps the higher confidence; a value only the model reports is capped below
// the established threshold; on disagreement an established keyword value wins.
func Combine(keyword, model Filters) Filters {
	out := Filters{Object: model.Object}
	if keyword.Object.Confidence > out.Object.Confidence {
		out.Object = keyword.Object
	}
	for _, dim := range Dimensions {
		out.set(dim, combineValue(keyword.Get(dim), model.Get(dim)))
	}
	return out
}

func combineValue(kw, model Value) Value {
	switch {
	case !model.IsSet():
		return kw
	case !kw.IsSet():
		model.Confidence = min(model.Confidence, llmUncorroboratedCap)
		return model
	case kw.Value == model.Value:
		return Value{Value: kw.Value, Confidence: max(kw.Confidence, model.Confidence)}
	case kw.Established():
		return kw
	default:
		model.Confidence = min(model.Confidence, llmUncorroboratedCap)
		if model.Confidence > kw.Confidence {
			return model
		}
		return kw
	}
}

// Chain runs the keyword extractor and, when configured, the LLM extractor,
// combining their output. A model failure returns the keyword result
// together with the error.
type Chain struct {
	Keyword *KeywordExtractor
	LLM     Extractor
}

func (c *Chain) Extract(ctx context.Context, in Input) (Filters, error) {
	kw, _ := c.Keyword.Extract(ctx, in)
	if c.LLM == nil {
		return kw, nil
	}
	model, err := c.LLM.Extract(ctx, in)
	if err != nil {
		return kw, err
	}
	return Combine(kw, model), nil
}
