package extract

import (
	"context"
	"fmt"
	"strings"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
)

const (
	// PurposeRanking tags usage records of relevance ranking calls.
	PurposeRanking = "candidate_ranking"

	rankMaxTokens   = 200
	rankTemperature = 0.1
)

// RankingPrompt is the prompt template of the relevance ranker.
const RankingPrompt = `Ты опытный диспетчер управляющей компании. Выбери одну наиболее подходящую услугу для обращения.

Обращение: "%s"
Объект: "%s"

Доступные услуги:
%s
Учитывай, что произошло и где. Если подходят несколько, выбери наиболее точную.
Верни только JSON:
{"recommended_id": <id услуги из списка>, "confidence": <число от 0.5 до 1.0>, "reason": "<почему>"}`

// Ranking is the model's pick among candidates.
type Ranking struct {
	ServiceID  int32
	Confidence float64
	Reason     string
}

// Ranker orders a few candidates by relevance to the described object.
type Ranker struct {
	client ai.LLMClient
}

// NewRanker creates a ranker.
func NewRanker(client ai.LLMClient) *Ranker {
	return &Ranker{client: client}
}

type rankReply struct {
	RecommendedID *int32  `json:"recommended_id"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// Rank asks the model for the most relevant candidate. A reply naming a
// service outside candidates is malformed.
func (r *Ranker) Rank(ctx context.Context, contextText, object string, candidates []*catalog.Service) (*Ranking, error) {
	var b strings.Builder
	for i, svc := range candidates {
		fmt.Fprintf(&b, "%d. ID:%d | %s | Категория: %s | Место: %s\n", i+1, svc.ID, svc.Name,
			svc.Attributes.Category, svc.Attributes.LocationType)
	}
	prompt := fmt.Sprintf(RankingPrompt, contextText, object, b.String())

	completion, err := r.client.Complete(ai.WithPurpose(ctx, PurposeRanking), prompt, rankMaxTokens, rankTemperature)
	if err != nil {
		return nil, err
	}

	var reply rankReply
	found, err := ai.DecodeJSON(completion.Text, &reply)
	if err != nil {
		return nil, err
	}
	if !found || reply.RecommendedID == nil {
		return nil, funnelerrors.LLMMalformedResponse("ranking reply has no recommendation", nil)
	}
	for _, svc := range candidates {
		if svc.ID == *reply.RecommendedID {
			return &Ranking{ServiceID: svc.ID, Confidence: reply.Confidence, Reason: reply.Reason}, nil
		}
	}
	return nil, funnelerrors.LLMMalformedResponse(fmt.Sprintf("ranking picked unknown service %d", *reply.RecommendedID), nil)
}
