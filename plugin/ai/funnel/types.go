// Package funnel routes a complaint to a catalog service. Each turn it fans
// out to the fast classifiers, aggregates their candidates, and then accepts
// a service, asks a clarification question or escalates to the language
// model.
package funnel

import (
	"context"
	"time"

	"github.com/hrygo/servicefunnel/plugin/ai/address"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	"github.com/hrygo/servicefunnel/plugin/ai/router"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
	"github.com/hrygo/servicefunnel/plugin/ai/timeout"
)

// Status is the outcome of a turn.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusAmbiguous Status = "AMBIGUOUS"
	StatusError     Status = "ERROR"
)

// State is the candidate situation the funnel found itself in.
type State string

const (
	StateNoCandidates         State = "NO_CANDIDATES"
	StateSingleHighConfidence State = "SINGLE_HIGH_CONFIDENCE"
	StateSingleLowConfidence  State = "SINGLE_LOW_CONFIDENCE"
	StateFewCandidates        State = "FEW_CANDIDATES"
	StateManyCandidates       State = "MANY_CANDIDATES"
	StateFailed               State = "FAILED"
)

// DetectContext describes the turn.
type DetectContext struct {
	DialogID string
	// OriginalMessage is the first complaint of the dialog, when the caller knows it.
	OriginalMessage string
	IsFollowup      bool
	// DialogHistory is the caller's transcript; when set it replaces the stored history.
	DialogHistory memory.History
}

// DetectResult is the answer of one turn.
type DetectResult struct {
	Status            Status                `json:"status"`
	ServiceID         int32                 `json:"serviceId,omitempty"`
	ServiceName       string                `json:"serviceName,omitempty"`
	Confidence        float64               `json:"confidence,omitempty"`
	Message           string                `json:"message"`
	Candidates        []AggregatedCandidate `json:"candidates"`
	NeedsConfirmation bool                  `json:"needsConfirmation,omitempty"`
	State             State                 `json:"state"`
	DialogState       session.State         `json:"dialogState,omitempty"`
	Dimension         extract.Dimension     `json:"dimension,omitempty"`
	Filters           extract.Filters       `json:"filters"`
	Address           address.Fragments     `json:"address"`
	AddressComplete   bool                  `json:"addressComplete"`
	Problem           string                `json:"problem,omitempty"`
	Escalated         bool                  `json:"escalated"`
	ErrorCode         string                `json:"errorCode,omitempty"`
}

// Escalator is the expensive classifier consulted on escalation.
type Escalator interface {
	Enabled() bool
	SearchWithCandidates(ctx context.Context, utterance string, current []int32) router.Result
}

// Ranker picks the most relevant of several services for a known object.
type Ranker interface {
	Rank(ctx context.Context, contextText, object string, candidates []*catalog.Service) (*extract.Ranking, error)
}

// Config holds the thresholds of the funnel.
type Config struct {
	// HighConfidence accepts a single candidate without clarification.
	HighConfidence float64
	// EscalationConfidence escalates when no fast candidate reaches it.
	EscalationConfidence float64
	// RankAccept is the minimal confidence of an accepted ranking.
	RankAccept float64
	// FewMax is the largest candidate set narrowed by filters.
	FewMax int
	// RetainTop is the number of candidates kept after a broad question.
	RetainTop int
	// HistoryMessages is the number of earlier user messages added to the search text.
	HistoryMessages   int
	Weights           map[router.Source]float64
	ClassifierTimeout time.Duration
	TurnTimeout       time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidence:       0.9,
		EscalationConfidence: 0.40,
		RankAccept:           0.7,
		FewMax:               5,
		RetainTop:            10,
		HistoryMessages:      2,
		Weights:              router.DefaultWeights,
		ClassifierTimeout:    timeout.ClassifierTimeout,
		TurnTimeout:          timeout.TurnTimeout,
	}
}
