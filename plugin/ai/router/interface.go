// Package router holds the classifiers of the detection funnel. Every
// classifier maps an utterance to scored catalog candidates; they differ only
// in how they score.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
)

// Source identifies a classifier.
type Source string

const (
	SourceTag      Source = "tag"
	SourceSemantic Source = "semantic"
	SourceTrigram  Source = "trigram"
	SourceFallback Source = "fallback"
	SourceLLM      Source = "llm"
)

// DefaultWeights are the static trust weights of the sources used by aggregation.
var DefaultWeights = map[Source]float64{
	SourceTag:      1.0,
	SourceLLM:      0.9,
	SourceSemantic: 0.8,
	SourceTrigram:  0.6,
	SourceFallback: 0.5,
}

// Status is the outcome of one search.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Candidate is one service hypothesis produced by a classifier.
type Candidate struct {
	ServiceID   int32   `json:"serviceId"`
	ServiceName string  `json:"serviceName"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
}

// Result is the typed outcome of a search. Failures are carried in Err with
// StatusError and no candidates; Search never returns a Go error.
type Result struct {
	Source     Source
	Status     Status
	Candidates []Candidate
	Err        error
}

// OK reports whether the search produced candidates.
func (r Result) OK() bool {
	return r.Status == StatusSuccess && len(r.Candidates) > 0
}

// Classifier scores an utterance against the catalog.
type Classifier interface {
	Source() Source
	Search(ctx context.Context, utterance string) Result
}

// CatalogProvider supplies the current catalog snapshot.
type CatalogProvider interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// NewResult builds a success or empty result from candidates.
func NewResult(source Source, candidates []Candidate) Result {
	if len(candidates) == 0 {
		return Result{Source: source, Status: StatusEmpty}
	}
	return Result{Source: source, Status: StatusSuccess, Candidates: candidates}
}

// Failed builds an error result.
func Failed(source Source, err error) Result {
	return Result{Source: source, Status: StatusError, Err: funnelerrors.ClassifierUnavailable(string(source), err)}
}

// SafeSearch runs c with its own timeout and converts a panic into an error result.
func SafeSearch(ctx context.Context, c Classifier, utterance string, timeout time.Duration) (res Result) {
	source := c.Source()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("classifier panicked", slog.String("source", string(source)), slog.Any("panic", r))
			res = Failed(source, fmt.Errorf("panic: %v", r))
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res = c.Search(ctx, utterance)
	if res.Status != StatusError && ctx.Err() != nil {
		return Failed(source, ctx.Err())
	}
	if res.Source == "" {
		res.Source = source
	}
	return res
}

// sortCandidates orders by confidence desc, then service id asc.
func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Confidence != cands[j].Confidence {
			return cands[i].Confidence > cands[j].Confidence
		}
		return cands[i].ServiceID < cands[j].ServiceID
	})
}

func limit(cands []Candidate, n int) []Candidate {
	if n > 0 && len(cands) > n {
		return cands[:n]
	}
	return cands
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
