package funnel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/address"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/problem"
	"github.com/hrygo/servicefunnel/plugin/ai/router"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
	"github.com/hrygo/servicefunnel/plugin/ai/timeout"
)

const (
	messageConfirmSingle   = "Правильно ли я понял, что у вас проблема: %s?"
	messageConfirmFiltered = "Понял, у вас: %s. Это правильно?"
	messageTechnicalError  = "Произошла техническая ошибка. Пожалуйста, опишите проблему другими словами или позвоните диспетчеру управляющей компании."
	messageUnavailable     = "Сервис определения услуг временно недоступен. Пожалуйста, повторите попытку через несколько минут или позвоните диспетчеру управляющей компании."
	messageAskProblem      = "Опишите, пожалуйста, вашу проблему: что случилось и где?"
)

// Deps are the collaborators of the funnel.
type Deps struct {
	Catalog router.CatalogProvider
	Lexicon *lexicon.Lexicon
	Store   session.DialogStore
	// Fast classifiers run concurrently on every turn.
	Fast []router.Classifier
	// Fallback runs only when the fast classifiers found nothing.
	Fallback  router.Classifier
	Escalator Escalator
	// Keyword extracts filters on every turn; Extractor replaces it when
	// several candidates are narrowed.
	Keyword   *extract.KeywordExtractor
	Extractor extract.Extractor
	Ranker    Ranker
	Problems  *problem.Accumulator
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service is the funnel orchestrator.
type Service struct {
	Deps
	cfg   Config
	locks *keyedMutex
}

// NewService creates the orchestrator. Missing optional collaborators are
// replaced by their deterministic counterparts.
func NewService(cfg Config, deps Deps) *Service {
	if deps.Keyword == nil {
		deps.Keyword = extract.NewKeywordExtractor(deps.Lexicon)
	}
	if deps.Extractor == nil {
		deps.Extractor = deps.Keyword
	}
	if deps.Problems == nil {
		deps.Problems = problem.NewAccumulator(nil, deps.Lexicon)
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Weights == nil {
		cfg.Weights = router.DefaultWeights
	}
	return &Service{Deps: deps, cfg: cfg, locks: newKeyedMutex()}
}

// Build wires the production funnel. client may be nil, in which case no
// step of the funnel calls a model.
func Build(cat router.CatalogProvider, lex *lexicon.Lexicon, store session.DialogStore, client ai.LLMClient, metrics *observability.Metrics) *Service {
	keyword := extract.NewKeywordExtractor(lex)
	deps := Deps{
		Catalog: cat,
		Lexicon: lex,
		Store:   store,
		Fast: []router.Classifier{
			router.NewTagMatcher(cat),
			router.NewSemanticMatcher(cat, lex),
			router.NewTrigramMatcher(cat),
		},
		Fallback:  router.NewFallbackMatcher(cat),
		Keyword:   keyword,
		Extractor: &extract.Chain{Keyword: keyword},
		Problems:  problem.NewAccumulator(client, lex),
		Metrics:   metrics,
	}
	if client != nil {
		deps.Escalator = router.NewLLMMatcher(cat, client)
		deps.Extractor = &extract.Chain{Keyword: keyword, LLM: extract.NewLLMExtractor(client, lex)}
		deps.Ranker = extract.NewRanker(client)
	}
	return NewService(DefaultConfig(), deps)
}

// Reset forgets a dialog on explicit cancellation.
func (s *Service) Reset(ctx context.Context, dialogID string) error {
	if dialogID != "" {
		unlock, err := s.locks.Lock(ctx, dialogID)
		if err != nil {
			return funnelerrors.Internal("dialog is busy", err)
		}
		defer unlock()
	}

	if err := s.Store.Delete(ctx, dialogID); err != nil {
		return funnelerrors.Internal("failed to reset dialog", err)
	}
	return nil
}

// DetectService runs one turn of the dialog. It never returns an error:
// failures become an ERROR result whose message tells the user what to do.
// Dialog state is saved only when the turn succeeds.
func (s *Service) DetectService(ctx context.Context, utterance string, dc DetectContext) (res *DetectResult) {
	reqCtx := observability.NewRequestContext(s.Logger, dc.DialogID)
	ctx = observability.WithRequestContext(ctx, reqCtx)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	// Anonymous turns share no state, so they are not serialized.
	if dc.DialogID != "" {
		unlock, err := s.locks.Lock(ctx, dc.DialogID)
		if err != nil {
			err = funnelerrors.Internal("dialog is busy", err)
			reqCtx.Error("turn failed", err)
			return s.failed(reqCtx, err)
		}
		defer unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			err := funnelerrors.Internal("funnel panicked", fmt.Errorf("%v", r))
			reqCtx.Error("turn failed", err,
				slog.String(observability.LogFieldUtterance, observability.Truncate(utterance, timeout.MaxTruncateLength)))
			res = s.failed(reqCtx, err)
		}
	}()

	dialog, _ := session.Recover(ctx, s.Store, dc.DialogID, dc.DialogHistory)
	work := dialog.Clone()

	res, err := s.turn(ctx, strings.TrimSpace(utterance), dc, work)
	if err != nil {
		reqCtx.Error("turn failed", err,
			slog.String(observability.LogFieldUtterance, observability.Truncate(utterance, timeout.MaxTruncateLength)),
			slog.String(observability.LogFieldErrorCode, string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal))))
		return s.failed(reqCtx, err)
	}

	work.AppendTurn(utterance, res.Message, time.Now())
	if dc.DialogID != "" {
		_ = session.Commit(ctx, s.Store, work)
	}

	s.Metrics.RecordTurn(string(res.State), time.Duration(reqCtx.DurationMs())*time.Millisecond)
	reqCtx.Info("turn completed",
		slog.String(observability.LogFieldState, string(res.State)),
		slog.String("status", string(res.Status)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Bool("escalated", res.Escalated),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return res
}

func (s *Service) failed(reqCtx *observability.RequestContext, err error) *DetectResult {
	s.Metrics.RecordFailure()
	s.Metrics.RecordTurn(string(StateFailed), time.Duration(reqCtx.DurationMs())*time.Millisecond)

	code := funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal)
	msg := messageTechnicalError
	if code == funnelerrors.ErrCodeCatalogEmpty {
		msg = messageUnavailable
	}
	return &DetectResult{
		Status:    StatusError,
		Message:   msg,
		State:     StateFailed,
		ErrorCode: string(code),
	}
}

// turnState is the working data of one turn.
type turnState struct {
	utterance string
	dc        DetectContext
	dialog    *session.Dialog
	snap      *catalog.Snapshot
	asker     *asker
	escalated bool
}

// contextText is the text leak and breakage vocabulary is looked up in.
func (t *turnState) contextText() string {
	return strings.Join([]string{t.dc.OriginalMessage, t.dialog.Problem.Description, t.utterance}, " ")
}

func (s *Service) turn(ctx context.Context, utterance string, dc DetectContext, dialog *session.Dialog) (*DetectResult, error) {
	snap, err := s.Catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	t := &turnState{
		utterance: utterance,
		dc:        dc,
		dialog:    dialog,
		snap:      snap,
		asker:     newAsker(s.Lexicon, dialog.History.BotQuestions(), dialog.AskedQuestions),
	}
	if utterance == "" {
		return s.ask(t, StateNoCandidates, nil, t.asker.describe(t.contextText())), nil
	}

	dialog.Address = address.Extract(utterance, dialog.Address)

	searchText := dialog.History.SearchText(utterance, s.cfg.HistoryMessages, func(m string) bool {
		return !s.Lexicon.IsTrivial(m)
	})
	fast, accumulated := s.fanOut(ctx, t, searchText)

	if accumulated.IsMeaningful {
		dialog.Problem.Description = accumulated.UpdatedDescription
		dialog.Problem.Fields = dialog.Problem.Fields.Merge(accumulated.Fields)
	}
	keyword := s.Keyword.FromText(utterance)
	filters := extract.Merge(extract.Merge(dialog.Filters, accumulated.Filters), keyword)

	results := okResults(fast)
	cands := s.aggregate(results, snap)

	if len(dialog.RetainedIDs) > 0 {
		if narrowed := retain(cands, dialog.RetainedIDs); len(narrowed) > 0 {
			cands = narrowed
		}
		dialog.RetainedIDs = nil
	}

	if len(cands) == 0 && s.Fallback != nil {
		if r := router.SafeSearch(ctx, s.Fallback, searchText, s.cfg.ClassifierTimeout); r.OK() {
			results = append(results, r)
			cands = s.aggregate(results, snap)
		}
	}

	if s.shouldEscalate(fast, cands) {
		if r, ok := s.escalate(ctx, t, searchText, cands); ok {
			results = append(results, r)
			cands = s.aggregate(results, snap)
		}
	}

	switch n := len(cands); {
	case n == 0:
		dialog.Filters = filters
		return s.ask(t, StateNoCandidates, nil, t.asker.open(t.contextText())), nil
	case n == 1:
		dialog.Filters = filters
		return s.single(t, cands[0], filters), nil
	case n <= s.cfg.FewMax:
		return s.few(ctx, t, cands, filters), nil
	default:
		dialog.Filters = filters
		return s.many(t, cands, filters), nil
	}
}

// fanOut runs the fast classifiers and the problem accumulator concurrently.
// Classifier failures count as empty results.
func (s *Service) fanOut(ctx context.Context, t *turnState, searchText string) ([]router.Result, *problem.Result) {
	reqCtx, _ := observability.FromContext(ctx)
	fast := make([]router.Result, len(s.Fast))
	var accumulated *problem.Result

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range s.Fast {
		g.Go(func() error {
			fast[i] = router.SafeSearch(gctx, c, searchText, s.cfg.ClassifierTimeout)
			if fast[i].Status == router.StatusError && reqCtx != nil {
				reqCtx.Warn("classifier failed",
					slog.String(observability.LogFieldSource, string(c.Source())),
					slog.String(observability.LogFieldErrorCode, string(funnelerrors.GetCodeFromError(fast[i].Err, funnelerrors.ErrCodeClassifierUnavailable))))
			}
			return nil
		})
	}
	g.Go(func() error {
		lastQuestion, _ := t.dialog.History.LastBotQuestion()
		accumulated = s.Problems.Accumulate(gctx, problem.Input{
			Utterance:       t.utterance,
			Current:         t.dialog.Problem.Description,
			LastBotQuestion: lastQuestion,
			History:         t.dialog.History,
		})
		return nil
	})
	_ = g.Wait()
	return fast, accumulated
}

// shouldEscalate decides on the model classifier from the fast results:
// nothing found, nothing confident, or sources that disagree completely.
// When the fast classifiers found nothing, a fallback hit in cands is enough.
func (s *Service) shouldEscalate(fast []router.Result, cands []AggregatedCandidate) bool {
	ok := okResults(fast)
	if len(ok) == 0 {
		return len(cands) == 0
	}

	var best float64
	for _, r := range ok {
		for _, c := range r.Candidates {
			best = max(best, c.Confidence)
		}
	}
	if best < s.cfg.EscalationConfidence {
		return true
	}
	return len(ok) >= 2 && pairwiseDisjoint(ok)
}

func (s *Service) escalate(ctx context.Context, t *turnState, searchText string, cands []AggregatedCandidate) (router.Result, bool) {
	if s.Escalator == nil || !s.Escalator.Enabled() {
		return router.Result{}, false
	}
	t.escalated = true
	s.Metrics.RecordEscalation()

	current := make([]int32, len(cands))
	for i, c := range cands {
		current[i] = c.ServiceID
	}
	r := s.Escalator.SearchWithCandidates(ctx, searchText, current)
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Debug("escalated to llm classifier",
			slog.String("status", string(r.Status)),
			slog.Int("candidates", len(r.Candidates)))
	}
	return r, r.OK()
}

func (s *Service) single(t *turnState, top AggregatedCandidate, filters extract.Filters) *DetectResult {
	if top.Priority >= s.cfg.HighConfidence {
		return s.resolve(t, StateSingleHighConfidence, top, []AggregatedCandidate{top}, fmt.Sprintf(messageConfirmSingle, top.ServiceName))
	}
	svc, _ := t.snap.Get(top.ServiceID)
	q := t.asker.clarify([]*catalog.Service{svc}, filters, t.contextText())
	return s.ask(t, StateSingleLowConfidence, []AggregatedCandidate{top}, q)
}

// few narrows a handful of candidates by the dialog's filters, then by the
// model's ranking for a known object, and asks otherwise.
func (s *Service) few(ctx context.Context, t *turnState, cands []AggregatedCandidate, filters extract.Filters) *DetectResult {
	turnFilters, err := s.Extractor.Extract(ctx, extract.Input{Utterance: t.utterance, History: t.dialog.History})
	if err != nil {
		if reqCtx, ok := observability.FromContext(ctx); ok {
			reqCtx.Warn("filter extraction degraded to keywords",
				slog.String(observability.LogFieldErrorCode, string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal))))
		}
	}
	filters = extract.Merge(filters, turnFilters)
	t.dialog.Filters = filters

	services := s.services(t.snap, cands)
	narrowed := extract.Apply(services, filters, s.Lexicon)
	if len(narrowed) == 1 {
		top := pick(cands, narrowed)[0]
		return s.resolve(t, StateFewCandidates, top, []AggregatedCandidate{top}, fmt.Sprintf(messageConfirmFiltered, top.ServiceName))
	}
	if len(narrowed) == 0 {
		narrowed = services
	}
	remaining := pick(cands, narrowed)

	if s.Ranker != nil && filters.Object.IsSet() {
		ranking, err := s.Ranker.Rank(ctx, t.contextText(), filters.Object.Value, narrowed)
		switch {
		case err != nil:
			if reqCtx, ok := observability.FromContext(ctx); ok {
				reqCtx.Warn("ranking failed",
					slog.String(observability.LogFieldErrorCode, string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal))))
			}
		case ranking.Confidence >= s.cfg.RankAccept:
			for _, c := range remaining {
				if c.ServiceID == ranking.ServiceID {
					return s.resolve(t, StateFewCandidates, c, remaining, fmt.Sprintf(messageConfirmFiltered, c.ServiceName))
				}
			}
		}
	}

	return s.ask(t, StateFewCandidates, remaining, t.asker.clarify(narrowed, filters, t.contextText()))
}

// many asks a broad question and keeps the top candidates for the next turn.
func (s *Service) many(t *turnState, cands []AggregatedCandidate, filters extract.Filters) *DetectResult {
	kept := cands
	if len(kept) > s.cfg.RetainTop {
		kept = kept[:s.cfg.RetainTop]
	}
	q := t.asker.broad(s.services(t.snap, kept), filters, t.contextText())
	res := s.ask(t, StateManyCandidates, kept, q)

	t.dialog.RetainedIDs = make([]int32, len(kept))
	for i, c := range kept {
		t.dialog.RetainedIDs[i] = c.ServiceID
	}
	return res
}

func (s *Service) resolve(t *turnState, state State, top AggregatedCandidate, cands []AggregatedCandidate, msg string) *DetectResult {
	t.dialog.State = session.StateResolved
	t.dialog.Reason = ""
	t.dialog.ServiceID = top.ServiceID
	t.dialog.Confidence = top.Priority
	t.dialog.RetainedIDs = nil

	res := s.result(t, state, cands, msg)
	res.Status = StatusSuccess
	res.ServiceID = top.ServiceID
	res.ServiceName = top.ServiceName
	res.Confidence = top.Priority
	res.NeedsConfirmation = true
	return res
}

func (s *Service) ask(t *turnState, state State, cands []AggregatedCandidate, q Question) *DetectResult {
	if state == StateNoCandidates {
		t.dialog.State = session.StateCollectingProblem
	} else {
		t.dialog.State = session.StateClarifying
	}
	t.dialog.Reason = string(state)
	if q.IsQuestion() {
		t.dialog.MarkAsked(q.Text)
	}

	res := s.result(t, state, cands, q.Text)
	res.Status = StatusAmbiguous
	res.Dimension = q.Dimension
	return res
}

func (s *Service) result(t *turnState, state State, cands []AggregatedCandidate, msg string) *DetectResult {
	if cands == nil {
		cands = []AggregatedCandidate{}
	}
	return &DetectResult{
		Message:         msg,
		Candidates:      cands,
		State:           state,
		DialogState:     t.dialog.State,
		Filters:         t.dialog.Filters,
		Address:         t.dialog.Address,
		AddressComplete: t.dialog.Address.Complete(),
		Problem:         t.dialog.Problem.Description,
		Escalated:       t.escalated,
	}
}

// aggregate merges results and drops services missing from the catalog.
func (s *Service) aggregate(results []router.Result, snap *catalog.Snapshot) []AggregatedCandidate {
	in := make([]SourceResult, 0, len(results))
	for _, r := range results {
		in = append(in, SourceResult{Source: r.Source, Weight: s.cfg.Weights[r.Source], Candidates: r.Candidates})
	}

	var out []AggregatedCandidate
	for _, c := range Aggregate(in) {
		svc, ok := snap.Get(c.ServiceID)
		if !ok {
			continue
		}
		c.ServiceName = svc.Name
		c.Attributes = svc.Attributes
		out = append(out, c)
	}
	return out
}

func (s *Service) services(snap *catalog.Snapshot, cands []AggregatedCandidate) []*catalog.Service {
	out := make([]*catalog.Service, 0, len(cands))
	for _, c := range cands {
		if svc, ok := snap.Get(c.ServiceID); ok {
			out = append(out, svc)
		}
	}
	return out
}

func okResults(results []router.Result) []router.Result {
	var out []router.Result
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func pairwiseDisjoint(results []router.Result) bool {
	sets := make([]map[int32]bool, len(results))
	for i, r := range results {
		sets[i] = make(map[int32]bool, len(r.Candidates))
		for _, c := range r.Candidates {
			sets[i][c.ServiceID] = true
		}
	}
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			for id := range sets[i] {
				if sets[j][id] {
					return false
				}
			}
		}
	}
	return true
}

// retain keeps the candidates whose id is in ids, in ranking order.
func retain(cands []AggregatedCandidate, ids []int32) []AggregatedCandidate {
	keep := make(map[int32]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out []AggregatedCandidate
	for _, c := range cands {
		if keep[c.ServiceID] {
			out = append(out, c)
		}
	}
	return out
}

// pick returns the candidates of services, in ranking order.
func pick(cands []AggregatedCandidate, services []*catalog.Service) []AggregatedCandidate {
	ids := make([]int32, len(services))
	for i, svc := range services {
		ids[i] = svc.ID
	}
	return retain(cands, ids)
}
