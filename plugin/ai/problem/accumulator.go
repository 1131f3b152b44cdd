// Package problem folds successive user turns into one running problem
// description and derives filters from it.
package problem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
)

const (
	// PurposeProblemAccumulation tags usage records of the accumulator's calls.
	PurposeProblemAccumulation = "problem_accumulation"

	historyEntries   = 4
	historyTextRunes = 100
	maxTokens        = 400
	temperature      = 0.1

	confTextual   = 0.95
	confTentative = 0.7
	confIncident  = 0.9
	confObject    = 0.95
)

// Fields are the discrete facts of a problem.
type Fields struct {
	Problem   string `json:"problem,omitempty"`
	Location  string `json:"location,omitempty"`
	Source    string `json:"source,omitempty"`
	Category  string `json:"category,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Intensity string `json:"intensity,omitempty"`
	Object    string `json:"object,omitempty"`
}

// Merge returns f with the non-empty fields of next applied.
func (f Fields) Merge(next Fields) Fields {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	return Fields{
		Problem:   pick(f.Problem, next.Problem),
		Location:  pick(f.Location, next.Location),
		Source:    pick(f.Source, next.Source),
		Category:  pick(f.Category, next.Category),
		Severity:  pick(f.Severity, next.Severity),
		Intensity: pick(f.Intensity, next.Intensity),
		Object:    pick(f.Object, next.Object),
	}
}

// Input is one turn as seen by the accumulator.
type Input struct {
	Utterance       string
	Current         string
	LastBotQuestion string
	History         memory.History
}

// Result is the outcome of one accumulation.
type Result struct {
	UpdatedDescription string          `json:"updatedDescription"`
	IsMeaningful       bool            `json:"isMeaningful"`
	NewInfo            string          `json:"newInfo,omitempty"`
	Fields             Fields          `json:"fields"`
	Filters            extract.Filters `json:"filters"`
}

// Accumulator keeps the running problem description of a dialog.
type Accumulator struct {
	client ai.LLMClient
	lex    *lexicon.Lexicon
}

// NewAccumulator creates an accumulator. Without a client every meaningful
// utterance is appended verbatim.
func NewAccumulator(client ai.LLMClient, lex *lexicon.Lexicon) *Accumulator {
	return &Accumulator{client: client, lex: lex}
}

type reply struct {
	IsMeaningful   bool   `json:"is_meaningful"`
	NewInfo        string `json:"new_info"`
	UpdatedProblem string `json:"updated_problem"`
	Fields         Fields `json:"fields"`
}

// Accumulate folds the utterance into the current description.
// Trivial turns never reach the model and never change the description.
func (a *Accumulator) Accumulate(ctx context.Context, in Input) *Result {
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" || a.lex.IsTrivial(utterance) {
		return &Result{UpdatedDescription: in.Current}
	}

	if a.client == nil {
		return a.appended(in.Current, utterance, Fields{})
	}

	r, err := a.ask(ctx, in, utterance)
	if err != nil {
		slog.Warn("problem accumulation failed, appending utterance",
			slog.String("error_code", string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal))))
		return a.appended(in.Current, utterance, Fields{})
	}
	if !r.IsMeaningful {
		return &Result{UpdatedDescription: in.Current, NewInfo: r.NewInfo}
	}

	updated := strings.TrimSpace(r.UpdatedProblem)
	if updated == "" || !containsFolded(updated, in.Current) {
		addition := strings.TrimSpace(r.NewInfo)
		if addition == "" {
			addition = utterance
		}
		updated = join(in.Current, addition)
	}
	return &Result{
		UpdatedDescription: updated,
		IsMeaningful:       true,
		NewInfo:            r.NewInfo,
		Fields:             r.Fields,
		Filters:            a.Filters(updated, r.Fields),
	}
}

func (a *Accumulator) appended(current, utterance string, fields Fields) *Result {
	updated := join(current, utterance)
	return &Result{
		UpdatedDescription: updated,
		IsMeaningful:       true,
		NewInfo:            utterance,
		Fields:             fields,
		Filters:            a.Filters(updated, fields),
	}
}

func (a *Accumulator) ask(ctx context.Context, in Input, utterance string) (*reply, error) {
	prompt := buildPrompt(in, utterance)
	completion, err := a.client.Complete(ai.WithPurpose(ctx, PurposeProblemAccumulation), prompt, maxTokens, temperature)
	if err != nil {
		return nil, err
	}
	var r reply
	found, err := ai.DecodeJSON(completion.Text, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, funnelerrors.LLMMalformedResponse("empty accumulation reply", nil)
	}
	return &r, nil
}

// Filters derives filter values from the accumulated description. A field is
// established only when its value occurs in the description itself.
func (a *Accumulator) Filters(description string, fields Fields) extract.Filters {
	var f extract.Filters
	if strings.TrimSpace(description) == "" {
		return f
	}

	if a.lex.HasLeakWords(description) || a.lex.HasBreakageWords(description) {
		f.Incident = extract.Value{Value: catalog.IncidentTypeIncident, Confidence: confIncident}
	} else {
		f.Incident = extract.Value{Value: catalog.IncidentTypeRequest, Confidence: confTentative}
	}

	if loc := strings.TrimSpace(fields.Location); loc != "" {
		if mentions(description, loc) {
			value := catalog.LocationShared
			if a.lex.HasIndoorWords(loc) {
				value = catalog.LocationInUnit
			}
			if explicit, ok := a.lex.ExplicitLocation(loc); ok {
				value = explicit
			}
			f.Location = extract.Value{Value: value, Confidence: confTextual}
		} else {
			f.Location = extract.Value{Value: catalog.LocationInUnit, Confidence: confTentative}
		}
	}

	if cat := strings.TrimSpace(fields.Category); cat != "" {
		if value := a.categoryValue(cat); value != "" {
			conf := confTentative
			if mentions(description, cat) {
				conf = confTextual
			}
			f.Category = extract.Value{Value: value, Confidence: conf}
		}
	}

	obj := strings.TrimSpace(fields.Object)
	if obj == "" {
		obj = strings.TrimSpace(fields.Source)
	}
	if obj != "" {
		conf := confTentative
		if mentions(description, obj) {
			conf = confObject
		}
		f.Object = extract.Value{Value: obj, Confidence: conf}
	}
	return f
}

// categoryValue maps a free-text category to a category feature value.
func (a *Accumulator) categoryValue(text string) string {
	folded := lexicon.Fold(text)
	analyzed := lexicon.Analyze(text)
	for _, feat := range a.lex.FeaturesOf(lexicon.DimensionCategory) {
		if feat.Value == folded || strings.Contains(lexicon.Fold(feat.Label), folded) || feat.Hits(analyzed) > 0 {
			return feat.Value
		}
	}
	return ""
}

// mentions reports whether value occurs in text, literally or with every word
// present in some inflected form.
func mentions(text, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	if containsFolded(text, value) {
		return true
	}
	words := lexicon.Analyze(value)
	if len(words.Stems) == 0 {
		return false
	}
	analyzed := lexicon.Analyze(text)
	for _, stem := range words.Stems {
		if !analyzed.HasStem(stem) {
			return false
		}
	}
	return true
}

func containsFolded(haystack, needle string) bool {
	return strings.Contains(lexicon.Fold(haystack), lexicon.Fold(strings.TrimSpace(needle)))
}

func join(current, addition string) string {
	current = strings.TrimSpace(current)
	if current == "" {
		return addition
	}
	return strings.TrimRight(current, ".") + ", " + addition
}

func buildPrompt(in Input, utterance string) string {
	current := in.Current
	if strings.TrimSpace(current) == "" {
		current = "(пусто, начало диалога)"
	}
	question := in.LastBotQuestion
	if question == "" {
		question = "(не было, первое сообщение)"
	}

	var history strings.Builder
	h := in.History
	if len(h) > historyEntries {
		h = h[len(h)-historyEntries:]
	}
	for _, e := range h {
		text := []rune(e.Text)
		if len(text) > historyTextRunes {
			text = text[:historyTextRunes]
		}
		fmt.Fprintf(&history, "  %s: %s\n", e.Role, string(text))
	}

	return fmt.Sprintf(AccumulationPrompt, current, question, utterance, history.String())
}
