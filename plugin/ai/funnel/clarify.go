package funnel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

// Question texts. A text is never asked twice in one dialog.
const (
	QuestionLocation = "Где именно это произошло: в квартире у вас или на территории общедомового имущества?"
	QuestionIncident = "Уточните, пожалуйста: у вас аварийная ситуация (поломка, течь и т.п.) или вам нужна информация/услуга?"

	questionWaterHeating         = "Это проблема с водой (течь, засор) или с отоплением?"
	questionWaterElectricity     = "Проблема с водоснабжением или с электричеством?"
	questionElevatorUtilities    = "Проблема с лифтом или с коммуникациями (вода, свет, отопление)?"
	questionConstructionPlumbing = "Это проблема с конструкцией (крыша, стены) или с сантехникой?"
	questionCategoryList         = "Уточните, пожалуйста, о какой проблеме речь: %s?"
	questionNames                = "Уточните, пожалуйста, что именно произошло: %s?"

	questionLeak     = "Где именно это произошло? Пожалуйста, опишите подробнее."
	questionBreakage = "Что именно сломалось? Опишите, пожалуйста, подробнее."
	questionGeneric  = "Пожалуйста, уточните где именно это произошло и опишите подробнее, что случилось."

	// Shown when every question has been used up. It is not a question.
	messageDispatcher = "Не удалось точно определить услугу по описанию. Пожалуйста, позвоните диспетчеру управляющей компании, он поможет оформить заявку."
)

var (
	// Asked when free-text variants run out.
	rephraseQuestions = []string{
		"Опишите, пожалуйста, проблему другими словами: что именно случилось?",
		"Подскажите, что сейчас не работает или повреждено и где это находится?",
	}

	// Asked when nothing matched.
	openQuestions = []string{
		"Не удалось определить проблему. Опишите, пожалуйста, подробнее: что случилось и где?",
		"Попробуйте описать проблему другими словами: что именно не работает или сломалось?",
		"К чему относится проблема: вода, отопление, электричество, лифт, уборка или что-то другое?",
	}

	// Asked when too many services match.
	broadQuestions = []string{
		"Уточните, пожалуйста, что именно случилось: течь, засор, поломка, нет света или тепла?",
		"Опишите подробнее, что именно сломалось и где: в квартире или в подъезде?",
	}

	// Category pairs with a dedicated question, checked in order.
	categoryPairs = []struct {
		first  string
		second []string
		text   string
	}{
		{"water", []string{"heating"}, questionWaterHeating},
		{"water", []string{"electricity"}, questionWaterElectricity},
		{"elevator", []string{"water", "electricity", "heating"}, questionElevatorUtilities},
		{"construction", []string{"water"}, questionConstructionPlumbing},
	}
)

// Question is a clarification chosen for the user.
type Question struct {
	Dimension extract.Dimension
	Text      string
}

// IsQuestion reports whether the text asks the user something.
// The dispatcher message does not.
func (q Question) IsQuestion() bool {
	return strings.HasSuffix(q.Text, "?")
}

// asker picks clarification questions that have not been asked yet.
type asker struct {
	lex   *lexicon.Lexicon
	asked map[string]bool
}

func newAsker(lex *lexicon.Lexicon, asked ...[]string) *asker {
	a := &asker{lex: lex, asked: make(map[string]bool)}
	for _, list := range asked {
		for _, q := range list {
			a.asked[strings.TrimSpace(q)] = true
		}
	}
	return a
}

func (a *asker) fresh(text string) bool {
	return text != "" && !a.asked[text]
}

// first returns the first variant not asked yet.
func (a *asker) first(variants ...string) (string, bool) {
	for _, v := range variants {
		if a.fresh(v) {
			return v, true
		}
	}
	return "", false
}

// clarify picks the next question for the remaining services. Dimensions are
// tried in order location, incident, category: a dimension qualifies when the
// services disagree on it (or the single service has a value), it is not
// established yet and its question is fresh. Free text comes last.
func (a *asker) clarify(services []*catalog.Service, filters extract.Filters, context string) Question {
	for _, dim := range extract.Dimensions {
		if filters.Get(dim).Established() {
			continue
		}
		values := a.values(services, dim)
		if !splits(len(services), len(values)) {
			continue
		}
		if text, ok := a.dimensionQuestion(dim, values); ok {
			return Question{Dimension: dim, Text: text}
		}
	}
	return a.freeText(services, context)
}

func splits(services, values int) bool {
	if services == 1 {
		return values == 1
	}
	return values >= 2
}

func (a *asker) dimensionQuestion(dim extract.Dimension, values []string) (string, bool) {
	switch dim {
	case extract.DimensionLocation:
		return a.first(QuestionLocation)
	case extract.DimensionIncident:
		return a.first(QuestionIncident)
	case extract.DimensionCategory:
		return a.categoryQuestion(values)
	}
	return "", false
}

func (a *asker) categoryQuestion(values []string) (string, bool) {
	has := make(map[string]bool, len(values))
	for _, v := range values {
		has[v] = true
	}
	for _, pair := range categoryPairs {
		if !has[pair.first] {
			continue
		}
		for _, other := range pair.second {
			if has[other] {
				// A used pair question is not rephrased as a list.
				return a.first(pair.text)
			}
		}
	}
	if len(values) > 4 {
		return "", false
	}
	labels := make([]string, len(values))
	for i, v := range values {
		labels[i] = a.lex.CategoryLabel(v)
	}
	return a.first(fmt.Sprintf(questionCategoryList, joinOr(labels)))
}

// freeText asks for a description. Leak and breakage wording in the
// context decides which variant comes first.
func (a *asker) freeText(services []*catalog.Service, context string) Question {
	var variants []string
	if n := len(services); n >= 2 && n <= 3 {
		names := make([]string, n)
		for i, svc := range services {
			names[i] = svc.Name
		}
		variants = append(variants, fmt.Sprintf(questionNames, joinOr(names)))
	}
	switch {
	case a.lex.HasLeakWords(context):
		variants = append(variants, questionLeak, questionGeneric, questionBreakage)
	case a.lex.HasBreakageWords(context):
		variants = append(variants, questionBreakage, questionGeneric, questionLeak)
	default:
		variants = append(variants, questionGeneric, questionLeak, questionBreakage)
	}
	variants = append(variants, rephraseQuestions...)

	if text, ok := a.first(variants...); ok {
		return Question{Dimension: extract.DimensionFreeText, Text: text}
	}
	return Question{Dimension: extract.DimensionFreeText, Text: messageDispatcher}
}

// describe asks for the problem when the user sent nothing.
func (a *asker) describe(context string) Question {
	if text, ok := a.first(append([]string{messageAskProblem}, openQuestions...)...); ok {
		return Question{Dimension: extract.DimensionFreeText, Text: text}
	}
	return a.freeText(nil, context)
}

// open is the question for a turn without candidates.
func (a *asker) open(context string) Question {
	if text, ok := a.first(openQuestions...); ok {
		return Question{Dimension: extract.DimensionFreeText, Text: text}
	}
	return a.freeText(nil, context)
}

// broad is the question for a turn with too many candidates.
func (a *asker) broad(services []*catalog.Service, filters extract.Filters, context string) Question {
	if text, ok := a.first(broadQuestions...); ok {
		return Question{Dimension: extract.DimensionFreeText, Text: text}
	}
	return a.clarify(services, filters, context)
}

// values returns the distinct non-empty values of dim, sorted.
func (a *asker) values(services []*catalog.Service, dim extract.Dimension) []string {
	seen := make(map[string]bool)
	for _, svc := range services {
		var v string
		switch dim {
		case extract.DimensionLocation:
			v = svc.Attributes.LocationType
		case extract.DimensionIncident:
			v = svc.Attributes.IncidentType
		case extract.DimensionCategory:
			v = a.lex.CategoryOf(svc)
		}
		if v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " или " + items[len(items)-1]
	}
}
