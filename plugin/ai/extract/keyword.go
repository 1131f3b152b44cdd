package extract

import (
	"context"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

// Confidences assigned by the keyword extractor.
const (
	confExplicitLocation = 0.95
	confIndoorLocation   = 0.7
	confLeakOrBreakage   = 0.9
	confIncidentFeature  = 0.8
	confRequestFeature   = 0.7
	confCategoryStrong   = 0.9
	confCategoryWeak     = 0.75
)

// KeywordExtractor reads filters off the utterance with the lexicon.
// Only what the current utterance says is reported.
type KeywordExtractor struct {
	lex *lexicon.Lexicon
}

// NewKeywordExtractor creates a keyword extractor.
func NewKeywordExtractor(lex *lexicon.Lexicon) *KeywordExtractor {
	return &KeywordExtractor{lex: lex}
}

func (e *KeywordExtractor) Extract(_ context.Context, in Input) (Filters, error) {
	return e.FromText(in.Utterance), nil
}

// FromText extracts filters from a single text.
func (e *KeywordExtractor) FromText(text string) Filters {
	var f Filters
	analyzed := lexicon.Analyze(text)

	if loc, ok := e.lex.ExplicitLocation(text); ok {
		f.Location = Value{Value: loc, Confidence: confExplicitLocation}
	} else if e.lex.HasIndoorWords(text) {
		f.Location = Value{Value: catalog.LocationInUnit, Confidence: confIndoorLocation}
	}

	switch {
	case e.lex.HasLeakWords(text) || e.lex.HasBreakageWords(text):
		f.Incident = Value{Value: catalog.IncidentTypeIncident, Confidence: confLeakOrBreakage}
	default:
		for _, feat := range e.lex.FeaturesOf(lexicon.DimensionIncident) {
			if feat.Hits(analyzed) == 0 {
				continue
			}
			conf := confRequestFeature
			if feat.Value == catalog.IncidentTypeIncident {
				conf = confIncidentFeature
			}
			if conf > f.Incident.Confidence {
				f.Incident = Value{Value: feat.Value, Confidence: conf}
			}
		}
	}

	f.Category = e.category(analyzed)
	return f
}

// category picks the category feature with the most hits. A tie for the top
// is ambiguous and yields nothing.
func (e *KeywordExtractor) category(t *lexicon.Text) Value {
	best, bestHits, tie := "", 0, false
	for _, feat := range e.lex.FeaturesOf(lexicon.DimensionCategory) {
		hits := feat.Hits(t)
		switch {
		case hits == 0:
		case hits > bestHits:
			best, bestHits, tie = feat.Value, hits, false
		case hits == bestHits && feat.Value != best:
			tie = true
		}
	}
	if bestHits == 0 || tie {
		return Value{}
	}
	if bestHits >= 2 {
		return Value{Value: best, Confidence: confCategoryStrong}
	}
	return Value{Value: best, Confidence: confCategoryWeak}
}
