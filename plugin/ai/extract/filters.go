// Package extract derives structured filters (incident type, location type,
// category, object) from a user turn and narrows candidate services by them.
package extract

import (
	"context"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
)

// EstablishedThreshold is the confidence at which a filter is treated as fixed.
const EstablishedThreshold = 0.9

// Dimension is an attribute axis a clarification question can target.
type Dimension string

const (
	DimensionLocation Dimension = "location"
	DimensionIncident Dimension = "incident"
	DimensionCategory Dimension = "category"
	DimensionFreeText Dimension = "free_text"
)

// Dimensions lists the filterable dimensions in clarification order.
var Dimensions = []Dimension{DimensionLocation, DimensionIncident, DimensionCategory}

// Value is one extracted filter value.
type Value struct {
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// IsSet reports whether the value carries anything.
func (v Value) IsSet() bool {
	return v.Value != ""
}

// Established reports whether the value is fixed for the dialog.
func (v Value) Established() bool {
	return v.IsSet() && v.Confidence >= EstablishedThreshold
}

// Filters is the partial set of facts extracted for a dialog.
type Filters struct {
	Incident Value `json:"incident"`
	Location Value `json:"location"`
	Category Value `json:"category"`
	Object   Value `json:"object"`
}

// Get returns the value of a dimension.
func (f Filters) Get(dim Dimension) Value {
	switch dim {
	case DimensionIncident:
		return f.Incident
	case DimensionLocation:
		return f.Location
	case DimensionCategory:
		return f.Category
	default:
		return Value{}
	}
}

func (f *Filters) set(dim Dimension, v Value) {
	switch dim {
	case DimensionIncident:
		f.Incident = v
	case DimensionLocation:
		f.Location = v
	case DimensionCategory:
		f.Category = v
	}
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return !f.Incident.IsSet() && !f.Location.IsSet() && !f.Category.IsSet() && !f.Object.IsSet()
}

// Input is what an extractor sees of a turn.
type Input struct {
	Utterance string
	History   memory.History
}

// Extractor derives filters from a turn.
type Extractor interface {
	Extract(ctx context.Context, in Input) (Filters, error)
}

// Merge applies the filters of a new turn on top of the dialog's filters.
// An established value is replaced only by a different value the new turn
// itself establishes. A tentative value never overwrites an established one
// but may replace another tentative value.
func Merge(prev, turn Filters) Filters {
	out := prev
	for _, dim := range Dimensions {
		out.set(dim, mergeValue(prev.Get(dim), turn.Get(dim)))
	}
	out.Object = mergeValue(prev.Object, turn.Object)
	return out
}

func mergeValue(prev, next Value) Value {
	switch {
	case !next.IsSet():
		return prev
	case !prev.IsSet():
		return next
	case prev.Established():
		if next.Established() {
			if next.Value == prev.Value {
				next.Confidence = max(next.Confidence, prev.Confidence)
			}
			return next
		}
		return prev
	case next.Value == prev.Value:
		next.Confidence = max(next.Confidence, prev.Confidence)
		return next
	default:
		return next
	}
}

// Admits reports whether svc satisfies the value of dim.
func Admits(svc *catalog.Service, dim Dimension, value string, lex *lexicon.Lexicon) bool {
	switch dim {
	case DimensionIncident:
		return svc.Attributes.IncidentType == value
	case DimensionLocation:
		return svc.Attributes.LocationType == value
	case DimensionCategory:
		for _, f := range lex.FeaturesOf(lexicon.DimensionCategory) {
			if f.Value == value && f.Eligible(svc) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Apply keeps the services that satisfy every established filter.
func Apply(services []*catalog.Service, f Filters, lex *lexicon.Lexicon) []*catalog.Service {
	var out []*catalog.Service
	for _, svc := range services {
		ok := true
		for _, dim := range Dimensions {
			v := f.Get(dim)
			if v.Established() && !Admits(svc, dim, v.Value, lex) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, svc)
		}
	}
	return out
}
