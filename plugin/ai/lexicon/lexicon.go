package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
)

//go:embed features.yaml
var defaultTable []byte

// Dimensions of a feature.
const (
	DimensionIncident = "incident"
	DimensionCategory = "category"
	DimensionLocation = "location"
)

type tableFile struct {
	MinScore         float64            `yaml:"min_score"`
	Saturation       float64            `yaml:"saturation"`
	DimensionFactors map[string]float64 `yaml:"dimension_factors"`
	Features         []featureFile      `yaml:"features"`
	Vocabulary       vocabularyFile     `yaml:"vocabulary"`
}

type featureFile struct {
	Name      string   `yaml:"name"`
	Dimension string   `yaml:"dimension"`
	Value     string   `yaml:"value"`
	Label     string   `yaml:"label"`
	Weight    float64  `yaml:"weight"`
	Eligible  string   `yaml:"eligible"`
	Keywords  []string `yaml:"keywords"`
}

type vocabularyFile struct {
	Trivial        []string `yaml:"trivial"`
	Leak           []string `yaml:"leak"`
	Breakage       []string `yaml:"breakage"`
	Indoor         []string `yaml:"indoor"`
	LocationInUnit []string `yaml:"location_in_unit"`
	LocationShared []string `yaml:"location_shared"`
}

// Feature is one compiled row of the feature table.
type Feature struct {
	Name      string
	Dimension string
	Value     string
	Label     string
	Weight    float64
	Keywords  []Keyword

	program cel.Program
}

// Hits counts the keywords of the feature present in t.
func (f *Feature) Hits(t *Text) int {
	hits := 0
	for _, kw := range f.Keywords {
		if kw.MatchedBy(t) {
			hits++
		}
	}
	return hits
}

// Eligible evaluates the feature's predicate against the service.
// Evaluation errors make the service ineligible.
func (f *Feature) Eligible(svc *catalog.Service) bool {
	out, _, err := f.program.Eval(map[string]any{
		"name":          Fold(svc.Name),
		"category":      Fold(svc.Attributes.Category),
		"incident_type": svc.Attributes.IncidentType,
		"location_type": svc.Attributes.LocationType,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Lexicon is the immutable language table shared by matchers and extractors.
type Lexicon struct {
	MinScore         float64
	Saturation       float64
	dimensionFactors map[string]float64
	features         []*Feature

	trivial        map[string]bool
	leak           []string
	breakage       []string
	indoor         []string
	locationInUnit []string
	locationShared []string
}

// Load reads a feature table from path, or the embedded table when path is empty.
func Load(path string) (*Lexicon, error) {
	data := defaultTable
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read feature table %s", path)
		}
	}
	return Parse(data)
}

// Default returns the embedded table. It panics if the embedded file is broken,
// which only a bad build can cause.
func Default() *Lexicon {
	lex, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded feature table is invalid: %v", err))
	}
	return lex
}

// Parse compiles a YAML feature table.
func Parse(data []byte) (*Lexicon, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse feature table")
	}
	if file.Saturation <= 0 {
		file.Saturation = 2
	}

	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("incident_type", cel.StringType),
		cel.Variable("location_type", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create predicate environment")
	}

	lex := &Lexicon{
		MinScore:         file.MinScore,
		Saturation:       file.Saturation,
		dimensionFactors: file.DimensionFactors,
		trivial:          make(map[string]bool),
		leak:             foldAll(file.Vocabulary.Leak),
		breakage:         foldAll(file.Vocabulary.Breakage),
		indoor:           foldAll(file.Vocabulary.Indoor),
		locationInUnit:   foldAll(file.Vocabulary.LocationInUnit),
		locationShared:   foldAll(file.Vocabulary.LocationShared),
	}
	for _, w := range file.Vocabulary.Trivial {
		lex.trivial[Fold(w)] = true
	}

	for _, ff := range file.Features {
		switch ff.Dimension {
		case DimensionIncident, DimensionCategory, DimensionLocation:
		default:
			return nil, errors.Errorf("feature %s: unknown dimension %q", ff.Name, ff.Dimension)
		}

		ast, iss := env.Compile(ff.Eligible)
		if iss != nil && iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "feature %s: invalid predicate", ff.Name)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("feature %s: predicate must be boolean", ff.Name)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %s: failed to build predicate", ff.Name)
		}

		f := &Feature{
			Name:      ff.Name,
			Dimension: ff.Dimension,
			Value:     ff.Value,
			Label:     ff.Label,
			Weight:    ff.Weight,
			program:   prg,
		}
		for _, kw := range ff.Keywords {
			f.Keywords = append(f.Keywords, NewKeyword(kw))
		}
		lex.features = append(lex.features, f)
	}
	if len(lex.features) == 0 {
		return nil, errors.New("feature table has no features")
	}
	return lex, nil
}

func foldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Normalize(w)
	}
	return out
}

// Features returns the compiled features in table order.
func (l *Lexicon) Features() []*Feature {
	return l.features
}

// FeaturesOf returns the features of one dimension in table order.
func (l *Lexicon) FeaturesOf(dimension string) []*Feature {
	var out []*Feature
	for _, f := range l.features {
		if f.Dimension == dimension {
			out = append(out, f)
		}
	}
	return out
}

// DimensionFactor returns the scoring factor of a dimension.
func (l *Lexicon) DimensionFactor(dimension string) float64 {
	return l.dimensionFactors[dimension]
}

// CategoryOf maps a service to the value of the first category feature it is eligible for.
func (l *Lexicon) CategoryOf(svc *catalog.Service) string {
	for _, f := range l.FeaturesOf(DimensionCategory) {
		if f.Eligible(svc) {
			return f.Value
		}
	}
	return ""
}

// CategoryLabel returns the human readable name of a category value.
func (l *Lexicon) CategoryLabel(value string) string {
	for _, f := range l.FeaturesOf(DimensionCategory) {
		if f.Value == value {
			if f.Label != "" {
				return f.Label
			}
			return f.Name
		}
	}
	return value
}

// IsTrivial reports whether the utterance is a greeting, acknowledgement or filler.
func (l *Lexicon) IsTrivial(utterance string) bool {
	tokens := Tokens(utterance)
	for _, tok := range tokens {
		if !l.trivial[tok] {
			return false
		}
	}
	return true
}

// HasLeakWords reports leak vocabulary (течет, капает, leak).
func (l *Lexicon) HasLeakWords(text string) bool {
	return containsAny(Normalize(text), l.leak)
}

// HasBreakageWords reports breakage vocabulary (сломался, не работает, broken).
func (l *Lexicon) HasBreakageWords(text string) bool {
	return containsAny(Normalize(text), l.breakage)
}

// HasIndoorWords reports room nouns (кухня, ванная, kitchen).
func (l *Lexicon) HasIndoorWords(text string) bool {
	return containsAny(Normalize(text), l.indoor)
}

// ExplicitLocation returns the location type stated in so many words,
// "в квартире" → in_unit, "в подъезде" → shared.
func (l *Lexicon) ExplicitLocation(text string) (string, bool) {
	norm := Normalize(text)
	inUnit := containsAny(norm, l.locationInUnit)
	shared := containsAny(norm, l.locationShared)
	switch {
	case inUnit && !shared:
		return catalog.LocationInUnit, true
	case shared && !inUnit:
		return catalog.LocationShared, true
	default:
		return "", false
	}
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
