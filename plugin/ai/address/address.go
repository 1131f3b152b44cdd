// Package address accumulates the address of a dialog from free text.
// Fields found in a turn replace the remembered ones; nothing else is ever
// forgotten.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
)

// Fragments is a possibly partial address.
type Fragments struct {
	Street    string `json:"street,omitempty"`
	House     string `json:"house,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Entrance  string `json:"entrance,omitempty"`
}

// Merge overlays f on memory: a field set in f wins, otherwise memory's is kept.
func (f Fragments) Merge(memory Fragments) Fragments {
	pick := func(cur, prev string) string {
		if cur != "" {
			return cur
		}
		return prev
	}
	return Fragments{
		Street:    pick(f.Street, memory.Street),
		House:     pick(f.House, memory.House),
		Apartment: pick(f.Apartment, memory.Apartment),
		Entrance:  pick(f.Entrance, memory.Entrance),
	}
}

// Confidence is the share of filled fields.
func (f Fragments) Confidence() float64 {
	filled := 0
	for _, v := range []string{f.Street, f.House, f.Apartment, f.Entrance} {
		if v != "" {
			filled++
		}
	}
	return float64(filled) / 4
}

// Complete reports whether the address is enough to dispatch: street and house.
func (f Fragments) Complete() bool {
	return f.Street != "" && f.House != ""
}

// IsEmpty reports whether no field is set.
func (f Fragments) IsEmpty() bool {
	return f == Fragments{}
}

// Missing lists the names of the required fields that are still empty.
func (f Fragments) Missing() []string {
	var out []string
	if f.Street == "" {
		out = append(out, "улица")
	}
	if f.House == "" {
		out = append(out, "номер дома")
	}
	return out
}

func (f Fragments) String() string {
	var parts []string
	if f.Street != "" {
		parts = append(parts, "ул. "+f.Street)
	}
	if f.House != "" {
		parts = append(parts, "д. "+f.House)
	}
	if f.Apartment != "" {
		parts = append(parts, "кв. "+f.Apartment)
	}
	if f.Entrance != "" {
		parts = append(parts, "подъезд "+f.Entrance)
	}
	return strings.Join(parts, ", ")
}

const (
	boundary = `(?:^|[^\p{L}\p{N}])`
	number   = `(\d+\p{L}?(?:/\d+)?)`
	sep      = `(?:\.\s*|\s+)`
	word     = `[\p{L}\p{N}][\p{L}\p{N}-]*`
	capWord  = `\p{Lu}[\p{L}-]*`
)

var (
	// "ул. Ленина 5", "пр-т Мира, 10", "ул. 8 Марта"
	streetPrefixRe = regexp.MustCompile(boundary + `(?i:улица|проспект|переулок|бульвар|ул|пр-т|пр|пер|б-р|бул)` + sep +
		`(` + word + `(?:\s+` + capWord + `)?)(?:\s*,?\s*` + number + `)?`)
	// "на улице Гагарина 15"
	streetOnRe = regexp.MustCompile(boundary + `(?i:на\s+улице)\s+(` + capWord + `(?:\s+` + capWord + `)?)(?:\s*,?\s*` + number + `)?`)
	// "Садовая улица, 5"
	streetSuffixRe = regexp.MustCompile(boundary + `(` + capWord + `)\s+(?i:улица)(?:[^\p{L}]|$)(?:\s*,?\s*` + number + `)?`)

	houseRe   = regexp.MustCompile(boundary + `(?i:дом|д)` + sep + `(?:№\s*)?` + number)
	houseNoRe = regexp.MustCompile(`(\p{L}*)\.?\s*№\s*` + number)
	// "кв. 5", "кв5", "в квартире 12"
	apartRe = regexp.MustCompile(boundary + `(?i:квартир(?:а|е|у|ы|ой)|кв)\.?\s*(?:№\s*)?(\d+\p{L}?)`)
	// "12 квартира"
	apartBeforeRe = regexp.MustCompile(boundary + `(\d+\p{L}?)\s+(?i:квартира)`)
	entranceRe    = regexp.MustCompile(boundary + `(?i:подъезд|под)` + sep + `(?:№\s*)?(\d+)`)
	// "2 подъезд", "3-й подъезд"
	entranceBeforeRe = regexp.MustCompile(boundary + `(\d+)(?:-?(?i:й|ый|ой|ий))?\s+(?i:подъезд)`)
	entranceAheadRe  = regexp.MustCompile(`^(?:-?(?i:й|ый|ой|ий))?\s+(?i:подъезд)`)

	// Words that end a street name.
	addressKeywords = map[string]bool{
		"дом": true, "д": true, "кв": true, "квартира": true, "квартире": true, "подъезд": true, "под": true,
	}
)

// Parse extracts the fields stated in a single utterance.
func Parse(utterance string) Fragments {
	text := strings.ReplaceAll(strings.ReplaceAll(norm.NFC.String(utterance), "ё", "е"), "Ё", "Е")

	var f Fragments
	f.Street, f.House = parseStreet(text)

	if m := houseRe.FindStringSubmatch(text); m != nil {
		f.House = lexicon.Fold(m[1])
	} else if f.House == "" {
		for _, m := range houseNoRe.FindAllStringSubmatch(text, -1) {
			if label := lexicon.Fold(m[1]); label == "" || label == "дом" || label == "д" {
				f.House = lexicon.Fold(m[2])
				break
			}
		}
	}
	if m := apartRe.FindStringSubmatch(text); m != nil {
		f.Apartment = lexicon.Fold(m[1])
	} else if m := apartBeforeRe.FindStringSubmatch(text); m != nil {
		f.Apartment = lexicon.Fold(m[1])
	}
	if m := entranceRe.FindStringSubmatch(text); m != nil {
		f.Entrance = m[1]
	} else if m := entranceBeforeRe.FindStringSubmatch(text); m != nil {
		f.Entrance = m[1]
	}
	return f
}

// Extract parses the utterance and merges it over the remembered fragments.
func Extract(utterance string, memory Fragments) Fragments {
	return Parse(utterance).Merge(memory)
}

// parseStreet returns the street and, when a number directly follows it, the house.
func parseStreet(text string) (street, house string) {
	for _, re := range []*regexp.Regexp{streetPrefixRe, streetOnRe, streetSuffixRe} {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			name := trimKeywords(text[idx[2]:idx[3]])
			if name == "" {
				continue
			}
			if idx[4] >= 0 && !entranceAheadRe.MatchString(text[idx[5]:]) {
				house = lexicon.Fold(text[idx[4]:idx[5]])
			}
			return cases.Title(language.Russian).String(lexicon.Fold(name)), house
		}
	}
	return "", ""
}

func trimKeywords(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if addressKeywords[lexicon.Fold(w)] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}
