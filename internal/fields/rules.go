package fields

import (
	"regexp"
	"strings"
)

// Category groups fields by what their values are about.
type Category string

const (
	CategoryContactInfo Category = "contact-info"
	CategoryAddress     Category = "address"
	CategoryWebPresence Category = "web-presence"
)

// Confidence weights. A suggestion sums the weights of the evidence that
// supports it and is capped at MaxConfidence.
const (
	WeightIDHint   = 70
	WeightEmail    = 90
	WeightPostal   = 85
	WeightPhone    = 80
	WeightURL      = 80
	WeightDate     = 75
	WeightBoolean  = 60
	WeightVerbatim = 40

	MaxConfidence = 100
)

type refinement struct {
	hints []string
	label string
}

// labelRule recognises one kind of value by its id and its example.
type labelRule struct {
	name     string
	label    string
	pattern  *regexp.Regexp
	weight   int
	hints    []string
	refine   []refinement
	category Category
}

var (
	privateHints  = []string{"privat"}
	businessHints = []string{"business", "company", "work", "office", "geschäft", "dienst", "firm"}
)

// labelRules is evaluated in order; on equal confidence the earlier rule
// wins. Order also decides the kind of a value, see valueKind.
var labelRules = []labelRule{
	{
		name:    "email",
		label:   "E-Mail",
		pattern: regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`),
		weight:  WeightEmail,
		hints:   []string{"email", "e_mail", "e-mail", "mail"},
		refine: []refinement{
			{privateHints, "E-Mail (privat)"},
			{businessHints, "E-Mail (geschäftlich)"},
		},
		category: CategoryContactInfo,
	},
	{
		name:     "url",
		label:    "Website",
		pattern:  regexp.MustCompile(`(?i)^(https?://|www\.)\S+$`),
		weight:   WeightURL,
		hints:    []string{"url", "website", "homepage", "web", "link"},
		category: CategoryWebPresence,
	},
	{
		name:    "date",
		label:   "Datum",
		pattern: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?|\d{1,2}\.\d{1,2}\.(\d{2}|\d{4}))$`),
		weight:  WeightDate,
		hints:   []string{"date", "datum"},
		refine: []refinement{
			{[]string{"birth", "geburt"}, "Geburtsdatum"},
			{[]string{"join", "eintritt", "entry"}, "Eintrittsdatum"},
			{[]string{"resign", "austritt", "leave"}, "Austrittsdatum"},
		},
	},
	{
		name:     "postal",
		label:    "PLZ",
		pattern:  regexp.MustCompile(`^\d{4,5}$`),
		weight:   WeightPostal,
		hints:    []string{"zip", "plz", "postal", "postcode"},
		category: CategoryAddress,
	},
	{
		name:    "phone",
		label:   "Telefon",
		pattern: regexp.MustCompile(`^\+?[0-9][0-9 ()/\-]{5,}[0-9]$`),
		weight:  WeightPhone,
		hints:   []string{"phone", "tel", "mobile", "handy", "fax"},
		refine: []refinement{
			{[]string{"mobile", "handy", "cell"}, "Mobiltelefon"},
			{[]string{"fax"}, "Fax"},
			{privateHints, "Telefon (privat)"},
			{businessHints, "Telefon (geschäftlich)"},
		},
		category: CategoryContactInfo,
	},
	{
		name:    "boolean",
		label:   "Ja/Nein",
		pattern: regexp.MustCompile(`(?i)^(true|false|yes|no|ja|nein)$`),
		weight:  WeightBoolean,
	},
}

// addressHints mark address parts that have no value pattern of their own.
var addressHints = []string{"street", "strasse", "straße", "city", "wohnort", "country", "address", "adresse"}

// verbatimExample matches a short capitalised word or phrase.
var verbatimExample = regexp.MustCompile(`^\p{Lu}[\p{L}]+( [\p{L}]+){0,3}$`)

const maxVerbatimLen = 30

func (r labelRule) hintMatch(key string) bool {
	return containsAny(key, r.hints)
}

func (r labelRule) labelFor(key string) string {
	for _, ref := range r.refine {
		if containsAny(key, ref.hints) {
			return ref.label
		}
	}
	return r.label
}

func (r labelRule) confidence(key string, kindMatch bool) int {
	c := 0
	if r.hintMatch(key) {
		c += WeightIDHint
	}
	if kindMatch {
		c += r.weight
	}
	return min(c, MaxConfidence)
}

// valueKind returns the index of the first rule whose pattern matches
// sample, or -1. A value has one kind: an ISO date is a date even though the
// phone pattern would accept it too.
func valueKind(sample string) int {
	if sample == "" {
		return -1
	}
	for i, r := range labelRules {
		if r.pattern.MatchString(sample) {
			return i
		}
	}
	return -1
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hintKey is the lower-cased id without its type prefix, so "contact." never
// reads as a hint.
func hintKey(id string) string {
	if t := TypeOf(id); t != "" {
		id = strings.TrimPrefix(id, string(t)+".")
	}
	return strings.ToLower(id)
}

// CategoryOf returns the category suggested by the id or the example of f.
func CategoryOf(f FieldEntry) (Category, bool) {
	key := hintKey(f.ID)
	kind := valueKind(f.Example.Sample())
	for i, r := range labelRules {
		if r.category == "" {
			continue
		}
		if r.hintMatch(key) || i == kind {
			return r.category, true
		}
	}
	if containsAny(key, addressHints) {
		return CategoryAddress, true
	}
	return "", false
}
