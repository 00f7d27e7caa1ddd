package fields

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// knownLabels names fields whose ids say little about their meaning.
var knownLabels = map[string]string{
	"cf.50359307":             "Online Angebote",
	"member.membershipNumber": "Mitgliedsnummer",
	"member.joinDate":         "Eintrittsdatum",
	"member.resignationDate":  "Austrittsdatum",
	"member.paymentAmount":    "Beitrag",
	"member.paymentIntervall": "Zahlungsintervall",
	"contact.salutation":      "Anrede",
	"contact.firstName":       "Vorname",
	"contact.familyName":      "Nachname",
	"contact.name":            "Name",
	"contact.street":          "Straße",
	"contact.zip":             "PLZ",
	"contact.city":            "Ort",
	"contact.country":         "Land",
	"contact.dateOfBirth":     "Geburtsdatum",
	"contact.companyName":     "Firma",
}

// typeLabels prefix labels built from an id.
var typeLabels = map[FieldType]string{
	TypeMember:       "Member",
	TypeContact:      "Contact",
	TypeCF:           "Custom Field",
	TypeCFRaw:        "Custom Field (raw)",
	TypeContactCF:    "Contact Field",
	TypeContactCFRaw: "Contact Field (raw)",
	TypeConsent:      "Consent",
}

// abbreviations replace whole words of a decomposed id, keyed lower case.
var abbreviations = map[string]string{
	"id":    "ID",
	"url":   "URL",
	"email": "E-Mail",
	"zip":   "PLZ",
	"plz":   "PLZ",
	"cf":    "Custom Field",
	"iban":  "IBAN",
	"bic":   "BIC",
	"dob":   "Geburtsdatum",
}

// Suggestion is a label inferred from a field's id and example.
type Suggestion struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
	Rule       string `json:"rule"`
}

// GenerateLabel returns a display label for f. It does not look at f.Label;
// see DisplayLabel for that.
func GenerateLabel(f FieldEntry) string {
	if l, ok := knownLabels[f.ID]; ok {
		return l
	}
	if s, ok := SuggestLabel(f); ok {
		return s.Label
	}
	return decomposeLabel(f)
}

// SuggestLabel infers a label from the example of f, using the id to pick
// among more specific variants. Fields without an example get no suggestion.
func SuggestLabel(f FieldEntry) (Suggestion, bool) {
	sample := f.Example.Sample()
	if sample == "" {
		return Suggestion{}, false
	}
	key := hintKey(f.ID)
	kind := valueKind(sample)

	var best Suggestion
	for i, r := range labelRules {
		c := r.confidence(key, i == kind)
		if c > best.Confidence {
			best = Suggestion{Label: r.labelFor(key), Confidence: c, Rule: r.name}
		}
	}
	if best.Confidence > 0 {
		return best, true
	}

	if utf8.RuneCountInString(sample) <= maxVerbatimLen && verbatimExample.MatchString(sample) && kind < 0 {
		return Suggestion{Label: sample, Confidence: WeightVerbatim, Rule: "verbatim"}, true
	}
	return Suggestion{}, false
}

// DisplayLabel returns the user's label when it is real and a generated one
// otherwise.
func DisplayLabel(f FieldEntry) string {
	if f.HasRealLabel() {
		return strings.TrimSpace(f.Label)
	}
	return GenerateLabel(f)
}

// DisplayLabels maps every id of c to its display label. The catalogue is
// not modified.
func DisplayLabels(c Catalogue) map[string]string {
	out := make(map[string]string, len(c))
	for id, e := range c {
		e.ID = id
		out[id] = DisplayLabel(e)
	}
	return out
}

func decomposeLabel(f FieldEntry) string {
	t := f.Type
	rest := f.ID
	if p := TypeOf(f.ID); p != "" {
		t = p
		rest = strings.TrimPrefix(f.ID, string(p)+".")
	}

	var text string
	if isNumeric(rest) {
		text = "Field " + rest
	} else {
		words := splitWords(rest)
		for i, w := range words {
			if a, ok := abbreviations[strings.ToLower(w)]; ok {
				words[i] = a
				continue
			}
			words[i] = titleCase(w)
		}
		text = strings.Join(words, " ")
	}
	if text == "" {
		text = f.ID
	}

	if prefix, ok := typeLabels[t]; ok {
		return prefix + ": " + text
	}
	return text
}

// splitWords breaks an id like "privateEmail", "join_date" or "URLPath" into
// words.
func splitWords(s string) []string {
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

func titleCase(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
