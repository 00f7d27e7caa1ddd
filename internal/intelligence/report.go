package intelligence

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/fields"
)

// Stats counts catalogue entries along several axes.
type Stats struct {
	ByType map[fields.FieldType]int `json:"by_type"`
	ByArea map[fields.Area]int      `json:"by_area"`

	// Configured entries have a real label, an area other than unused, or
	// are shown.
	Configured   int `json:"configured"`
	Unconfigured int `json:"unconfigured"`
	Ignored      int `json:"ignored"`
	InUse        int `json:"in_use"`

	WithoutLabel   int `json:"without_label"`
	WithoutExample int `json:"without_example"`
	WithExample    int `json:"with_example"`

	Custom   int `json:"custom"`
	Standard int `json:"standard"`
}

type LabelSuggestion struct {
	FieldID    string `json:"field_id"`
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
	Rule       string `json:"rule"`
	Example    string `json:"example"`
}

type CategorySuggestion struct {
	FieldID  string          `json:"field_id"`
	Category fields.Category `json:"category"`
}

// ActivationSuggestion names an unused, ignored field that carries data and
// may be worth showing.
type ActivationSuggestion struct {
	FieldID string `json:"field_id"`
	Label   string `json:"label"`
	Example string `json:"example"`
}

type Suggestions struct {
	Labels     []LabelSuggestion      `json:"labels"`
	Categories []CategorySuggestion   `json:"categories"`
	Activation []ActivationSuggestion `json:"activation"`
}

// Duplicate lists fields whose examples are the same value.
type Duplicate struct {
	Value    string   `json:"value"`
	FieldIDs []string `json:"field_ids"`
}

// Grouping lists custom fields that were probably created together: same
// type and the same leading digits of the id.
type Grouping struct {
	Key           string   `json:"key"`
	Type          string   `json:"type"`
	FieldIDs      []string `json:"field_ids"`
	SimilarLabels bool     `json:"similar_labels"`
}

// Recommendation is a plain-language next step derived from the report.
type Recommendation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Report is a projection of a catalogue. It is recomputed on demand and never
// stored as configuration.
type Report struct {
	Stats           Stats            `json:"stats"`
	Suggestions     Suggestions      `json:"suggestions"`
	Recommendations []Recommendation `json:"recommendations"`
	Duplicates      []Duplicate      `json:"duplicates"`
	Groupings       []Grouping       `json:"groupings"`
	TotalFields     int              `json:"total_fields"`
	Timestamp       time.Time        `json:"timestamp"`
}
