// Package intelligence derives statistics and configuration hints from a
// field catalogue. Everything here is a pure function of the catalogue and a
// clock.
package intelligence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/fields"
)

// groupDigits is how many leading digits of a custom field id form a group key.
const groupDigits = 6

type Analyzer struct {
	now func() time.Time
}

// NewAnalyzer returns an Analyzer. A nil clock means time.Now.
func NewAnalyzer(now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{now: now}
}

// Analyze builds the report for c. Output order depends only on the
// catalogue contents.
func (a *Analyzer) Analyze(c fields.Catalogue) *Report {
	ids := c.IDs()
	entries := make([]fields.FieldEntry, len(ids))
	for i, id := range ids {
		e := c[id]
		e.ID = id
		entries[i] = e
	}

	r := &Report{
		Stats:       computeStats(entries),
		Suggestions: suggest(entries),
		Duplicates:  findDuplicates(entries),
		Groupings:   findGroupings(entries),
		TotalFields: len(entries),
		Timestamp:   a.now().UTC(),
	}
	r.Recommendations = recommend(r)
	return r
}

func computeStats(entries []fields.FieldEntry) Stats {
	s := Stats{
		ByType: map[fields.FieldType]int{},
		ByArea: map[fields.Area]int{},
	}
	for _, t := range fields.Types {
		s.ByType[t] = 0
	}
	for _, a := range fields.Areas {
		s.ByArea[a] = 0
	}

	for _, e := range entries {
		s.ByType[e.Type]++
		area := e.Area
		if !area.Valid() {
			area = fields.AreaUnused
		}
		s.ByArea[area]++

		if e.HasRealLabel() || area != fields.AreaUnused || e.Show {
			s.Configured++
		} else {
			s.Unconfigured++
		}
		if e.Ignored {
			s.Ignored++
		}
		if area.InUse() {
			s.InUse++
		}

		if !e.HasRealLabel() {
			s.WithoutLabel++
		}
		if e.Example.IsEmpty() {
			s.WithoutExample++
		} else {
			s.WithExample++
		}

		if e.Type.IsCustom() {
			s.Custom++
		} else {
			s.Standard++
		}
	}
	return s
}

func suggest(entries []fields.FieldEntry) Suggestions {
	out := Suggestions{
		Labels:     []LabelSuggestion{},
		Categories: []CategorySuggestion{},
		Activation: []ActivationSuggestion{},
	}

	for _, e := range entries {
		if !e.HasRealLabel() && !e.Example.IsEmpty() {
			if s, ok := fields.SuggestLabel(e); ok {
				out.Labels = append(out.Labels, LabelSuggestion{
					FieldID:    e.ID,
					Label:      s.Label,
					Confidence: s.Confidence,
					Rule:       s.Rule,
					Example:    e.Example.String(),
				})
			}
		}

		if cat, ok := fields.CategoryOf(e); ok {
			out.Categories = append(out.Categories, CategorySuggestion{FieldID: e.ID, Category: cat})
		}

		if (e.Area == fields.AreaUnused || !e.Area.Valid()) && e.Ignored && !e.Example.IsEmpty() {
			out.Activation = append(out.Activation, ActivationSuggestion{
				FieldID: e.ID,
				Label:   fields.DisplayLabel(e),
				Example: e.Example.String(),
			})
		}
	}

	// entries are in id order, so ties keep it
	sort.SliceStable(out.Labels, func(i, j int) bool {
		return out.Labels[i].Confidence > out.Labels[j].Confidence
	})
	return out
}

// duplicateKey is the normalised example: trimmed, lower case, list items
// joined.
func duplicateKey(e fields.FieldEntry) string {
	return strings.ToLower(strings.TrimSpace(e.Example.String()))
}

func findDuplicates(entries []fields.FieldEntry) []Duplicate {
	groups := map[string][]string{}
	for _, e := range entries {
		key := duplicateKey(e)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], e.ID)
	}

	out := []Duplicate{}
	for key, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		out = append(out, Duplicate{Value: key, FieldIDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// groupKey returns "<type>:<first six digits>" for a custom field id with a
// numeric suffix.
func groupKey(e fields.FieldEntry) (string, bool) {
	t := fields.TypeOf(e.ID)
	if !t.IsCustom() {
		return "", false
	}
	suffix := strings.TrimPrefix(e.ID, string(t)+".")
	if suffix == "" {
		return "", false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	if len(suffix) > groupDigits {
		suffix = suffix[:groupDigits]
	}
	return string(t) + ":" + suffix, true
}

func findGroupings(entries []fields.FieldEntry) []Grouping {
	members := map[string][]fields.FieldEntry{}
	for _, e := range entries {
		if key, ok := groupKey(e); ok {
			members[key] = append(members[key], e)
		}
	}

	out := []Grouping{}
	for key, group := range members {
		if len(group) < 2 {
			continue
		}
		ids := make([]string, len(group))
		for i, e := range group {
			ids[i] = e.ID
		}
		sort.Strings(ids)
		t, _, _ := strings.Cut(key, ":")
		out = append(out, Grouping{Key: key, Type: t, FieldIDs: ids, SimilarLabels: similarLabels(group)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// similarLabels reports whether any two real labels in the group contain one
// another, ignoring case.
func similarLabels(group []fields.FieldEntry) bool {
	var labels []string
	for _, e := range group {
		if e.HasRealLabel() {
			labels = append(labels, strings.ToLower(strings.TrimSpace(e.Label)))
		}
	}
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			if strings.Contains(labels[i], labels[j]) || strings.Contains(labels[j], labels[i]) {
				return true
			}
		}
	}
	return false
}

func recommend(r *Report) []Recommendation {
	out := []Recommendation{}
	add := func(kind string, n int, format string) {
		if n > 0 {
			out = append(out, Recommendation{Kind: kind, Message: fmt.Sprintf(format, n), Count: n})
		}
	}

	add("label_fields", r.Stats.WithoutLabel, "%d fields have no label of their own")
	add("apply_label_suggestions", len(r.Suggestions.Labels), "%d label suggestions are available")
	add("activate_fields", len(r.Suggestions.Activation), "%d ignored fields carry data and could be shown")
	add("review_duplicates", len(r.Duplicates), "%d groups of fields hold identical values")
	add("review_groupings", len(r.Groupings), "%d groups of custom fields look related")
	return out
}
