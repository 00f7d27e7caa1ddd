// Package fields holds the field catalogue and the steps that build it:
// extraction from member records, option label resolution, merging with the
// persisted configuration and label generation.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldType classifies a catalogue entry by where its value comes from.
type FieldType string

const (
	TypeMember       FieldType = "member"
	TypeContact      FieldType = "contact"
	TypeCF           FieldType = "cf"
	TypeCFRaw        FieldType = "cfraw"
	TypeContactCF    FieldType = "contactcf"
	TypeContactCFRaw FieldType = "contactcfraw"
	TypeConsent      FieldType = "consent"
)

// Types lists every field type in display order.
var Types = []FieldType{TypeMember, TypeContact, TypeCF, TypeCFRaw, TypeContactCF, TypeContactCFRaw, TypeConsent}

func (t FieldType) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// IsCustom reports whether the type holds custom field values.
func (t FieldType) IsCustom() bool {
	switch t {
	case TypeCF, TypeCFRaw, TypeContactCF, TypeContactCFRaw:
		return true
	}
	return false
}

// TypeOf infers the type from the id prefix, e.g. "cf.123" is TypeCF.
// It returns "" for an unknown prefix.
func TypeOf(id string) FieldType {
	prefix, _, ok := strings.Cut(id, ".")
	if !ok {
		return ""
	}
	if t := FieldType(prefix); t.Valid() {
		return t
	}
	return ""
}

// FieldID builds a catalogue id such as "contactcf.123".
func FieldID(t FieldType, key string) string {
	return string(t) + "." + key
}

// Area is where a field is placed on the member card.
type Area string

const (
	AreaAbove  Area = "above"
	AreaBelow  Area = "below"
	AreaUnused Area = "unused"
)

// Areas lists every area in display order.
var Areas = []Area{AreaAbove, AreaBelow, AreaUnused}

func (a Area) Valid() bool {
	return a == AreaAbove || a == AreaBelow || a == AreaUnused
}

// InUse reports whether the area places the field on the card.
func (a Area) InUse() bool {
	return a == AreaAbove || a == AreaBelow
}

type exampleKind uint8

const (
	exampleNull exampleKind = iota
	exampleText
	exampleList
)

// Example is the sample value last seen for a field: null, a single string or
// a list of strings (select fields).
type Example struct {
	kind exampleKind
	text string
	list []string
}

func NullExample() Example {
	return Example{}
}

func TextExample(s string) Example {
	return Example{kind: exampleText, text: s}
}

func ListExample(items []string) Example {
	return Example{kind: exampleList, list: append([]string{}, items...)}
}

func (e Example) IsNull() bool { return e.kind == exampleNull }
func (e Example) IsList() bool { return e.kind == exampleList }

// List returns a copy of the list items, or nil for a non-list example.
func (e Example) List() []string {
	if e.kind != exampleList {
		return nil
	}
	return append([]string{}, e.list...)
}

// String renders the example as text; list items are joined with ", ".
func (e Example) String() string {
	switch e.kind {
	case exampleText:
		return e.text
	case exampleList:
		return strings.Join(e.list, ", ")
	}
	return ""
}

// Sample returns a single representative value: the text, or the first
// non-blank list item.
func (e Example) Sample() string {
	if e.kind != exampleList {
		return strings.TrimSpace(e.text)
	}
	for _, s := range e.list {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// IsEmpty reports a null example or one that renders as blank text.
func (e Example) IsEmpty() bool {
	return strings.TrimSpace(e.String()) == ""
}

func (e Example) Equal(o Example) bool {
	if e.kind != o.kind || e.text != o.text || len(e.list) != len(o.list) {
		return false
	}
	for i := range e.list {
		if e.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

func (e Example) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case exampleText:
		return marshalText(e.text)
	case exampleList:
		return marshalText(e.List())
	}
	return []byte("null"), nil
}

// marshalText encodes v without escaping <, > and &, so labels stay readable
// in the configuration file.
func marshalText(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (e *Example) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*e = NullExample()
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			s, ok, err := scalarText(item)
			if err != nil {
				return err
			}
			if ok {
				list = append(list, s)
			}
		}
		*e = ListExample(list)
	default:
		s, ok, err := scalarText(b)
		if err != nil {
			return err
		}
		if !ok {
			*e = NullExample()
			return nil
		}
		*e = TextExample(s)
	}
	return nil
}

// scalarText renders a JSON string, number or bool as text. ok is false for
// null.
func scalarText(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return "", false, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false, err
	}
	switch x := v.(type) {
	case string:
		return x, true, nil
	case json.Number:
		return x.String(), true, nil
	case bool:
		if x {
			return "true", true, nil
		}
		return "false", true, nil
	}
	return "", false, fmt.Errorf("example: unsupported value %s", string(b))
}

// FieldEntry is one field of the catalogue. Label, Area, Show and Ignored are
// user settings; Example is refreshed by every extraction.
type FieldEntry struct {
	ID      string
	Type    FieldType
	Label   string
	Example Example
	Area    Area
	Show    bool
	Ignored bool
}

// NewEntry returns an unconfigured entry for a discovered field.
func NewEntry(id string, t FieldType, example Example) FieldEntry {
	return FieldEntry{ID: id, Type: t, Example: example, Area: AreaUnused}
}

// HasRealLabel reports whether the user gave the field a label of its own,
// i.e. one that is neither blank nor the id echoed back.
func (f FieldEntry) HasRealLabel() bool {
	l := strings.TrimSpace(f.Label)
	return l != "" && l != f.ID
}

type entryJSON struct {
	Label   *string   `json:"label"`
	Area    Area      `json:"area"`
	Type    FieldType `json:"type"`
	Example Example   `json:"example"`
	Show    bool      `json:"show"`
	Ignored bool      `json:"ignored"`
}

func (f FieldEntry) MarshalJSON() ([]byte, error) {
	w := entryJSON{Area: f.Area, Type: f.Type, Example: f.Example, Show: f.Show, Ignored: f.Ignored}
	if f.Label != "" {
		label := f.Label
		w.Label = &label
	}
	return marshalText(w)
}

func (f *FieldEntry) UnmarshalJSON(b []byte) error {
	var w entryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*f = FieldEntry{Type: w.Type, Example: w.Example, Area: w.Area, Show: w.Show, Ignored: w.Ignored}
	if w.Label != nil {
		f.Label = *w.Label
	}
	return nil
}

// Catalogue maps field ids to entries.
type Catalogue map[string]FieldEntry

// IDs returns the field ids in sorted order.
func (c Catalogue) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Catalogue) Clone() Catalogue {
	out := make(Catalogue, len(c))
	for id, e := range c {
		e.Example = cloneExample(e.Example)
		out[id] = e
	}
	return out
}

func cloneExample(e Example) Example {
	if e.kind == exampleList {
		return ListExample(e.list)
	}
	return e
}

// Normalize validates entries read from outside: the id comes from the key,
// an unknown area becomes unused and an unknown type is inferred from the id.
func (c Catalogue) Normalize() {
	for id, e := range c {
		e.ID = id
		if !e.Area.Valid() {
			e.Area = AreaUnused
		}
		if !e.Type.Valid() {
			e.Type = TypeOf(id)
		}
		c[id] = e
	}
}

func (c *Catalogue) UnmarshalJSON(b []byte) error {
	var m map[string]FieldEntry
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*c = Catalogue(m)
	if *c == nil {
		*c = Catalogue{}
	}
	c.Normalize()
	return nil
}

// Union adds the entries of other to c. An entry already in c keeps its
// settings; its example is replaced unless the new one is empty.
func (c Catalogue) Union(other Catalogue) {
	for id, e := range other {
		cur, ok := c[id]
		if !ok {
			c[id] = e
			continue
		}
		if !e.Example.IsEmpty() || cur.Example.IsNull() {
			cur.Example = e.Example
		}
		c[id] = cur
	}
}
