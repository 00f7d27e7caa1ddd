package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// OptionRef points at a select option: either a bare numeric id or a URL
// whose last path segment is the id.
type OptionRef string

func (o *OptionRef) UnmarshalJSON(b []byte) error {
	s, err := scalarString(b)
	if err != nil {
		// {"id": 7, ...}
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if jerr := json.Unmarshal(b, &obj); jerr != nil || obj.ID == nil {
			return fmt.Errorf("option reference: %w", err)
		}
		if s, err = scalarString(obj.ID); err != nil {
			return fmt.Errorf("option reference id: %w", err)
		}
	}
	*o = OptionRef(s)
	return nil
}

// IsURL reports whether the reference is URL-like.
func (o OptionRef) IsURL() bool {
	return strings.Contains(string(o), "://") || strings.HasPrefix(string(o), "/")
}

// ID returns the option id: the reference itself, or the last non-empty path
// segment of a URL reference.
func (o OptionRef) ID() string {
	s := strings.TrimSpace(string(o))
	if !o.IsURL() {
		return s
	}
	if u, err := url.Parse(s); err == nil {
		s = u.Path
	}
	parts := strings.Split(strings.Trim(s, "/"), "/")
	return parts[len(parts)-1]
}

// NumericID returns the id as an integer when it is one.
func (o OptionRef) NumericID() (int64, bool) {
	n, err := strconv.ParseInt(o.ID(), 10, 64)
	return n, err == nil
}

// RawCustomField is one custom field value of a member as delivered by the API.
type RawCustomField struct {
	CustomFieldID   int
	Value           *string
	SelectedOptions []OptionRef
}

type rawCustomFieldJSON struct {
	CustomField     json.RawMessage `json:"customField"`
	CustomFieldID   json.RawMessage `json:"customFieldId"`
	Value           json.RawMessage `json:"value"`
	SelectedOptions []OptionRef     `json:"selectedOptions"`
}

func (f *RawCustomField) UnmarshalJSON(b []byte) error {
	var raw rawCustomFieldJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	ref := raw.CustomField
	if len(ref) == 0 || string(ref) == "null" {
		ref = raw.CustomFieldID
	}
	id, err := refID(ref)
	if err != nil {
		return fmt.Errorf("custom field id: %w", err)
	}

	f.CustomFieldID = id
	f.Value = nil
	if len(raw.Value) > 0 && string(raw.Value) != "null" {
		s, err := scalarString(raw.Value)
		if err != nil {
			s = string(raw.Value)
		}
		f.Value = &s
	}
	f.SelectedOptions = raw.SelectedOptions
	return nil
}

// refID accepts 123, "123", "https://host/api/custom-field/123" or {"id": 123}.
func refID(b json.RawMessage) (int, error) {
	s, err := scalarString(b)
	if err != nil {
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if jerr := json.Unmarshal(b, &obj); jerr != nil || obj.ID == nil {
			return 0, err
		}
		return refID(obj.ID)
	}
	id, err := strconv.Atoi(OptionRef(s).ID())
	if err != nil {
		return 0, fmt.Errorf("not a numeric id: %q", s)
	}
	return id, nil
}

// scalarString renders a JSON string, number or bool as a string.
func scalarString(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch b[0] {
	case '"':
		var s string
		err := json.Unmarshal(b, &s)
		return s, err
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return "", err
		}
		return strconv.FormatBool(v), nil
	case '{', '[', 'n':
		return "", fmt.Errorf("not a scalar: %s", string(b))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// Member is a member record reduced to what field discovery needs: scalar
// attributes of the member and of its contact details, and both custom field
// lists.
type Member struct {
	ID                  int
	Attributes          map[string]string
	Contact             map[string]string
	CustomFields        []RawCustomField
	ContactCustomFields []RawCustomField
}

func (m *Member) UnmarshalJSON(b []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return err
	}

	*m = Member{Attributes: map[string]string{}, Contact: map[string]string{}}

	for key, v := range top {
		switch key {
		case "contactDetails":
			if err := m.decodeContact(v); err != nil {
				return fmt.Errorf("contactDetails: %w", err)
			}
		case "customFields":
			if err := decodeCustomFields(v, &m.CustomFields); err != nil {
				return fmt.Errorf("customFields: %w", err)
			}
		default:
			s, err := scalarString(v)
			if err != nil {
				continue
			}
			if key == "id" {
				m.ID, _ = strconv.Atoi(s)
			}
			m.Attributes[key] = s
		}
	}
	return nil
}

func (m *Member) decodeContact(b json.RawMessage) error {
	if string(b) == "null" {
		return nil
	}
	var contact map[string]json.RawMessage
	if err := json.Unmarshal(b, &contact); err != nil {
		// a URL reference to the contact, nothing to discover
		return nil
	}
	for key, v := range contact {
		if key == "customFields" {
			if err := decodeCustomFields(v, &m.ContactCustomFields); err != nil {
				return err
			}
			continue
		}
		if s, err := scalarString(v); err == nil {
			m.Contact[key] = s
		}
	}
	return nil
}

// decodeCustomFields skips entries that cannot be validated instead of
// rejecting the whole member.
func decodeCustomFields(b json.RawMessage, dst *[]RawCustomField) error {
	if string(b) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	for _, item := range items {
		var f RawCustomField
		if err := json.Unmarshal(item, &f); err != nil {
			continue
		}
		*dst = append(*dst, f)
	}
	return nil
}

// AttributeKeys returns the member attribute names in sorted order.
func (m Member) AttributeKeys() []string {
	return sortedKeys(m.Attributes)
}

// ContactKeys returns the contact attribute names in sorted order.
func (m Member) ContactKeys() []string {
	return sortedKeys(m.Contact)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type page struct {
	Results []json.RawMessage `json:"results"`
	Next    *string           `json:"next"`
}

// decodePage accepts a paginated envelope or a bare array.
func decodePage(body []byte) (page, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return page{}, err
		}
		return page{Results: items}, nil
	}
	var p page
	err := json.Unmarshal(body, &p)
	return p, err
}

// MemberPath is the API collection of members.
const MemberPath = "member"

// ListMembers fetches up to maxPages pages of members. A non-2xx response
// ends the listing with what was fetched so far; a transport failure is
// returned as an error.
func ListMembers(ctx context.Context, c Client, token string, pageSize, maxPages int) ([]Member, error) {
	var members []Member

	path := MemberPath
	query := url.Values{"limit": {strconv.Itoa(pageSize)}}

	for n := 0; n < maxPages && path != ""; n++ {
		status, body, err := c.Get(ctx, path, query, token)
		if err != nil {
			return members, err
		}
		if !IsSuccess(status) {
			return members, nil
		}

		p, err := decodePage(body)
		if err != nil {
			return members, nil
		}
		for _, item := range p.Results {
			var m Member
			if err := json.Unmarshal(item, &m); err != nil {
				continue
			}
			members = append(members, m)
		}

		path, query = "", nil
		if p.Next != nil {
			path = *p.Next
		}
	}
	return members, nil
}
