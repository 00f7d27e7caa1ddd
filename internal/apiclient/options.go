package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

const maxOptionPages = 10

// SelectOptionsPath returns the path listing the options of a select field.
func SelectOptionsPath(fieldID int) string {
	return fmt.Sprintf("custom-field/%d/select-options", fieldID)
}

type selectOption struct {
	ID    json.RawMessage `json:"id"`
	Value string          `json:"value"`
	Label string          `json:"label"`
	Name  string          `json:"name"`
}

func (o selectOption) text() string {
	for _, s := range []string{o.Value, o.Label, o.Name} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// FetchSelectOptions returns option id → label for a select custom field.
// Any failure is reported as common.ErrOptionLookupFailed.
func FetchSelectOptions(ctx context.Context, c Client, fieldID int, token string) (map[string]string, error) {
	labels := map[string]string{}

	path := SelectOptionsPath(fieldID)
	query := url.Values{"limit": {"100"}}

	for n := 0; n < maxOptionPages && path != ""; n++ {
		status, body, err := c.Get(ctx, path, query, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrOptionLookupFailed, err)
		}
		if !IsSuccess(status) {
			return nil, fmt.Errorf("%w: status %d", common.ErrOptionLookupFailed, status)
		}

		p, err := decodePage(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrOptionLookupFailed, err)
		}
		for _, item := range p.Results {
			var opt selectOption
			if err := json.Unmarshal(item, &opt); err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrOptionLookupFailed, err)
			}
			id, err := scalarString(opt.ID)
			if err != nil {
				continue
			}
			if text := opt.text(); text != "" {
				labels[OptionRef(id).ID()] = text
			}
		}

		path, query = "", nil
		if p.Next != nil {
			path = *p.Next
		}
	}
	return labels, nil
}
