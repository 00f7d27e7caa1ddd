package fields

import (
	"context"
	"net/url"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

func strPtr(s string) *string { return &s }

// fakeAPI serves select options per field id and counts requests.
type fakeAPI struct {
	options map[string]string // path -> body
	status  int
	calls   int
}

func (f *fakeAPI) Get(_ context.Context, path string, _ url.Values, _ string) (int, []byte, error) {
	f.calls++
	if f.status != 0 {
		return f.status, nil, nil
	}
	body, ok := f.options[path]
	if !ok {
		return 0, nil, common.ErrUnavailable
	}
	return 200, []byte(body), nil
}

// stubResolver answers from a table keyed by field id.
type stubResolver struct {
	labels map[int][]string
	calls  int
}

func (s *stubResolver) ResolveOptionLabels(_ context.Context, fieldID int, _ []apiclient.OptionRef, _ string) ([]string, error) {
	s.calls++
	l, ok := s.labels[fieldID]
	if !ok {
		return nil, common.ErrOptionLookupFailed
	}
	return l, nil
}
