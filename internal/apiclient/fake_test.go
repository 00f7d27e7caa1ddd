package apiclient

import (
	"context"
	"net/url"
)

type fakeResponse struct {
	status int
	body   string
	err    error
}

// fakeClient answers by path and records every request.
type fakeClient struct {
	responses map[string]fakeResponse
	requests  []string
}

func (f *fakeClient) Get(_ context.Context, path string, query url.Values, _ string) (int, []byte, error) {
	f.requests = append(f.requests, path)
	r, ok := f.responses[path]
	if !ok {
		return 404, nil, nil
	}
	return r.status, []byte(r.body), r.err
}
