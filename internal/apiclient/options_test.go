package apiclient

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSelectOptions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "paginated",
			body: `{"results":[{"id":42,"value":"Yoga"},{"id":"43","label":"Pilates"}],"next":null}`,
			want: map[string]string{"42": "Yoga", "43": "Pilates"},
		},
		{
			name: "bare array with url ids",
			body: `[{"id":"https://host/api/option/7","name":"Gold"},{"id":8,"value":"  "}]`,
			want: map[string]string{"7": "Gold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClient{responses: map[string]fakeResponse{
				SelectOptionsPath(9): {status: 200, body: tt.body},
			}}
			got, err := FetchSelectOptions(context.Background(), c, 9, "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchSelectOptions_FollowsNext(t *testing.T) {
	next := "https://host/api/custom-field/9/select-options?page=2"
	c := &fakeClient{responses: map[string]fakeResponse{
		SelectOptionsPath(9): {status: 200, body: `{"results":[{"id":1,"value":"A"}],"next":"` + next + `"}`},
		next:                 {status: 200, body: `{"results":[{"id":2,"value":"B"}]}`},
	}}

	got, err := FetchSelectOptions(context.Background(), c, 9, "tok")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "A", "2": "B"}, got)
}

func TestFetchSelectOptions_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp fakeResponse
	}{
		{"transport", fakeResponse{err: common.ErrUnavailable}},
		{"status", fakeResponse{status: 500}},
		{"malformed", fakeResponse{status: 200, body: `{"results":`}},
		{"bad item", fakeResponse{status: 200, body: `{"results":["x"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClient{responses: map[string]fakeResponse{SelectOptionsPath(9): tt.resp}}
			_, err := FetchSelectOptions(context.Background(), c, 9, "tok")
			require.ErrorIs(t, err, common.ErrOptionLookupFailed)
		})
	}
}
