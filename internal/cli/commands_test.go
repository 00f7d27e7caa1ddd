package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/fields"
)

const membersPage = `{
  "results": [
    {"id": 1, "emailOrUserName": "anna@example.org",
     "contactDetails": {"zip": "10115", "city": "Berlin"},
     "customFields": [{"customField": 7, "value": "2020-01-01"}]}
  ],
  "next": null
}`

type env struct {
	dir    string
	api    *httptest.Server
	status atomic.Int32
	args   []string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{dir: t.TempDir()}
	e.status.Store(http.StatusOK)
	e.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(int(e.status.Load()))
		_, _ = w.Write([]byte(membersPage))
	}))
	t.Cleanup(e.api.Close)

	e.args = []string{
		"-a", e.api.URL,
		"-d", "sqlite://" + filepath.Join(e.dir, "fs.db"),
		"-f", filepath.Join(e.dir, "field-config.json"),
		"-t=",
	}
	return e
}

func (e *env) run(t *testing.T, stdin string, cmd ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	streams := IO{In: strings.NewReader(stdin), Out: &out, Err: &errOut}
	err := Execute(context.Background(), append(cmd, e.args...), streams)
	return out.String(), errOut.String(), err
}

func TestTokenSetAndCheck(t *testing.T) {
	e := newEnv(t)

	out, _, err := e.run(t, "tok-1\n", "token", "set")
	require.NoError(t, err)
	assert.Equal(t, "token stored\n", out)

	out, _, err = e.run(t, "", "token", "check")
	require.NoError(t, err)
	assert.Equal(t, "token ok (HTTP 200)\n", out)
}

func TestTokenCheck_Rejected(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "wrong\n", "token", "set")
	require.NoError(t, err)

	_, _, err = e.run(t, "", "token", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestTokenCheck_NoToken(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "token", "check")
	require.Error(t, err)
}

func TestSyncThenLabelsAndReport(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(t, "tok-1\n", "token", "set")
	require.NoError(t, err)

	out, logs, err := e.run(t, "", "sync")
	require.NoError(t, err)
	assert.Contains(t, logs, "sync finished")

	var res struct {
		Members int      `json:"members"`
		Added   []string `json:"added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Members)
	assert.Contains(t, res.Added, "contact.zip")
	assert.Contains(t, res.Added, "cf.7")

	_, err = os.Stat(filepath.Join(e.dir, "field-config.json"))
	require.NoError(t, err)

	out, _, err = e.run(t, "", "labels")
	require.NoError(t, err)
	assert.Contains(t, out, "contact.zip")
	assert.Contains(t, out, "PLZ")
	assert.Contains(t, out, "generated")

	out, _, err = e.run(t, "", "report")
	require.NoError(t, err)
	var rep map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Contains(t, rep, "stats")
}

func TestSync_WithoutToken(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "sync")
	require.Error(t, err)
}

func TestBadFlag(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "report", "-l", "notanumber")
	require.Error(t, err)
}

func TestRenderLabels(t *testing.T) {
	c := fields.Catalogue{
		"member.firstName": {Type: fields.TypeMember, Area: fields.AreaAbove, Label: "Vorname"},
		"cf.7":             {Type: fields.TypeCF, Area: fields.AreaUnused},
	}
	var buf bytes.Buffer
	require.NoError(t, renderLabels(&buf, c, map[string]string{
		"member.firstName": "Vorname",
		"cf.7":             "Custom Field: Field 7",
	}))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	header := strings.ToUpper(strings.Join(lines[:3], "\n"))
	assert.Contains(t, header, "SOURCE", "header is rendered above the rows")
	assert.NotContains(t, header, "CF.7")
	assert.Contains(t, out, "configured")
	assert.Contains(t, out, "Custom Field: Field 7")
	assert.Less(t, strings.Index(out, "cf.7"), strings.Index(out, "member.firstName"))
}
