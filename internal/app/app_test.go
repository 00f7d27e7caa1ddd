package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/config"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = apiURL
	cfg.StoreDSN = "sqlite://" + filepath.Join(dir, "fs.db")
	cfg.FieldConfigPath = filepath.Join(dir, "field-config.json")
	cfg.TemplatePath = ""
	return cfg
}

func TestNew_UnknownLogFormat(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.LogFormat = "xml"

	_, err := New(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
}

func TestNew_BadStoreDSN(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.StoreDSN = "ftp://nowhere"

	_, err := New(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store init error")
}

func TestNew_SyncEndToEnd(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1,"emailOrUserName":"a@example.org","contactDetails":{"zip":"12345"}}],"next":null}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	a, err := New(ctx, testConfig(t, srv.URL), &bytes.Buffer{})
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.NoError(t, a.Tokens.Save(ctx, "secret-token"))

	res, err := a.Service.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Members)
	assert.Equal(t, "Bearer secret-token", gotToken)

	c, _, err := a.Service.Labels(ctx)
	require.NoError(t, err)
	assert.Contains(t, c, "member.emailOrUserName")
	assert.Equal(t, "12345", c["contact.zip"].Example.String())
}
