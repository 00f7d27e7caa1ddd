package backup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	method string
	path   string
	body   string
}

func newS3Server(t *testing.T, status int) (*httptest.Server, func() []recordedPut) {
	t.Helper()
	var mu sync.Mutex
	var puts []recordedPut

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{method: r.Method, path: r.URL.Path, body: string(b)})
		mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedPut {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedPut{}, puts...)
	}
}

func TestSnapshotKey(t *testing.T) {
	ts := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	key := SnapshotKey(ts)

	assert.Regexp(t, regexp.MustCompile(`^fieldconfig/2024/03/07/[0-9a-f-]{36}\.json$`), key)
	assert.NotEqual(t, key, SnapshotKey(ts), "keys are unique")
}

func TestS3Uploader_Upload(t *testing.T) {
	srv, puts := newS3Server(t, http.StatusOK)

	u, err := NewS3Uploader(context.Background(), Config{
		Bucket:       "backups",
		Region:       "us-east-1",
		BaseEndpoint: srv.URL,
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
	})
	require.NoError(t, err)
	u.now = func() time.Time { return time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC) }

	key, err := u.Upload(context.Background(), []byte(`{"cf.1":{}}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "fieldconfig/2024/03/07/"))

	got := puts()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/backups/"+key, got[0].path)
	assert.Contains(t, got[0].body, `{"cf.1":{}}`)
}

func TestS3Uploader_UploadError(t *testing.T) {
	srv, _ := newS3Server(t, http.StatusForbidden)

	u, err := NewS3Uploader(context.Background(), Config{
		Bucket:       "backups",
		Region:       "us-east-1",
		BaseEndpoint: srv.URL,
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
	})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://backups/fieldconfig/")
}

func TestNewS3Uploader_ConfigError(t *testing.T) {
	old := loadAWSConfig
	t.Cleanup(func() { loadAWSConfig = old })
	loadAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := NewS3Uploader(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Bucket: "b"}.Enabled())
}
