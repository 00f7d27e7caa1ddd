package fieldconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(path string) *Repository {
	r := NewRepository(path, logging.Nop())
	r.interval = time.Millisecond
	return r
}

func sample() fields.Catalogue {
	return fields.Catalogue{
		"cf.50359307": {ID: "cf.50359307", Type: fields.TypeCF, Label: "Online Angebote", Example: fields.ListExample([]string{"Yoga", "Pilates"}), Area: fields.AreaAbove, Show: true},
		"contact.zip": {ID: "contact.zip", Type: fields.TypeContact, Example: fields.TextExample("10115"), Area: fields.AreaUnused},
		"member.note": {ID: "member.note", Type: fields.TypeMember, Label: "Größe <cm>", Area: fields.AreaBelow, Ignored: true},
	}
}

func TestRepository_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "field-config.json")
	r := newTestRepository(path)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, sample()))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(sample(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.NoFileExists(t, filex.LockPath(path))
}

func TestRepository_SaveIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field-config.json")
	require.NoError(t, newTestRepository(path).Save(context.Background(), sample()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "\n    \"cf.50359307\": {")
	assert.Contains(t, text, `"label": "Größe <cm>"`, "UTF-8 and markup are written as is")
	assert.Less(t, strings.Index(text, "cf.50359307"), strings.Index(text, "member.note"), "keys are sorted")
	assert.Contains(t, text, `"label": null`)
}

func TestRepository_LoadMissing(t *testing.T) {
	r := newTestRepository(filepath.Join(t.TempDir(), "none.json"))
	_, err := r.Load(context.Background())
	require.ErrorIs(t, err, common.ErrConfigNotFound)
}

func TestRepository_LoadMalformed(t *testing.T) {
	tests := map[string]string{
		"truncated": `{"cf.1": {"label": "x"`,
		"array":     `[{"id":"cf.1"}]`,
		"empty":     ``,
		"bad entry": `{"cf.1": "label"}`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "field-config.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o640))

			_, err := newTestRepository(path).Load(context.Background())
			require.ErrorIs(t, err, common.ErrConfigParse)
		})
	}
}

func TestRepository_LoadEmptyObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field-config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o640))

	got, err := newTestRepository(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_SaveWaitsForLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field-config.json")
	release, err := filex.AcquireLock(path)
	require.NoError(t, err)

	r := NewRepository(path, logging.Nop())
	r.interval = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- r.Save(context.Background(), sample()) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, release())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save did not finish after the lock was released")
	}
	assert.FileExists(t, path)
}

func TestRepository_SaveGivesUp(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o640))

	r := newTestRepository(filepath.Join(blocker, "field-config.json"))
	err := r.Save(context.Background(), sample())

	require.ErrorIs(t, err, common.ErrConfigWriteFailed)
	assert.Contains(t, err.Error(), "after 5 attempts")
}

func TestRepository_SaveHeldLockExhaustsRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field-config.json")
	release, err := filex.AcquireLock(path)
	require.NoError(t, err)
	defer func() { _ = release() }()

	err = newTestRepository(path).Save(context.Background(), sample())
	require.ErrorIs(t, err, common.ErrConfigWriteFailed)
	assert.NoFileExists(t, path)
}

func TestRepository_SaveCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field-config.json")
	release, err := filex.AcquireLock(path)
	require.NoError(t, err)
	defer func() { _ = release() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = newTestRepository(path).Save(ctx, sample())
	require.ErrorIs(t, err, common.ErrConfigWriteFailed)
}

func TestEncode_Nil(t *testing.T) {
	out, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(out))
}

func TestRepository_Quarantine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "field-config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o640))

	r := newTestRepository(path)
	dst, err := r.Quarantine(context.Background(), time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, path+".corrupt-20240307T120000Z", dst)
	assert.NoFileExists(t, path)
	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `{broken`, string(raw))

	_, err = r.Quarantine(context.Background(), time.Now())
	require.Error(t, err)
}
