// Package fieldconfig reads and writes the persisted field configuration
// and loads the bootstrap template.
package fieldconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

const (
	writeAttempts   = 5
	initialInterval = 50 * time.Millisecond
	maxInterval     = time.Second
)

// Repository stores the catalogue as a pretty-printed JSON object at path.
type Repository struct {
	path     string
	log      logging.Logger
	interval time.Duration
}

func NewRepository(path string, log logging.Logger) *Repository {
	return &Repository{path: path, log: log, interval: initialInterval}
}

func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted configuration. It returns common.ErrConfigNotFound
// when there is none and wraps common.ErrConfigParse when the file is not a
// JSON object of entries.
func (r *Repository) Load(ctx context.Context) (fields.Catalogue, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var c fields.Catalogue
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrConfigParse, r.path, err)
	}
	return c, nil
}

// Encode renders c the way Save writes it: indented, keys sorted, non-ASCII
// kept as is.
func Encode(c fields.Catalogue) ([]byte, error) {
	if c == nil {
		c = fields.Catalogue{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes c under the lock file, replacing the configuration atomically.
// Lock contention and I/O errors are retried with exponential backoff; once
// the attempts are exhausted the error wraps common.ErrConfigWriteFailed.
func (r *Repository) Save(ctx context.Context, c fields.Catalogue) error {
	data, err := Encode(c)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", common.ErrConfigWriteFailed, err)
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := filex.EnsureDir(filepath.Dir(r.path)); err != nil {
			return err
		}
		release, err := filex.AcquireLock(r.path)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(); err != nil {
				r.log.Warn(ctx, "lock not released", "path", filex.LockPath(r.path), "error", err)
			}
		}()
		return filex.WriteAtomic(r.path, data, 0o640)
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn(ctx, "field configuration write failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, r.backOff(ctx), notify); err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", common.ErrConfigWriteFailed, r.path, attempt, err)
	}
	r.log.Debug(ctx, "field configuration written", "path", r.path, "fields", len(c))
	return nil
}

func (r *Repository) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, writeAttempts-1), ctx)
}

// Quarantine moves an unreadable configuration aside so the next Save does
// not overwrite it, and returns the new path.
func (r *Repository) Quarantine(ctx context.Context, now time.Time) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%s", r.path, now.UTC().Format("20060102T150405Z"))
	if err := os.Rename(r.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", r.path, err)
	}
	r.log.Warn(ctx, "unreadable field configuration moved aside", "path", r.path, "moved_to", dst)
	return dst, nil
}
