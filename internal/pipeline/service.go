// Package pipeline runs one sync: fetch members, extract their fields, merge
// with the persisted configuration, write it back and analyze the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/backup"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/fieldconfig"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
	"github.com/dmitrijs2005/fieldsync/internal/intelligence"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"github.com/google/uuid"
)

// TokenSource yields the decrypted API token.
type TokenSource interface {
	Load(ctx context.Context) (string, error)
}

// ConfigStore persists the field catalogue.
type ConfigStore interface {
	Load(ctx context.Context) (fields.Catalogue, error)
	Save(ctx context.Context, c fields.Catalogue) error
	Quarantine(ctx context.Context, now time.Time) (string, error)
}

// MemberExtractor turns one member into catalogue entries.
type MemberExtractor interface {
	ExtractMember(ctx context.Context, m apiclient.Member, token string) fields.Catalogue
}

type Options struct {
	PageSize       int
	MaxPages       int
	TemplatePath   string
	PushgatewayURL string
}

// Service runs syncs and the read-only views of the catalogue. Backup and
// metrics are optional.
type Service struct {
	tokens    TokenSource
	client    apiclient.Client
	extractor MemberExtractor
	repo      ConfigStore
	analyzer  *intelligence.Analyzer
	backup    backup.Uploader
	metrics   *metrics.Metrics
	log       logging.Logger
	opts      Options
	now       func() time.Time
}

func NewService(
	tokens TokenSource,
	client apiclient.Client,
	extractor MemberExtractor,
	repo ConfigStore,
	analyzer *intelligence.Analyzer,
	uploader backup.Uploader,
	m *metrics.Metrics,
	log logging.Logger,
	opts Options,
) *Service {
	return &Service{
		tokens:    tokens,
		client:    client,
		extractor: extractor,
		repo:      repo,
		analyzer:  analyzer,
		backup:    uploader,
		metrics:   m,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// Result summarises a sync.
type Result struct {
	RunID      string               `json:"run_id"`
	Members    int                  `json:"members"`
	Discovered int                  `json:"discovered"`
	Added      []string             `json:"added"`
	Total      int                  `json:"total"`
	Warnings   []string             `json:"warnings,omitempty"`
	BackupKey  string               `json:"backup_key,omitempty"`
	Report     *intelligence.Report `json:"report"`
}

// Sync fetches members and updates the field configuration. Only a token
// that cannot be loaded and a configuration that cannot be written fail the
// sync; everything else degrades and is reported in Result.Warnings.
func (s *Service) Sync(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Added: []string{}}
	log := s.log.With("run_id", res.RunID)
	log.Info(ctx, "sync started")

	err := s.sync(ctx, log, res)
	s.metrics.SyncFinished(err == nil)
	if perr := s.metrics.Push(ctx, s.opts.PushgatewayURL, "fieldsync"); perr != nil {
		log.Warn(ctx, "metrics push failed", "error", perr)
	}
	if err != nil {
		log.Error(ctx, "sync failed", "error", err)
		return nil, err
	}

	log.Info(ctx, "sync finished", "members", res.Members, "discovered", res.Discovered, "added", len(res.Added), "total", res.Total)
	return res, nil
}

func (s *Service) sync(ctx context.Context, log logging.Logger, res *Result) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load api token: %w", err)
	}

	members, err := apiclient.ListMembers(ctx, s.client, token, s.opts.PageSize, s.opts.MaxPages)
	if err != nil {
		log.Warn(ctx, "member listing incomplete", "fetched", len(members), "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("member listing incomplete: %v", err))
	}
	res.Members = len(members)

	discovered := fields.Catalogue{}
	for _, m := range members {
		discovered.Union(s.extractor.ExtractMember(ctx, m, token))
	}
	res.Discovered = len(discovered)
	s.metrics.Discovered(countByType(discovered))

	persisted, template, err := s.loadExisting(ctx, log, res)
	if err != nil {
		return err
	}

	merged := fields.Merge(discovered, persisted, template)
	for _, id := range merged.IDs() {
		if _, ok := persisted[id]; !ok {
			res.Added = append(res.Added, id)
		}
	}
	res.Total = len(merged)

	if err := s.repo.Save(ctx, merged); err != nil {
		return fmt.Errorf("save field configuration: %w", err)
	}

	if s.backup != nil {
		res.BackupKey = s.snapshot(ctx, log, merged)
	}

	res.Report = s.analyzer.Analyze(merged)
	return nil
}

// loadExisting returns the persisted configuration and, while that is
// absent or empty, the template. An unreadable configuration is moved aside
// and treated as empty without consulting the template.
func (s *Service) loadExisting(ctx context.Context, log logging.Logger, res *Result) (fields.Catalogue, fields.Catalogue, error) {
	persisted, err := s.repo.Load(ctx)
	switch {
	case err == nil && len(persisted) > 0:
		return persisted, nil, nil

	case err == nil, errors.Is(err, common.ErrConfigNotFound):
		return persisted, s.template(ctx, log, res), nil

	case errors.Is(err, common.ErrConfigParse):
		log.Error(ctx, "field configuration unreadable, treating as empty", "error", err)
		msg := fmt.Sprintf("field configuration unreadable: %v", err)
		if dst, qerr := s.repo.Quarantine(ctx, s.now()); qerr == nil {
			msg += "; previous file kept at " + dst
		} else {
			return nil, nil, fmt.Errorf("keep unreadable field configuration: %w", qerr)
		}
		res.Warnings = append(res.Warnings, msg)
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("load field configuration: %w", err)
}

func (s *Service) template(ctx context.Context, log logging.Logger, res *Result) fields.Catalogue {
	template, err := fieldconfig.LoadTemplate(s.opts.TemplatePath)
	if err != nil {
		log.Warn(ctx, "template unusable, starting empty", "path", s.opts.TemplatePath, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("template ignored: %v", err))
		return nil
	}
	return template
}

func (s *Service) snapshot(ctx context.Context, log logging.Logger, c fields.Catalogue) string {
	data, err := fieldconfig.Encode(c)
	if err == nil {
		var key string
		if key, err = s.backup.Upload(ctx, data); err == nil {
			log.Info(ctx, "field configuration backed up", "key", key)
			return key
		}
	}
	log.Warn(ctx, "field configuration backup failed", "error", err)
	return ""
}

func countByType(c fields.Catalogue) map[string]int {
	counts := map[string]int{}
	for _, t := range fields.Types {
		counts[string(t)] = 0
	}
	for _, e := range c {
		counts[string(e.Type)]++
	}
	return counts
}

// persisted returns the stored catalogue, empty when there is none yet.
func (s *Service) persisted(ctx context.Context) (fields.Catalogue, error) {
	c, err := s.repo.Load(ctx)
	if errors.Is(err, common.ErrConfigNotFound) {
		return fields.Catalogue{}, nil
	}
	return c, err
}

// Report analyzes the persisted configuration without contacting the API.
func (s *Service) Report(ctx context.Context) (*intelligence.Report, error) {
	c, err := s.persisted(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(c), nil
}

// Labels returns the persisted configuration with the display label of
// every field.
func (s *Service) Labels(ctx context.Context) (fields.Catalogue, map[string]string, error) {
	c, err := s.persisted(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, fields.DisplayLabels(c), nil
}

// CheckToken loads the token and asks the API for one member. It returns the
// HTTP status of that request.
func (s *Service) CheckToken(ctx context.Context) (int, error) {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		return 0, err
	}
	status, _, err := s.client.Get(ctx, apiclient.MemberPath, url.Values{"limit": {"1"}}, token)
	if err != nil {
		return 0, err
	}
	return status, nil
}
