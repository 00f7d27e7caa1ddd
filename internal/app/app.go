// Package app wires the fieldsync components from a Config.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/backup"
	"github.com/dmitrijs2005/fieldsync/internal/config"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
	"github.com/dmitrijs2005/fieldsync/internal/fieldconfig"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
	"github.com/dmitrijs2005/fieldsync/internal/intelligence"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"github.com/dmitrijs2005/fieldsync/internal/pipeline"
	"github.com/dmitrijs2005/fieldsync/internal/ratelimit"
	"github.com/dmitrijs2005/fieldsync/internal/store"
)

type App struct {
	Config  *config.Config
	Logger  logging.Logger
	Tokens  *cryptox.TokenStore
	Service *pipeline.Service

	store store.Backend
}

// New opens the store and builds the pipeline. Logs go to logOut. The caller
// must Close the App.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(cfg.LogFormat, logOut, cfg.Debug)
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	vault := cryptox.NewVault([]byte(cfg.CipherSecret), []byte(cfg.MACSecret)).WithLogger(logger)
	tokens := cryptox.NewTokenStore(vault, kv)

	m := metrics.New()
	client := apiclient.NewHTTPClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	resolver := fields.NewOptionResolver(client, kv, ratelimit.New(kv, logger), m, logger, fields.ResolverConfig{
		ActorKey:    cfg.ActorKey,
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		CacheTTL:    cfg.OptionCacheTTL,
	})
	extractor := fields.NewExtractor(resolver, cfg.ConsentFieldID, logger)
	repo := fieldconfig.NewRepository(cfg.FieldConfigPath, logger)

	var uploader backup.Uploader
	bc := backup.Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	}
	if bc.Enabled() {
		u, err := backup.NewS3Uploader(ctx, bc)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("backup init error: %w", err)
		}
		uploader = u
	}

	svc := pipeline.NewService(tokens, client, extractor, repo, intelligence.NewAnalyzer(nil), uploader, m, logger, pipeline.Options{
		PageSize:       cfg.MemberPageSize,
		MaxPages:       cfg.MaxPages,
		TemplatePath:   cfg.TemplatePath,
		PushgatewayURL: cfg.PushgatewayURL,
	})

	return &App{Config: cfg, Logger: logger, Tokens: tokens, Service: svc, store: kv}, nil
}

// Close flushes the logger and releases the store.
func (a *App) Close() error {
	if s, ok := a.Logger.(interface{ Sync() error }); ok {
		// stderr sync fails on some platforms; nothing to recover
		_ = s.Sync()
	}
	return a.store.Close()
}
