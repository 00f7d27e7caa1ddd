package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"github.com/dmitrijs2005/fieldsync/internal/ratelimit"
	"github.com/dmitrijs2005/fieldsync/internal/store"
)

// OptionsEndpoint is the rate limiter endpoint for select option lookups.
const OptionsEndpoint = "custom-field-options"

const optionCachePrefix = "optlabels:"

// LabelResolver turns the selected options of a custom field into labels.
type LabelResolver interface {
	ResolveOptionLabels(ctx context.Context, fieldID int, options []apiclient.OptionRef, token string) ([]string, error)
}

// ResolverConfig tunes an OptionResolver.
type ResolverConfig struct {
	ActorKey    string
	MaxRequests int
	Window      time.Duration
	CacheTTL    time.Duration
}

// OptionResolver resolves option references through a per-field label cache,
// fetching the option list of a field at most once per run.
type OptionResolver struct {
	client  apiclient.Client
	cache   store.Store
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	log     logging.Logger
	cfg     ResolverConfig

	mu      sync.Mutex
	fetched map[int]lookup
}

type lookup struct {
	labels map[string]string
	err    error
}

func NewOptionResolver(client apiclient.Client, cache store.Store, limiter *ratelimit.Limiter, m *metrics.Metrics, log logging.Logger, cfg ResolverConfig) *OptionResolver {
	return &OptionResolver{
		client:  client,
		cache:   cache,
		limiter: limiter,
		metrics: m,
		log:     log,
		cfg:     cfg,
		fetched: map[int]lookup{},
	}
}

// OptionCacheKey returns the cache key holding the labels of a field.
func OptionCacheKey(fieldID int) string {
	return optionCachePrefix + strconv.Itoa(fieldID)
}

// ResolveOptionLabels returns one label per option. It fails with
// common.ErrOptionLookupFailed when the labels cannot be fetched and with
// common.ErrResolutionAmbiguous when every label is numeric; callers fall
// back to the option ids in both cases.
func (r *OptionResolver) ResolveOptionLabels(ctx context.Context, fieldID int, options []apiclient.OptionRef, token string) ([]string, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: no options", common.ErrOptionLookupFailed)
	}

	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID()
	}

	labels := r.cached(ctx, fieldID)
	if covers(labels, ids) {
		r.metrics.OptionLookup(metrics.LookupHit)
		r.log.Debug(ctx, "option labels from cache", "field_id", fieldID)
	} else {
		r.metrics.OptionLookup(metrics.LookupMiss)
		fetched, err := r.fetch(ctx, fieldID, token)
		if err != nil {
			r.metrics.OptionLookup(metrics.LookupFail)
			return nil, err
		}
		if labels == nil {
			labels = map[string]string{}
		}
		for id, l := range fetched {
			labels[id] = l
		}
	}

	out := make([]string, len(ids))
	numeric := true
	for i, id := range ids {
		l, ok := labels[id]
		if !ok || l == "" {
			l = id
		}
		out[i] = l
		if !isNumeric(l) {
			numeric = false
		}
	}
	if numeric {
		return nil, fmt.Errorf("%w: field %d", common.ErrResolutionAmbiguous, fieldID)
	}
	return out, nil
}

func covers(labels map[string]string, ids []string) bool {
	if labels == nil {
		return false
	}
	for _, id := range ids {
		if _, ok := labels[id]; !ok {
			return false
		}
	}
	return true
}

func (r *OptionResolver) cached(ctx context.Context, fieldID int) map[string]string {
	raw, err := r.cache.Get(ctx, OptionCacheKey(fieldID))
	if err != nil {
		r.log.Warn(ctx, "option cache unreadable", "field_id", fieldID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var labels map[string]string
	if err := json.Unmarshal(raw, &labels); err != nil {
		r.log.Warn(ctx, "option cache entry corrupt", "field_id", fieldID, "error", err)
		return nil
	}
	return labels
}

// fetch performs the single remote lookup for a field and fills the cache.
// The outcome is remembered, so a failing field is not retried for every
// member in the same run.
func (r *OptionResolver) fetch(ctx context.Context, fieldID int, token string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, done := r.fetched[fieldID]; done {
		return prev.labels, prev.err
	}

	if r.limiter != nil && !r.limiter.Allow(ctx, OptionsEndpoint, r.cfg.ActorKey, r.cfg.MaxRequests, r.cfg.Window) {
		r.metrics.Denied(OptionsEndpoint)
		r.log.Warn(ctx, "option lookup rate limited", "field_id", fieldID)
		// not remembered: a later member may find the window reopened
		return nil, fmt.Errorf("%w: %w", common.ErrOptionLookupFailed, common.ErrRateLimitExceeded)
	}

	labels, err := apiclient.FetchSelectOptions(ctx, r.client, fieldID, token)
	r.fetched[fieldID] = lookup{labels: labels, err: err}
	if err != nil {
		r.log.Warn(ctx, "option lookup failed", "field_id", fieldID, "error", err)
		return nil, err
	}

	raw, err := json.Marshal(labels)
	if err == nil {
		err = r.cache.Set(ctx, OptionCacheKey(fieldID), raw, r.cfg.CacheTTL)
	}
	if err != nil {
		r.log.Warn(ctx, "option cache write failed", "field_id", fieldID, "error", err)
	}
	return labels, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
