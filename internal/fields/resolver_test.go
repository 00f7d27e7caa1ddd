package fields

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"github.com/dmitrijs2005/fieldsync/internal/ratelimit"
	"github.com/dmitrijs2005/fieldsync/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testResolverConfig = ResolverConfig{ActorKey: "test", MaxRequests: 100, Window: time.Minute, CacheTTL: time.Hour}

func newTestResolver(api apiclient.Client, s store.Store, cfg ResolverConfig) (*OptionResolver, *metrics.Metrics) {
	m := metrics.New()
	lim := ratelimit.New(s, logging.Nop())
	return NewOptionResolver(api, s, lim, m, logging.Nop(), cfg), m
}

func TestResolveOptionLabels_FetchesOncePerField(t *testing.T) {
	api := &fakeAPI{options: map[string]string{
		apiclient.SelectOptionsPath(9): `{"results":[{"id":42,"value":"Yoga"},{"id":43,"value":"Pilates"}]}`,
	}}
	s := store.NewMemoryStore(nil)
	r, m := newTestResolver(api, s, testResolverConfig)
	ctx := context.Background()

	got, err := r.ResolveOptionLabels(ctx, 9, []apiclient.OptionRef{"https://api.example.com/option/42", "43"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"Yoga", "Pilates"}, got)

	got, err = r.ResolveOptionLabels(ctx, 9, []apiclient.OptionRef{"43"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pilates"}, got)

	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptionLookups.WithLabelValues(metrics.LookupMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptionLookups.WithLabelValues(metrics.LookupHit)))

	raw, err := s.Get(ctx, OptionCacheKey(9))
	require.NoError(t, err)
	var cached map[string]string
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, map[string]string{"42": "Yoga", "43": "Pilates"}, cached)
}

func TestResolveOptionLabels_UsesWarmCache(t *testing.T) {
	api := &fakeAPI{}
	s := store.NewMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, OptionCacheKey(5), []byte(`{"1":"Gold"}`), 0))

	r, _ := newTestResolver(api, s, testResolverConfig)
	got, err := r.ResolveOptionLabels(ctx, 5, []apiclient.OptionRef{"1"}, "tok")

	require.NoError(t, err)
	assert.Equal(t, []string{"Gold"}, got)
	assert.Zero(t, api.calls)
}

func TestResolveOptionLabels_CacheExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, OptionCacheKey(5), []byte(`{"1":"Gold"}`), time.Hour))

	now = now.Add(2 * time.Hour)
	api := &fakeAPI{options: map[string]string{apiclient.SelectOptionsPath(5): `[{"id":1,"value":"Platin"}]`}}
	r, _ := newTestResolver(api, s, testResolverConfig)

	got, err := r.ResolveOptionLabels(ctx, 5, []apiclient.OptionRef{"1"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"Platin"}, got)
	assert.Equal(t, 1, api.calls)
}

func TestResolveOptionLabels_LookupFailure(t *testing.T) {
	api := &fakeAPI{status: 500}
	r, m := newTestResolver(api, store.NewMemoryStore(nil), testResolverConfig)
	ctx := context.Background()

	_, err := r.ResolveOptionLabels(ctx, 9, []apiclient.OptionRef{"42"}, "tok")
	require.ErrorIs(t, err, common.ErrOptionLookupFailed)

	_, err = r.ResolveOptionLabels(ctx, 9, []apiclient.OptionRef{"42"}, "tok")
	require.ErrorIs(t, err, common.ErrOptionLookupFailed)

	assert.Equal(t, 1, api.calls, "a failed field is not fetched again in the same run")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OptionLookups.WithLabelValues(metrics.LookupFail)))
}

func TestResolveOptionLabels_AllNumericIsAmbiguous(t *testing.T) {
	api := &fakeAPI{options: map[string]string{
		apiclient.SelectOptionsPath(9): `[{"id":42,"value":"42"}]`,
	}}
	r, _ := newTestResolver(api, store.NewMemoryStore(nil), testResolverConfig)

	_, err := r.ResolveOptionLabels(context.Background(), 9, []apiclient.OptionRef{"42", "77"}, "tok")
	require.ErrorIs(t, err, common.ErrResolutionAmbiguous)
}

func TestResolveOptionLabels_PartialLabels(t *testing.T) {
	api := &fakeAPI{options: map[string]string{
		apiclient.SelectOptionsPath(9): `[{"id":42,"value":"Yoga"}]`,
	}}
	r, _ := newTestResolver(api, store.NewMemoryStore(nil), testResolverConfig)

	got, err := r.ResolveOptionLabels(context.Background(), 9, []apiclient.OptionRef{"42", "77"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"Yoga", "77"}, got)
}

func TestResolveOptionLabels_RateLimited(t *testing.T) {
	api := &fakeAPI{options: map[string]string{
		apiclient.SelectOptionsPath(1): `[{"id":1,"value":"A"}]`,
		apiclient.SelectOptionsPath(2): `[{"id":2,"value":"B"}]`,
	}}
	cfg := testResolverConfig
	cfg.MaxRequests = 1
	r, m := newTestResolver(api, store.NewMemoryStore(nil), cfg)
	ctx := context.Background()

	_, err := r.ResolveOptionLabels(ctx, 1, []apiclient.OptionRef{"1"}, "tok")
	require.NoError(t, err)

	_, err = r.ResolveOptionLabels(ctx, 2, []apiclient.OptionRef{"2"}, "tok")
	require.ErrorIs(t, err, common.ErrOptionLookupFailed)
	require.ErrorIs(t, err, common.ErrRateLimitExceeded)

	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues(OptionsEndpoint)))
}

func TestResolveOptionLabels_NoOptions(t *testing.T) {
	r, _ := newTestResolver(&fakeAPI{}, store.NewMemoryStore(nil), testResolverConfig)
	_, err := r.ResolveOptionLabels(context.Background(), 1, nil, "tok")
	require.ErrorIs(t, err, common.ErrOptionLookupFailed)
}

func TestResolveOptionLabels_CorruptCacheRefetches(t *testing.T) {
	s := store.NewMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, OptionCacheKey(3), []byte(`not json`), 0))

	api := &fakeAPI{options: map[string]string{apiclient.SelectOptionsPath(3): `[{"id":1,"value":"A"}]`}}
	r, _ := newTestResolver(api, s, testResolverConfig)

	got, err := r.ResolveOptionLabels(ctx, 3, []apiclient.OptionRef{"1"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
}
