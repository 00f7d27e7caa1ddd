// Package metrics counts what a sync did. A CLI run is a batch job, so the
// counters live on a private registry that is pushed to a Prometheus
// pushgateway at the end of the run instead of being scraped.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Option lookup outcomes.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
	LookupFail = "fail"
)

// Metrics holds the fieldsync collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// OptionLookups counts option label resolutions by outcome.
	OptionLookups *prometheus.CounterVec

	// RateLimited counts requests denied by the rate limiter.
	RateLimited *prometheus.CounterVec

	// Syncs counts finished syncs by status.
	Syncs *prometheus.CounterVec

	// FieldsDiscovered is the size of the discovered catalogue by field type.
	FieldsDiscovered *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OptionLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_option_lookups_total",
				Help: "Option label resolutions by outcome",
			},
			[]string{"outcome"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_rate_limited_total",
				Help: "Requests denied by the rate limiter by endpoint",
			},
			[]string{"endpoint"},
		),
		Syncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldsync_syncs_total",
				Help: "Finished syncs by status",
			},
			[]string{"status"},
		),
		FieldsDiscovered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fieldsync_fields_discovered",
				Help: "Fields discovered in the last sync by type",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) OptionLookup(outcome string) {
	if m == nil {
		return
	}
	m.OptionLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Denied(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) SyncFinished(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "fail"
	}
	m.Syncs.WithLabelValues(status).Inc()
}

// Discovered sets the discovered field count for each type in counts.
func (m *Metrics) Discovered(counts map[string]int) {
	if m == nil {
		return
	}
	for t, n := range counts {
		m.FieldsDiscovered.WithLabelValues(t).Set(float64(n))
	}
}

// Push sends every collector to the pushgateway at url under job. An empty
// url does nothing.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}
