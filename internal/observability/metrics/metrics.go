// Package metrics exposes ingestion counters so operators can watch
// batch health per resource kind.
package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/eresearchbill/reckon/internal/config"
	"go.uber.org/fx"
)

// Metrics carries the application-level instruments.
type Metrics struct {
	recordsProcessed *prometheus.CounterVec
	recordsSkipped   *prometheus.CounterVec
	feesComputed     *prometheus.CounterVec
	feedErrors       *prometheus.CounterVec
}

func New(cfg config.Config) *Metrics {
	return newWith(prometheus.DefaultRegisterer, cfg)
}

func newWith(registerer prometheus.Registerer, cfg config.Config) *Metrics {
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": "reckon",
		"env":     environment,
	}

	m := &Metrics{
		recordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reckon_ingest_records_processed_total",
			Help:        "Usage records successfully linked and stored, by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reckon_ingest_records_skipped_total",
			Help:        "Usage records skipped at the per-record boundary, by kind and reason.",
			ConstLabels: constLabels,
		}, []string{"kind", "reason"}),
		feesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reckon_fees_computed_total",
			Help:        "Fee rows computed, by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		feedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reckon_feed_errors_total",
			Help:        "Transport failures against usage and contract feeds.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
	}

	for _, c := range []*prometheus.CounterVec{
		m.recordsProcessed, m.recordsSkipped, m.feesComputed, m.feedErrors,
	} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

func (m *Metrics) RecordProcessed(kind string) {
	m.recordsProcessed.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSkipped(kind, reason string) {
	m.recordsSkipped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) FeeComputed(kind string) {
	m.feesComputed.WithLabelValues(kind).Inc()
}

func (m *Metrics) FeedError(kind string) {
	m.feedErrors.WithLabelValues(kind).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
