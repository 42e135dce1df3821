package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded on ItemsProcessed
const (
	OutcomeAdded   = "added"
	OutcomeClamped = "clamped"
	OutcomeFailed  = "failed"
)

type Registry struct {
	reg *prometheus.Registry

	ItemsProcessed        *prometheus.CounterVec
	TxLatencySec          prometheus.Histogram
	StockLookupFailures   *prometheus.CounterVec
	StockLookupLatencySec prometheus.Histogram
	EventPublishFailures  prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_items_processed_total",
		Help: "Add-to-cart line requests by outcome.",
	}, []string{"outcome"})
	txLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_tx_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	stockFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_lookup_failures_total",
		Help: "Stock lookups degraded to zero stock.",
	}, []string{"reason"})
	stockLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_lookup_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	publishFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_event_publish_failures_total"})

	r.MustRegister(items, txLatency, stockFailures, stockLatency, publishFailures)
	return &Registry{
		reg:                   r,
		ItemsProcessed:        items,
		TxLatencySec:          txLatency,
		StockLookupFailures:   stockFailures,
		StockLookupLatencySec: stockLatency,
		EventPublishFailures:  publishFailures,
	}
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
