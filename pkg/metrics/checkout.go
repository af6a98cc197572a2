package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Placement outcomes, one per terminal state of a place-order attempt.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomePriceChanged      = "price_changed"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeUpstream          = "upstream_unavailable"
	OutcomeConflict          = "conflict"
	OutcomeNotFound          = "not_found"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// CheckoutMetrics covers placements, catalog lookups and event delivery.
// A nil *CheckoutMetrics is valid and records nothing.
type CheckoutMetrics struct {
	placements      *prometheus.CounterVec
	placementTime   prometheus.Histogram
	catalogLookups  *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout collectors on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_placements_total",
		Help: "Place-order attempts by outcome.",
	}, []string{"outcome"})
	placementTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_placement_duration_seconds",
		Help:    "Duration of place-order attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	catalogLookups := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_lookup_duration_seconds",
		Help:    "Catalog product lookups in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "outcome"})
	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_published_total",
		Help: "OrderCreated deliveries by sink and outcome.",
	}, []string{"sink", "outcome"})
	eventsConsumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_consumed_total",
		Help: "OrderCreated messages handled by the notifier by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(placements, placementTime, catalogLookups, eventsPublished, eventsConsumed)
	return &CheckoutMetrics{
		placements:      placements,
		placementTime:   placementTime,
		catalogLookups:  catalogLookups,
		eventsPublished: eventsPublished,
		eventsConsumed:  eventsConsumed,
	}
}

// ObservePlacement counts one placement attempt and its duration.
func (m *CheckoutMetrics) ObservePlacement(outcome string, duration time.Duration) {
	if m == nil || m.placements == nil {
		return
	}
	m.placements.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.placementTime.Observe(duration.Seconds())
}

// ObserveCatalogLookup records a lookup by sku or id.
func (m *CheckoutMetrics) ObserveCatalogLookup(mode, outcome string, duration time.Duration) {
	if m == nil || m.catalogLookups == nil {
		return
	}
	m.catalogLookups.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) IncEventPublished(sink string, ok bool) {
	if m == nil || m.eventsPublished == nil {
		return
	}
	m.eventsPublished.WithLabelValues(normalizeLabel(sink), resultLabel(ok)).Inc()
}

func (m *CheckoutMetrics) IncEventConsumed(outcome string) {
	if m == nil || m.eventsConsumed == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeError
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
