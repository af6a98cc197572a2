package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObservePlacement(OutcomeSuccess, 120*time.Millisecond)
	m.ObservePlacement(OutcomePriceChanged, 30*time.Millisecond)
	m.ObservePlacement("", time.Millisecond)
	m.ObserveCatalogLookup("sku", OutcomeSuccess, 40*time.Millisecond)
	m.IncEventPublished("redis", true)
	m.IncEventPublished("redis", false)
	m.IncEventConsumed("sent")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, tc := range []struct {
		name, label, value string
	}{
		{"checkout_placements_total", "outcome", OutcomeSuccess},
		{"checkout_placements_total", "outcome", OutcomePriceChanged},
		{"checkout_placements_total", "outcome", "unknown"},
		{"order_events_published_total", "outcome", OutcomeSuccess},
		{"order_events_published_total", "outcome", OutcomeError},
		{"order_events_consumed_total", "outcome", "sent"},
	} {
		got, err := fetchCounterValue(mfs, tc.name, tc.label, tc.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", tc.name, err)
		}
		if got != 1 {
			t.Fatalf("expected %s{%s=%s}=1, got %f", tc.name, tc.label, tc.value, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "catalog_lookup_duration_seconds", "mode", "sku"); err != nil {
		t.Fatalf("fetch lookup duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected lookup duration sum > 0, got %f", got)
	}

	mf := findMetricFamily(mfs, "checkout_placement_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("expected three placement duration samples")
	}
}

func TestNilCheckoutMetricsIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.ObservePlacement(OutcomeSuccess, time.Second)
	m.ObserveCatalogLookup("id", OutcomeSuccess, time.Second)
	m.IncEventPublished("log", true)
	m.IncEventConsumed("sent")

	unregistered := NewCheckoutMetrics(nil)
	unregistered.ObservePlacement(OutcomeSuccess, time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
