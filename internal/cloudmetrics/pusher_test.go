package cloudmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBuildRemoteWriteSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := New(registry, nil, nil)
	setRecorder(&recorder{metrics: c.metrics})

	RecordStoryGenerated("free")
	RecordStoryGenerated("free")
	RecordPaywallHit("paywall_required")
	c.SetActiveSubscribers(7)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	// The three recorded instruments plus the two always-present gauges.
	series := buildRemoteWriteSeries(families, 1700000000000)
	if len(series) != 5 {
		t.Fatalf("expected 5 series, got %d", len(series))
	}

	byName := map[string]float64{}
	for _, ts := range series {
		var name string
		for _, label := range ts.Labels {
			if label.Name == "__name__" {
				name = label.Value
			}
		}
		if len(ts.Samples) != 1 {
			t.Fatalf("expected 1 sample for %s, got %d", name, len(ts.Samples))
		}
		byName[name] = ts.Samples[0].Value
	}

	if got := byName["tuckandtale_cloud_stories_generated_total"]; got != 2 {
		t.Fatalf("expected 2 generated stories, got %v", got)
	}
	if got := byName["tuckandtale_cloud_paywall_hits_total"]; got != 1 {
		t.Fatalf("expected 1 paywall hit, got %v", got)
	}
	if got := byName["tuckandtale_cloud_active_subscribers"]; got != 7 {
		t.Fatalf("expected 7 subscribers, got %v", got)
	}
}
