// Package cloudmetrics pushes anonymous accounting metrics from
// self-hosted deployments to the hosted control plane.
package cloudmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type metrics struct {
	storiesGenerated    *prometheus.CounterVec
	paywallHits         *prometheus.CounterVec
	activeSubscribers   prometheus.Gauge
	registeredProfiles  prometheus.Gauge
	memoryUsage         prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		storiesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tuckandtale_cloud_stories_generated_total",
			Help: "Stories generated, by paywall behavior at generation time.",
		}, []string{"behavior"}),
		paywallHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tuckandtale_cloud_paywall_hits_total",
			Help: "Denied generation attempts, by reason.",
		}, []string{"reason"}),
		activeSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuckandtale_cloud_active_subscribers",
			Help: "Profiles with an entitled subscription status.",
		}),
		registeredProfiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuckandtale_cloud_registered_profiles",
			Help: "Billing profiles known to this deployment.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuckandtale_cloud_memory_bytes",
			Help: "Process memory obtained from the OS.",
		}),
	}

	registry.MustRegister(
		m.storiesGenerated,
		m.paywallHits,
		m.activeSubscribers,
		m.registeredProfiles,
		m.memoryUsage,
	)
	return m
}

// CloudMetrics owns the push registry and the instruments recorded into it.
type CloudMetrics struct {
	registry *prometheus.Registry
	metrics  *metrics
	pusher   Pusher
	log      *zap.Logger
}

func New(registry *prometheus.Registry, pusher Pusher, log *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CloudMetrics{
		registry: registry,
		metrics:  newMetrics(registry),
		pusher:   pusher,
		log:      log,
	}
}

func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}

func (c *CloudMetrics) SetActiveSubscribers(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.activeSubscribers.Set(float64(count))
}

func (c *CloudMetrics) SetRegisteredProfiles(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.registeredProfiles.Set(float64(count))
}

func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.metrics.memoryUsage.Set(float64(bytes))
}
