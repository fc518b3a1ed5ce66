package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	generationAllowed metric.Int64Counter
	generationDenied  metric.Int64Counter
	storiesRecorded   metric.Int64Counter
	creditsConsumed   metric.Int64Counter
	trialsConsumed    metric.Int64Counter
	paywallLocks      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tuckandtale"
	}
	meter := provider.Meter(name)

	generationAllowed, err := meter.Int64Counter("tuckandtale_generation_allowed_total")
	if err != nil {
		return nil, err
	}
	generationDenied, err := meter.Int64Counter("tuckandtale_generation_denied_total")
	if err != nil {
		return nil, err
	}
	storiesRecorded, err := meter.Int64Counter("tuckandtale_stories_recorded_total")
	if err != nil {
		return nil, err
	}
	creditsConsumed, err := meter.Int64Counter("tuckandtale_credits_consumed_total")
	if err != nil {
		return nil, err
	}
	trialsConsumed, err := meter.Int64Counter("tuckandtale_free_trials_consumed_total")
	if err != nil {
		return nil, err
	}
	paywallLocks, err := meter.Int64Counter("tuckandtale_paywall_locks_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		generationAllowed: generationAllowed,
		generationDenied:  generationDenied,
		storiesRecorded:   storiesRecorded,
		creditsConsumed:   creditsConsumed,
		trialsConsumed:    trialsConsumed,
		paywallLocks:      paywallLocks,
	}, nil
}

// RecordGenerationAllowed increments allowed-decision counts.
func (m *Metrics) RecordGenerationAllowed(ctx context.Context, behavior string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("behavior", strings.TrimSpace(behavior)))
	m.generationAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGenerationDenied increments denied-decision counts.
func (m *Metrics) RecordGenerationDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.generationDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStoryRecorded increments completed-story counts.
func (m *Metrics) RecordStoryRecorded(ctx context.Context, contentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("content_type", strings.TrimSpace(contentType)))
	m.storiesRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCreditConsumed increments generation-credit spend counts.
func (m *Metrics) RecordCreditConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.creditsConsumed.Add(ctx, 1)
}

// RecordTrialConsumed increments free-trial spend counts.
func (m *Metrics) RecordTrialConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.trialsConsumed.Add(ctx, 1)
}

// RecordPaywallLock increments view-gated story counts.
func (m *Metrics) RecordPaywallLock(ctx context.Context) {
	if m == nil {
		return
	}
	m.paywallLocks.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"behavior":     {},
	"reason":       {},
	"content_type": {},
	"status_code":  {},
	"method":       {},
	"route":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
