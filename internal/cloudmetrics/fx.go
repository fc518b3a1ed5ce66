package cloudmetrics

import (
	"context"
	"runtime"
	"time"

	"github.com/benjask5360/tuckandtale/internal/config"
	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("cloud.metrics",
	fx.Provide(func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, registry *prometheus.Registry, pusher Pusher, logger *zap.Logger) *CloudMetrics {
		if !cfg.IsCloud() || !cfg.Cloud.Metrics.Enabled || pusher == nil {
			return nil
		}
		c := New(registry, pusher, logger)
		setRecorder(&recorder{metrics: c.metrics})
		return c
	}),
	fx.Invoke(runWorker),
)

// runWorker pushes a snapshot every 30 minutes. Push failures are logged
// and never interrupt serving.
func runWorker(lc fx.Lifecycle, c *CloudMetrics, logger *zap.Logger, db *gorm.DB) {
	if c == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting cloud metrics background worker")
			go func() {
				ticker := time.NewTicker(30 * time.Minute)
				defer ticker.Stop()

				updateSystemMetrics(c)
				updateProfileGauges(ctx, c, db)
				if err := c.Push(ctx); err != nil {
					logger.Error("initial cloud metrics push failed", zap.Error(err))
				}

				for {
					select {
					case <-ticker.C:
						updateSystemMetrics(c)
						updateProfileGauges(ctx, c, db)
						if err := c.Push(ctx); err != nil {
							logger.Error("periodic cloud metrics push failed", zap.Error(err))
						}
					case <-ctx.Done():
						logger.Info("stopping cloud metrics background worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func updateSystemMetrics(c *CloudMetrics) {
	if c == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SetMemoryUsage(m.Sys)
}

func updateProfileGauges(ctx context.Context, c *CloudMetrics, db *gorm.DB) {
	if c == nil || db == nil {
		return
	}

	var total int64
	if err := db.WithContext(ctx).Model(&profiledomain.UserProfile{}).Count(&total).Error; err == nil {
		c.SetRegisteredProfiles(total)
	}

	var subscribed int64
	err := db.WithContext(ctx).
		Model(&profiledomain.UserProfile{}).
		Where("subscription_status IN ?", []profiledomain.SubscriptionStatus{
			profiledomain.SubscriptionStatusActive,
			profiledomain.SubscriptionStatusTrialing,
		}).
		Count(&subscribed).Error
	if err == nil {
		c.SetActiveSubscribers(subscribed)
	}
}
