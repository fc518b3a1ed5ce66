package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PaywallConfig controls the generation limits enforced by the usage engine.
// It is reloadable at runtime so limits can be tuned without a deploy.
type PaywallConfig struct {
	// MonthlyStoryLimit caps completed stories per billing cycle for
	// subscribers on the plus tier.
	MonthlyStoryLimit int `mapstructure:"monthlyStoryLimit"`
	// SubscriptionTierID is the tier that counts as "subscribed" for quota
	// purposes. Other tiers fall through to the credit/trial rules.
	SubscriptionTierID string `mapstructure:"subscriptionTierId"`
	// FreePreviewStories is the number of stories a brand-new user gets
	// through the generate-then-paywall flow before the hard paywall.
	FreePreviewStories int `mapstructure:"freePreviewStories"`
}

func DefaultPaywallConfig() PaywallConfig {
	return PaywallConfig{
		MonthlyStoryLimit:  30,
		SubscriptionTierID: "stories_plus",
		FreePreviewStories: 2,
	}
}

type PaywallConfigHolder struct {
	current atomic.Value // holds PaywallConfig
}

func NewPaywallConfigHolder() (*PaywallConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("paywall")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tuckandtale/config") // Volume-mounted config
	v.AddConfigPath("/etc/tuckandtale")            // System config
	v.AddConfigPath(".")                           // Current directory (dev mode)

	v.SetEnvPrefix("TUCKANDTALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPaywallConfig()
	v.SetDefault("paywall.monthlyStoryLimit", defaults.MonthlyStoryLimit)
	v.SetDefault("paywall.subscriptionTierId", defaults.SubscriptionTierID)
	v.SetDefault("paywall.freePreviewStories", defaults.FreePreviewStories)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PaywallConfig
	if err := v.UnmarshalKey("paywall", &cfg); err != nil {
		return nil, err
	}
	if err := validatePaywallConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PaywallConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PaywallConfig
		if err := v.UnmarshalKey("paywall", &updated); err != nil {
			log.Printf("[paywall-config] reload failed: %v", err)
			return
		}
		if err := validatePaywallConfig(updated); err != nil {
			log.Printf("[paywall-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[paywall-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPaywallConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticPaywallConfigHolder(cfg PaywallConfig) *PaywallConfigHolder {
	holder := &PaywallConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PaywallConfigHolder) Get() PaywallConfig {
	return h.current.Load().(PaywallConfig)
}

func validatePaywallConfig(cfg PaywallConfig) error {
	if cfg.MonthlyStoryLimit <= 0 {
		return errors.New("paywall.monthlyStoryLimit must be positive")
	}
	if strings.TrimSpace(cfg.SubscriptionTierID) == "" {
		return errors.New("paywall.subscriptionTierId cannot be empty")
	}
	if cfg.FreePreviewStories < 1 {
		return errors.New("paywall.freePreviewStories must be at least 1")
	}
	return nil
}
