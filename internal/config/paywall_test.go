package config

import "testing"

func TestValidatePaywallConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     PaywallConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultPaywallConfig()},
		{name: "zero monthly limit", cfg: PaywallConfig{MonthlyStoryLimit: 0, SubscriptionTierID: "stories_plus", FreePreviewStories: 2}, wantErr: true},
		{name: "empty tier", cfg: PaywallConfig{MonthlyStoryLimit: 30, SubscriptionTierID: "  ", FreePreviewStories: 2}, wantErr: true},
		{name: "no free previews", cfg: PaywallConfig{MonthlyStoryLimit: 30, SubscriptionTierID: "stories_plus", FreePreviewStories: 0}, wantErr: true},
		{name: "single free preview", cfg: PaywallConfig{MonthlyStoryLimit: 30, SubscriptionTierID: "stories_plus", FreePreviewStories: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePaywallConfig(tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStaticHolderServesPinnedConfig(t *testing.T) {
	cfg := PaywallConfig{MonthlyStoryLimit: 5, SubscriptionTierID: "stories_plus", FreePreviewStories: 1}
	holder := NewStaticPaywallConfigHolder(cfg)

	got := holder.Get()
	if got != cfg {
		t.Fatalf("expected %+v, got %+v", cfg, got)
	}
}
