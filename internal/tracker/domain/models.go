// Package domain defines the paywall classification produced for each
// generation attempt.
package domain

// Behavior tags what happens to the user's next story.
type Behavior string

const (
	// BehaviorFree generates and shows the story with no gating.
	BehaviorFree Behavior = "free"
	// BehaviorGenerateThenPaywall generates the story but locks viewing
	// behind the paywall afterwards.
	BehaviorGenerateThenPaywall Behavior = "generate_then_paywall"
	// BehaviorPaywallBeforeGenerate blocks generation outright.
	BehaviorPaywallBeforeGenerate Behavior = "paywall_before_generate"
)

// PaywallBehavior classifies the user's next generation attempt.
// StoryNumber is the 1-based ordinal the next completed story would get.
type PaywallBehavior struct {
	StoryNumber     int      `json:"story_number"`
	Behavior        Behavior `json:"behavior"`
	CanGenerate     bool     `json:"can_generate"`
	HasCredits      bool     `json:"has_credits"`
	HasSubscription bool     `json:"has_subscription"`
	FreeTrialUsed   bool     `json:"free_trial_used"`
}
