// Package domain defines the allow/deny contract for story generation.
package domain

import (
	"time"

	"github.com/benjask5360/tuckandtale/internal/billingcycle"
	trackerdomain "github.com/benjask5360/tuckandtale/internal/tracker/domain"
	"github.com/bwmarrin/snowflake"
)

// Reason tags why generation was denied.
type Reason string

const (
	// ReasonSubscriptionLimitReached means the subscriber exhausted the
	// monthly quota for the current billing cycle.
	ReasonSubscriptionLimitReached Reason = "subscription_limit_reached"
	// ReasonPaywallRequired means a non-subscriber hit the hard paywall.
	ReasonPaywallRequired Reason = "paywall_required"
	// ReasonNoAccess is the catch-all denial.
	ReasonNoAccess Reason = "no_access"
)

// CycleUsage reports subscriber consumption inside the current billing
// cycle. Remaining never goes below zero.
type CycleUsage struct {
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	Remaining      int       `json:"remaining"`
	DaysUntilReset int       `json:"days_until_reset"`
	CycleStart     time.Time `json:"cycle_start"`
	CycleEnd       time.Time `json:"cycle_end"`
}

// Decision is the single answer to "can this user generate right now".
// Cycle is populated for subscribers only.
type Decision struct {
	Allowed  bool                          `json:"allowed"`
	Reason   Reason                        `json:"reason,omitempty"`
	Behavior trackerdomain.PaywallBehavior `json:"behavior"`
	Cycle    *CycleUsage                   `json:"billing_cycle,omitempty"`
}

// IncrementUsageRequest records one successfully completed story.
type IncrementUsageRequest struct {
	UserID               string
	IncludeIllustrations bool
	UsedCredit           bool
	// StoryID, when set, is the row to flag for view-gating.
	StoryID snowflake.ID
}

type IncrementUsageResult struct {
	NewStoryCount     int  `json:"new_story_count"`
	ShouldMarkPaywall bool `json:"should_mark_paywall"`
}

// UsageStats feeds the account page.
type UsageStats struct {
	StoriesGenerated  int         `json:"stories_generated"`
	GenerationCredits int         `json:"generation_credits"`
	PurchasedStories  int         `json:"purchased_stories"`
	FreeTrialUsed     bool        `json:"free_trial_used"`
	HasSubscription   bool        `json:"has_subscription"`
	Cycle             *CycleUsage `json:"billing_cycle,omitempty"`
}

// NewCycleUsage derives the usage view from a computed cycle window.
func NewCycleUsage(cycle billingcycle.Cycle, used, limit int) *CycleUsage {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &CycleUsage{
		Used:           used,
		Limit:          limit,
		Remaining:      remaining,
		DaysUntilReset: cycle.DaysRemaining,
		CycleStart:     cycle.Start,
		CycleEnd:       cycle.End,
	}
}
