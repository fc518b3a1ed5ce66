package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benjask5360/tuckandtale/internal/config"
	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	trackerdomain "github.com/benjask5360/tuckandtale/internal/tracker/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log         *zap.Logger
	ProfileRepo profiledomain.Repository
	StoryRepo   storydomain.Repository
	Paywall     *config.PaywallConfigHolder
}

type Service struct {
	log         *zap.Logger
	profilerepo profiledomain.Repository
	storyrepo   storydomain.Repository
	paywall     *config.PaywallConfigHolder
}

func NewService(p ServiceParam) trackerdomain.Service {
	return &Service{
		log:         p.Log.Named("tracker.service"),
		profilerepo: p.ProfileRepo,
		storyrepo:   p.StoryRepo,
		paywall:     p.Paywall,
	}
}

// snapshot is the paywall-relevant view of a profile at one instant.
type snapshot struct {
	storyNumber     int
	hasSubscription bool
	hasCredits      bool
	freeTrialUsed   bool
	purchasedCount  int
}

// paywallRule is one row of the classification table. Rules are evaluated
// top to bottom; the first match wins.
type paywallRule struct {
	name    string
	matches func(s snapshot, includeIllustrations bool, cfg config.PaywallConfig) bool
	result  func(s snapshot) (trackerdomain.Behavior, bool)
}

var paywallRules = []paywallRule{
	{
		name: "active_subscription",
		matches: func(s snapshot, _ bool, _ config.PaywallConfig) bool {
			return s.hasSubscription
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorFree, true
		},
	},
	{
		name: "has_credits",
		matches: func(s snapshot, _ bool, _ config.PaywallConfig) bool {
			return s.hasCredits
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorFree, true
		},
	},
	{
		name: "first_illustrated_trial",
		matches: func(s snapshot, includeIllustrations bool, _ config.PaywallConfig) bool {
			return s.storyNumber == 1 && includeIllustrations && !s.freeTrialUsed
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorFree, true
		},
	},
	{
		// Text-only first stories are free and do not consume the trial.
		name: "first_text_only",
		matches: func(s snapshot, includeIllustrations bool, _ config.PaywallConfig) bool {
			return s.storyNumber == 1 && !includeIllustrations
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorFree, true
		},
	},
	{
		// The try-before-you-buy hook: story two always generates first and
		// is locked for viewing afterwards. A first illustrated story after
		// the trial was already burned gets the same treatment.
		name: "preview_story",
		matches: func(s snapshot, includeIllustrations bool, cfg config.PaywallConfig) bool {
			if s.storyNumber == cfg.FreePreviewStories {
				return true
			}
			return s.storyNumber == 1 && includeIllustrations && s.freeTrialUsed
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorGenerateThenPaywall, true
		},
	},
	{
		// Each single-story purchase raises the generate-then-paywall
		// ceiling by one, permanently.
		name: "purchased_slot",
		matches: func(s snapshot, _ bool, cfg config.PaywallConfig) bool {
			return s.storyNumber <= cfg.FreePreviewStories+s.purchasedCount
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorGenerateThenPaywall, true
		},
	},
	{
		name: "hard_paywall",
		matches: func(snapshot, bool, config.PaywallConfig) bool {
			return true
		},
		result: func(snapshot) (trackerdomain.Behavior, bool) {
			return trackerdomain.BehaviorPaywallBeforeGenerate, false
		},
	},
}

func (s *Service) GetPaywallBehavior(ctx context.Context, userID string, includeIllustrations bool) (trackerdomain.PaywallBehavior, error) {
	if strings.TrimSpace(userID) == "" {
		return trackerdomain.PaywallBehavior{}, trackerdomain.ErrInvalidUserID
	}

	cfg := s.paywall.Get()
	snap := s.snapshotProfile(ctx, userID, cfg)

	for _, rule := range paywallRules {
		if !rule.matches(snap, includeIllustrations, cfg) {
			continue
		}
		behavior, canGenerate := rule.result(snap)
		return trackerdomain.PaywallBehavior{
			StoryNumber:     snap.storyNumber,
			Behavior:        behavior,
			CanGenerate:     canGenerate,
			HasCredits:      snap.hasCredits,
			HasSubscription: snap.hasSubscription,
			FreeTrialUsed:   snap.freeTrialUsed,
		}, nil
	}

	// The final rule matches unconditionally.
	return trackerdomain.PaywallBehavior{}, nil
}

// snapshotProfile reads the profile, degrading to zero-privilege defaults
// when the row is missing or unreadable. A transient read failure must never
// grant access it would otherwise deny.
func (s *Service) snapshotProfile(ctx context.Context, userID string, cfg config.PaywallConfig) snapshot {
	profile, err := s.profilerepo.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn("profile read failed, using zero-privilege defaults",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		profile = nil
	}
	if profile == nil {
		return snapshot{storyNumber: 1}
	}

	return snapshot{
		storyNumber:     profile.TotalStoriesGenerated + 1,
		hasSubscription: subscribed(profile, cfg),
		hasCredits:      profile.GenerationCredits > 0,
		freeTrialUsed:   profile.FreeTrialUsed,
		purchasedCount:  profile.PurchasedStoryCount,
	}
}

// subscribed reports whether the profile carries the plus tier with an
// entitled status. Other tiers fall through to the credit and trial rules.
func subscribed(profile *profiledomain.UserProfile, cfg config.PaywallConfig) bool {
	if profile == nil || !profile.SubscriptionStatus.Entitled() {
		return false
	}
	if profile.SubscriptionTierID == nil {
		return false
	}
	return *profile.SubscriptionTierID == cfg.SubscriptionTierID
}

func (s *Service) IncrementStoryCount(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, trackerdomain.ErrInvalidUserID
	}

	newCount, err := s.profilerepo.IncrementStoryCount(ctx, userID)
	if err == nil {
		return newCount, nil
	}
	if errors.Is(err, profiledomain.ErrProfileNotFound) {
		return 0, err
	}

	// Availability over strictness: the story already generated, so record
	// it through a plain read-modify-write rather than failing the request.
	// The lost-update window this opens is accepted.
	s.log.Warn("atomic story-count increment failed, falling back",
		zap.String("user_id", userID),
		zap.Error(err),
	)

	profile, readErr := s.profilerepo.FindByID(ctx, userID)
	if readErr != nil || profile == nil {
		return 0, err
	}
	fallbackCount := profile.TotalStoriesGenerated + 1
	if writeErr := s.profilerepo.SetStoryCount(ctx, userID, fallbackCount); writeErr != nil {
		return 0, writeErr
	}
	return fallbackCount, nil
}

func (s *Service) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, trackerdomain.ErrInvalidUserID
	}
	// Errors propagate: silently losing a deduction would double-spend.
	return s.profilerepo.ConsumeCredit(ctx, userID)
}

func (s *Service) MarkFreeTrialUsed(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return trackerdomain.ErrInvalidUserID
	}
	// Errors propagate: losing this flag would let the trial repeat.
	return s.profilerepo.MarkFreeTrialUsed(ctx, userID)
}

func (s *Service) AddCredits(ctx context.Context, userID string, amount int) error {
	if strings.TrimSpace(userID) == "" {
		return trackerdomain.ErrInvalidUserID
	}
	return s.profilerepo.AddCredits(ctx, userID, amount)
}

func (s *Service) RecordStoryPurchase(ctx context.Context, userID string, storyID snowflake.ID) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, trackerdomain.ErrInvalidUserID
	}

	newCount, err := s.profilerepo.IncrementPurchasedStories(ctx, userID)
	if err != nil {
		return 0, err
	}

	if storyID != 0 {
		if err := s.storyrepo.SetPaywallLocked(ctx, storyID, false); err != nil {
			return 0, err
		}
	}

	return newCount, nil
}

func (s *Service) ActivateSubscription(ctx context.Context, userID, tierID string, startsAt time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return trackerdomain.ErrInvalidUserID
	}
	if strings.TrimSpace(tierID) == "" {
		return trackerdomain.ErrInvalidTier
	}
	if startsAt.IsZero() {
		startsAt = time.Now().UTC()
	}
	return s.profilerepo.ActivateSubscription(ctx, userID, tierID, startsAt)
}
