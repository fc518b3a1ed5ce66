package service

import (
	"context"
	"strings"

	"github.com/benjask5360/tuckandtale/internal/billingcycle"
	"github.com/benjask5360/tuckandtale/internal/clock"
	"github.com/benjask5360/tuckandtale/internal/config"
	"github.com/benjask5360/tuckandtale/internal/observability/metrics"
	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	trackerdomain "github.com/benjask5360/tuckandtale/internal/tracker/domain"
	usagelimitsdomain "github.com/benjask5360/tuckandtale/internal/usagelimits/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log         *zap.Logger
	Tracker     trackerdomain.Service
	ProfileRepo profiledomain.Repository
	StoryRepo   storydomain.Repository
	Paywall     *config.PaywallConfigHolder
	Clock       clock.Clock
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	tracker     trackerdomain.Service
	profilerepo profiledomain.Repository
	storyrepo   storydomain.Repository
	paywall     *config.PaywallConfigHolder
	clock       clock.Clock
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) usagelimitsdomain.Service {
	return &Service{
		log:         p.Log.Named("usagelimits.service"),
		tracker:     p.Tracker,
		profilerepo: p.ProfileRepo,
		storyrepo:   p.StoryRepo,
		paywall:     p.Paywall,
		clock:       p.Clock,
		metrics:     p.Metrics,
	}
}

// CanGenerate layers the subscriber monthly quota on top of the paywall
// classification. The classification table is volume-agnostic for
// subscribers, so the cycle-bounded count is checked here and only here.
func (s *Service) CanGenerate(ctx context.Context, userID string, includeIllustrations bool) (usagelimitsdomain.Decision, error) {
	behavior, err := s.tracker.GetPaywallBehavior(ctx, userID, includeIllustrations)
	if err != nil {
		return usagelimitsdomain.Decision{}, err
	}

	if behavior.HasSubscription {
		usage, err := s.cycleUsage(ctx, userID)
		if err != nil {
			return usagelimitsdomain.Decision{}, err
		}
		if usage.Used >= usage.Limit {
			s.metrics.RecordGenerationDenied(ctx, string(usagelimitsdomain.ReasonSubscriptionLimitReached))
			return usagelimitsdomain.Decision{
				Allowed:  false,
				Reason:   usagelimitsdomain.ReasonSubscriptionLimitReached,
				Behavior: behavior,
				Cycle:    usage,
			}, nil
		}
		s.metrics.RecordGenerationAllowed(ctx, string(behavior.Behavior))
		return usagelimitsdomain.Decision{
			Allowed:  true,
			Behavior: behavior,
			Cycle:    usage,
		}, nil
	}

	if !behavior.CanGenerate {
		s.metrics.RecordGenerationDenied(ctx, string(usagelimitsdomain.ReasonPaywallRequired))
		return usagelimitsdomain.Decision{
			Allowed:  false,
			Reason:   usagelimitsdomain.ReasonPaywallRequired,
			Behavior: behavior,
		}, nil
	}

	s.metrics.RecordGenerationAllowed(ctx, string(behavior.Behavior))
	return usagelimitsdomain.Decision{
		Allowed:  true,
		Behavior: behavior,
	}, nil
}

// IncrementUsage records a finished story. The ordering is load-bearing:
// the behavior snapshot is taken before any counter moves, so the free
// preview transition and the trial flag are judged against pre-increment
// state even if a subscription lands concurrently.
func (s *Service) IncrementUsage(ctx context.Context, req usagelimitsdomain.IncrementUsageRequest) (usagelimitsdomain.IncrementUsageResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return usagelimitsdomain.IncrementUsageResult{}, trackerdomain.ErrInvalidUserID
	}

	snap, err := s.tracker.GetPaywallBehavior(ctx, req.UserID, req.IncludeIllustrations)
	if err != nil {
		return usagelimitsdomain.IncrementUsageResult{}, err
	}

	newCount, err := s.tracker.IncrementStoryCount(ctx, req.UserID)
	if err != nil {
		return usagelimitsdomain.IncrementUsageResult{}, err
	}

	if req.StoryID != 0 {
		status := storydomain.GenerationStatusTextComplete
		if req.IncludeIllustrations {
			status = storydomain.GenerationStatusComplete
		}
		// A failed status write undercounts the cycle window, but the
		// lifetime counter already moved so the request must not fail.
		if err := s.storyrepo.UpdateStatus(ctx, req.StoryID, status); err != nil {
			s.log.Error("failed to mark story completed",
				zap.String("user_id", req.UserID),
				zap.Int64("story_id", req.StoryID.Int64()),
				zap.Error(err),
			)
		}
	}

	if req.UsedCredit {
		granted, err := s.tracker.ConsumeCredit(ctx, req.UserID)
		if err != nil {
			return usagelimitsdomain.IncrementUsageResult{}, err
		}
		if granted {
			s.metrics.RecordCreditConsumed(ctx)
		} else {
			s.log.Warn("credit marked used but balance was already zero",
				zap.String("user_id", req.UserID),
			)
		}
	}

	cfg := s.paywall.Get()
	shouldMarkPaywall := newCount == cfg.FreePreviewStories &&
		!snap.HasSubscription &&
		!req.UsedCredit

	if shouldMarkPaywall && req.StoryID != 0 {
		// The story already generated; losing the view gate is preferable
		// to failing the request and double-counting on retry.
		if err := s.storyrepo.SetPaywallLocked(ctx, req.StoryID, true); err != nil {
			s.log.Error("failed to flag story for view gating",
				zap.String("user_id", req.UserID),
				zap.Int64("story_id", req.StoryID.Int64()),
				zap.Error(err),
			)
		} else {
			s.metrics.RecordPaywallLock(ctx)
		}
	}

	if newCount == 1 && req.IncludeIllustrations && !snap.FreeTrialUsed {
		if err := s.tracker.MarkFreeTrialUsed(ctx, req.UserID); err != nil {
			return usagelimitsdomain.IncrementUsageResult{}, err
		}
		s.metrics.RecordTrialConsumed(ctx)
	}

	s.metrics.RecordStoryRecorded(ctx, storydomain.ContentTypeStory)

	return usagelimitsdomain.IncrementUsageResult{
		NewStoryCount:     newCount,
		ShouldMarkPaywall: shouldMarkPaywall,
	}, nil
}

func (s *Service) GetUsageStats(ctx context.Context, userID string) (usagelimitsdomain.UsageStats, error) {
	if strings.TrimSpace(userID) == "" {
		return usagelimitsdomain.UsageStats{}, trackerdomain.ErrInvalidUserID
	}

	profile, err := s.profilerepo.FindByID(ctx, userID)
	if err != nil {
		return usagelimitsdomain.UsageStats{}, err
	}
	if profile == nil {
		return usagelimitsdomain.UsageStats{}, nil
	}

	cfg := s.paywall.Get()
	stats := usagelimitsdomain.UsageStats{
		StoriesGenerated:  profile.TotalStoriesGenerated,
		GenerationCredits: profile.GenerationCredits,
		PurchasedStories:  profile.PurchasedStoryCount,
		FreeTrialUsed:     profile.FreeTrialUsed,
		HasSubscription:   entitledTier(profile, cfg),
	}

	if stats.HasSubscription {
		usage, err := s.usageForProfile(ctx, profile, cfg)
		if err != nil {
			return usagelimitsdomain.UsageStats{}, err
		}
		stats.Cycle = usage
	}

	return stats, nil
}

func (s *Service) cycleUsage(ctx context.Context, userID string) (*usagelimitsdomain.CycleUsage, error) {
	profile, err := s.profilerepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrProfileNotFound
	}
	return s.usageForProfile(ctx, profile, s.paywall.Get())
}

func (s *Service) usageForProfile(ctx context.Context, profile *profiledomain.UserProfile, cfg config.PaywallConfig) (*usagelimitsdomain.CycleUsage, error) {
	anchor := profile.CreatedAt
	if profile.SubscriptionStartsAt != nil {
		anchor = *profile.SubscriptionStartsAt
	} else {
		s.log.Warn("subscribed profile has no subscription start, anchoring cycle to account creation",
			zap.String("user_id", profile.UserID),
		)
	}

	cycle := billingcycle.Compute(anchor, s.clock.Now(), true)
	used, err := s.storyrepo.CountCompletedInWindow(ctx, profile.UserID, cycle.Start, cycle.End)
	if err != nil {
		return nil, err
	}

	return usagelimitsdomain.NewCycleUsage(cycle, used, cfg.MonthlyStoryLimit), nil
}

// entitledTier reports whether the profile carries the quota-bearing tier
// with an entitled status.
func entitledTier(profile *profiledomain.UserProfile, cfg config.PaywallConfig) bool {
	if !profile.SubscriptionStatus.Entitled() || profile.SubscriptionTierID == nil {
		return false
	}
	return *profile.SubscriptionTierID == cfg.SubscriptionTierID
}
