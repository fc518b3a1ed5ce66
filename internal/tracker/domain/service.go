package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrInvalidTier   = errors.New("invalid_tier")
)

// Service is the source of truth for per-user usage counters and the paywall
// classification of the next generation attempt.
type Service interface {
	GetPaywallBehavior(ctx context.Context, userID string, includeIllustrations bool) (PaywallBehavior, error)

	// IncrementStoryCount bumps the lifetime counter and returns the new
	// value. A failed atomic update falls back to a read-modify-write so a
	// finished story is still recorded.
	IncrementStoryCount(ctx context.Context, userID string) (int, error)

	// ConsumeCredit spends one generation credit. Returns false without
	// error when the user has none left.
	ConsumeCredit(ctx context.Context, userID string) (bool, error)

	// MarkFreeTrialUsed flags the one-time illustrated trial as spent.
	MarkFreeTrialUsed(ctx context.Context, userID string) error

	// Purchase-event entry points, invoked by the billing glue once a
	// payment settles.
	AddCredits(ctx context.Context, userID string, amount int) error
	RecordStoryPurchase(ctx context.Context, userID string, storyID snowflake.ID) (int, error)
	ActivateSubscription(ctx context.Context, userID, tierID string, startsAt time.Time) error
}
