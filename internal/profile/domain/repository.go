package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProfileNotFound = errors.New("profile_not_found")
	ErrInvalidUserID   = errors.New("invalid_user_id")
	ErrInvalidCredits  = errors.New("invalid_credits")
)

// Repository is the persistence capability the usage engine depends on:
// point reads, point updates, database-side atomic counters. Counter
// mutations run as single UPDATE statements so concurrent requests from the
// same user cannot lose updates.
type Repository interface {
	FindByID(ctx context.Context, userID string) (*UserProfile, error)
	Create(ctx context.Context, profile *UserProfile) error

	// IncrementStoryCount atomically bumps total_stories_generated and
	// returns the new value.
	IncrementStoryCount(ctx context.Context, userID string) (int, error)
	// SetStoryCount overwrites the counter. Only the read-modify-write
	// fallback path uses it.
	SetStoryCount(ctx context.Context, userID string, count int) error

	// ConsumeCredit decrements generation_credits if it is positive.
	// Returns false, leaving state untouched, when credits are exhausted.
	ConsumeCredit(ctx context.Context, userID string) (bool, error)
	AddCredits(ctx context.Context, userID string, amount int) error

	// MarkFreeTrialUsed sets the flag; setting it again is a no-op.
	MarkFreeTrialUsed(ctx context.Context, userID string) error

	IncrementPurchasedStories(ctx context.Context, userID string) (int, error)

	// ActivateSubscription records a new subscription and resets
	// total_stories_generated to zero.
	ActivateSubscription(ctx context.Context, userID, tierID string, startsAt time.Time) error
	UpdateSubscriptionStatus(ctx context.Context, userID string, status SubscriptionStatus) error
}
