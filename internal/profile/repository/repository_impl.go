package repository

import (
	"context"
	"strings"
	"time"

	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	"github.com/benjask5360/tuckandtale/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RepositoryParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Repository struct {
	db  *gorm.DB
	log *zap.Logger

	profilerepo repository.Repository[profiledomain.UserProfile]
}

func NewRepository(p RepositoryParam) profiledomain.Repository {
	return &Repository{
		db:  p.DB,
		log: p.Log.Named("profile.repository"),

		profilerepo: repository.ProvideStore[profiledomain.UserProfile](p.DB),
	}
}

func (r *Repository) FindByID(ctx context.Context, userID string) (*profiledomain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, profiledomain.ErrInvalidUserID
	}
	return r.profilerepo.FindOne(ctx, &profiledomain.UserProfile{UserID: userID})
}

func (r *Repository) Create(ctx context.Context, profile *profiledomain.UserProfile) error {
	if profile == nil || strings.TrimSpace(profile.UserID) == "" {
		return profiledomain.ErrInvalidUserID
	}
	if profile.SubscriptionStatus == "" {
		profile.SubscriptionStatus = profiledomain.SubscriptionStatusNone
	}
	return r.profilerepo.Create(ctx, profile)
}

func (r *Repository) IncrementStoryCount(ctx context.Context, userID string) (int, error) {
	var newCount int
	err := r.db.WithContext(ctx).Raw(
		`UPDATE user_profiles
		 SET total_stories_generated = total_stories_generated + 1, updated_at = ?
		 WHERE user_id = ?
		 RETURNING total_stories_generated`,
		time.Now().UTC(),
		userID,
	).Scan(&newCount).Error
	if err != nil {
		return 0, err
	}
	if newCount == 0 {
		// RETURNING yields no row for a missing profile.
		return 0, profiledomain.ErrProfileNotFound
	}
	return newCount, nil
}

func (r *Repository) SetStoryCount(ctx context.Context, userID string, count int) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET total_stories_generated = ?, updated_at = ?
		 WHERE user_id = ?`,
		count,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return profiledomain.ErrProfileNotFound
	}
	return nil
}

func (r *Repository) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	// The guard keeps the counter from ever going negative under
	// concurrent consumption.
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET generation_credits = generation_credits - 1, updated_at = ?
		 WHERE user_id = ? AND generation_credits > 0`,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AddCredits(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return profiledomain.ErrInvalidCredits
	}
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET generation_credits = generation_credits + ?, updated_at = ?
		 WHERE user_id = ?`,
		amount,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return profiledomain.ErrProfileNotFound
	}
	return nil
}

func (r *Repository) MarkFreeTrialUsed(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET free_trial_used = ?, updated_at = ?
		 WHERE user_id = ?`,
		true,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return profiledomain.ErrProfileNotFound
	}
	return nil
}

func (r *Repository) IncrementPurchasedStories(ctx context.Context, userID string) (int, error) {
	var newCount int
	err := r.db.WithContext(ctx).Raw(
		`UPDATE user_profiles
		 SET purchased_story_count = purchased_story_count + 1, updated_at = ?
		 WHERE user_id = ?
		 RETURNING purchased_story_count`,
		time.Now().UTC(),
		userID,
	).Scan(&newCount).Error
	if err != nil {
		return 0, err
	}
	if newCount == 0 {
		return 0, profiledomain.ErrProfileNotFound
	}
	return newCount, nil
}

func (r *Repository) ActivateSubscription(ctx context.Context, userID, tierID string, startsAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET subscription_status = ?,
		     subscription_tier_id = ?,
		     subscription_starts_at = ?,
		     total_stories_generated = 0,
		     updated_at = ?
		 WHERE user_id = ?`,
		profiledomain.SubscriptionStatusActive,
		tierID,
		startsAt.UTC(),
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return profiledomain.ErrProfileNotFound
	}
	return nil
}

func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, userID string, status profiledomain.SubscriptionStatus) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET subscription_status = ?, updated_at = ?
		 WHERE user_id = ?`,
		status,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return profiledomain.ErrProfileNotFound
	}
	return nil
}
