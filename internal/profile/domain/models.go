// Package domain contains the persisted billing profile for a user.
package domain

import "time"

// SubscriptionStatus mirrors the states reported by the billing provider.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

// Entitled reports whether the status grants subscription benefits.
// Trialing counts: the provider bills trials into a real cycle.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// UserProfile is the billing-relevant slice of a user record. The account
// system owns the row; this service reads and mutates the counters on it.
type UserProfile struct {
	UserID                string             `gorm:"type:uuid;primaryKey;column:user_id"`
	SubscriptionStatus    SubscriptionStatus `gorm:"type:text;not null;default:'none'"`
	SubscriptionTierID    *string            `gorm:"type:text"`
	SubscriptionStartsAt  *time.Time         `gorm:""`
	TotalStoriesGenerated int                `gorm:"not null;default:0"`
	FreeTrialUsed         bool               `gorm:"not null;default:false"`
	GenerationCredits     int                `gorm:"not null;default:0"`
	PurchasedStoryCount   int                `gorm:"not null;default:0"`
	CreatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UserProfile) TableName() string { return "user_profiles" }
