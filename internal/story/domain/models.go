// Package domain contains persistence models for generated story content.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// GenerationStatus tracks a story through the generation pipeline.
type GenerationStatus string

const (
	GenerationStatusPending      GenerationStatus = "pending"
	GenerationStatusGenerating   GenerationStatus = "generating"
	GenerationStatusComplete     GenerationStatus = "complete"
	GenerationStatusTextComplete GenerationStatus = "text_complete"
	GenerationStatusFailed       GenerationStatus = "failed"
)

// CompletedStatuses are the states that count toward usage quotas. Failed
// or abandoned attempts never consume quota.
var CompletedStatuses = []GenerationStatus{
	GenerationStatusComplete,
	GenerationStatusTextComplete,
}

const ContentTypeStory = "story"

// Story is one generated bedtime story owned by a user.
type Story struct {
	ID                   snowflake.ID      `gorm:"primaryKey"`
	UserID               string            `gorm:"type:uuid;not null;index"`
	ContentType          string            `gorm:"type:text;not null;default:'story'"`
	Status               GenerationStatus  `gorm:"type:text;not null;default:'pending'"`
	IncludeIllustrations bool              `gorm:"not null;default:false"`
	PaywallLocked        bool              `gorm:"not null;default:false"`
	Title                string            `gorm:"type:text"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Story) TableName() string { return "stories" }
