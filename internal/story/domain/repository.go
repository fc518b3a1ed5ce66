package domain

import (
	"context"
	"errors"
	"time"

	"github.com/benjask5360/tuckandtale/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrStoryNotFound = errors.New("story_not_found")
	ErrInvalidStory  = errors.New("invalid_story")
)

type ListStoriesRequest struct {
	UserID    string
	PageToken string
	PageSize  int
}

type ListStoriesResponse struct {
	pagination.PageInfo
	Stories []Story `json:"stories"`
}

type Repository interface {
	Create(ctx context.Context, story *Story) error
	FindByID(ctx context.Context, id snowflake.ID) (*Story, error)
	List(ctx context.Context, req ListStoriesRequest) (ListStoriesResponse, error)

	// CountCompletedInWindow counts the user's completed stories created in
	// [from, to). The usage orchestrator runs it against the current billing
	// cycle window on every subscriber check.
	CountCompletedInWindow(ctx context.Context, userID string, from, to time.Time) (int, error)

	SetPaywallLocked(ctx context.Context, id snowflake.ID, locked bool) error
	UpdateStatus(ctx context.Context, id snowflake.ID, status GenerationStatus) error
}
