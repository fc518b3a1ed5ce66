package repository

import (
	"context"
	"strings"
	"time"

	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"github.com/benjask5360/tuckandtale/pkg/db/option"
	"github.com/benjask5360/tuckandtale/pkg/db/pagination"
	"github.com/benjask5360/tuckandtale/pkg/repository"
	"github.com/bwmarrin/snowflake"
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

	storyrepo repository.Repository[storydomain.Story]
}

func NewRepository(p RepositoryParam) storydomain.Repository {
	return &Repository{
		db:  p.DB,
		log: p.Log.Named("story.repository"),

		storyrepo: repository.ProvideStore[storydomain.Story](p.DB),
	}
}

func (r *Repository) Create(ctx context.Context, story *storydomain.Story) error {
	if story == nil || strings.TrimSpace(story.UserID) == "" {
		return storydomain.ErrInvalidStory
	}
	if story.ContentType == "" {
		story.ContentType = storydomain.ContentTypeStory
	}
	if story.Status == "" {
		story.Status = storydomain.GenerationStatusPending
	}
	return r.storyrepo.Create(ctx, story)
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*storydomain.Story, error) {
	return r.storyrepo.FindOne(ctx, &storydomain.Story{ID: id})
}

func (r *Repository) List(ctx context.Context, req storydomain.ListStoriesRequest) (storydomain.ListStoriesResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return storydomain.ListStoriesResponse{}, storydomain.ErrInvalidStory
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.WithLimit(pageSize + 1),
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return storydomain.ListStoriesResponse{}, err
		}
		opts = append(opts, option.WithCreatedBefore(cursor.CreatedAt))
	}

	rows, err := r.storyrepo.Find(ctx, &storydomain.Story{
		UserID:      req.UserID,
		ContentType: storydomain.ContentTypeStory,
	}, opts...)
	if err != nil {
		return storydomain.ListStoriesResponse{}, err
	}

	info, rows := pagination.BuildCursorPageInfo(rows, pageSize, func(s *storydomain.Story) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        s.ID.String(),
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})

	stories := make([]storydomain.Story, 0, len(rows))
	for _, row := range rows {
		stories = append(stories, *row)
	}

	return storydomain.ListStoriesResponse{
		PageInfo: *info,
		Stories:  stories,
	}, nil
}

func (r *Repository) CountCompletedInWindow(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM stories
		 WHERE user_id = ?
		   AND content_type = ?
		   AND status IN (?, ?)
		   AND created_at >= ?
		   AND created_at < ?`,
		userID,
		storydomain.ContentTypeStory,
		storydomain.GenerationStatusComplete,
		storydomain.GenerationStatusTextComplete,
		from.UTC(),
		to.UTC(),
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) SetPaywallLocked(ctx context.Context, id snowflake.ID, locked bool) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE stories
		 SET paywall_locked = ?, updated_at = ?
		 WHERE id = ?`,
		locked,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storydomain.ErrStoryNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id snowflake.ID, status storydomain.GenerationStatus) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE stories
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storydomain.ErrStoryNotFound
	}
	return nil
}
