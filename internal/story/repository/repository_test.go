package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupRepository(t *testing.T) storydomain.Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := db.AutoMigrate(&storydomain.Story{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewRepository(RepositoryParam{DB: db, Log: zap.NewNop()})
}

func seedStory(t *testing.T, repo storydomain.Repository, node *snowflake.Node, userID string, status storydomain.GenerationStatus, createdAt time.Time) snowflake.ID {
	t.Helper()
	story := &storydomain.Story{
		ID:        node.Generate(),
		UserID:    userID,
		Status:    status,
		CreatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), story); err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story.ID
}

func TestCountCompletedInWindow(t *testing.T) {
	repo := setupRepository(t)
	node := mustNode(t)
	ctx := context.Background()
	userID := "9a1b2c3d-0000-4000-8000-000000000001"

	from := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	// Inside the window, counted.
	seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, from.Add(24*time.Hour))
	seedStory(t, repo, node, userID, storydomain.GenerationStatusTextComplete, from.Add(48*time.Hour))
	// Failed attempts never count.
	seedStory(t, repo, node, userID, storydomain.GenerationStatusFailed, from.Add(72*time.Hour))
	// Boundary: created exactly at cycle end is outside [from, to).
	seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, to)
	// Before the window.
	seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, from.Add(-time.Hour))
	// Other users never count.
	seedStory(t, repo, node, "9a1b2c3d-0000-4000-8000-00000000ffff", storydomain.GenerationStatusComplete, from.Add(24*time.Hour))

	count, err := repo.CountCompletedInWindow(ctx, userID, from, to)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 completed stories in window, got %d", count)
	}
}

func TestCountIncludesCycleStartBoundary(t *testing.T) {
	repo := setupRepository(t)
	node := mustNode(t)
	userID := "9a1b2c3d-0000-4000-8000-000000000002"

	from := time.Date(2024, time.May, 10, 14, 30, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, from)

	count, err := repo.CountCompletedInWindow(context.Background(), userID, from, to)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected story at cycle start to count, got %d", count)
	}
}

func TestSetPaywallLocked(t *testing.T) {
	repo := setupRepository(t)
	node := mustNode(t)
	ctx := context.Background()
	userID := "9a1b2c3d-0000-4000-8000-000000000003"

	id := seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, time.Now().UTC())

	if err := repo.SetPaywallLocked(ctx, id, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	story, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !story.PaywallLocked {
		t.Fatal("expected story locked")
	}

	if err := repo.SetPaywallLocked(ctx, id, false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	story, err = repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if story.PaywallLocked {
		t.Fatal("expected story unlocked")
	}
}

func TestListPaginates(t *testing.T) {
	repo := setupRepository(t)
	node := mustNode(t)
	ctx := context.Background()
	userID := "9a1b2c3d-0000-4000-8000-000000000004"

	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedStory(t, repo, node, userID, storydomain.GenerationStatusComplete, base.Add(time.Duration(i)*time.Hour))
	}

	first, err := repo.List(ctx, storydomain.ListStoriesRequest{UserID: userID, PageSize: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Stories) != 3 {
		t.Fatalf("expected 3 stories, got %d", len(first.Stories))
	}
	if !first.HasMore || first.NextPageToken == "" {
		t.Fatalf("expected more pages, got %+v", first.PageInfo)
	}

	second, err := repo.List(ctx, storydomain.ListStoriesRequest{
		UserID:    userID,
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Stories) != 2 {
		t.Fatalf("expected 2 stories on second page, got %d", len(second.Stories))
	}
	if second.HasMore {
		t.Fatal("expected final page")
	}

	seen := map[snowflake.ID]struct{}{}
	for _, s := range append(first.Stories, second.Stories...) {
		if _, dup := seen[s.ID]; dup {
			t.Fatalf("story %s returned twice", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
}
