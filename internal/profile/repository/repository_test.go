package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRepository(t *testing.T) (profiledomain.Repository, *gorm.DB) {
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
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.AutoMigrate(&profiledomain.UserProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewRepository(RepositoryParam{DB: db, Log: zap.NewNop()})
	return repo, db
}

func seedProfile(t *testing.T, repo profiledomain.Repository, userID string, credits int) {
	t.Helper()
	err := repo.Create(context.Background(), &profiledomain.UserProfile{
		UserID:            userID,
		GenerationCredits: credits,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestConsumeCreditNeverGoesNegative(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	userID := "5f6d9a1e-0000-4000-8000-000000000001"
	seedProfile(t, repo, userID, 2)

	for i := 0; i < 2; i++ {
		ok, err := repo.ConsumeCredit(ctx, userID)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("consume %d: expected credit available", i)
		}
	}

	ok, err := repo.ConsumeCredit(ctx, userID)
	if err != nil {
		t.Fatalf("consume exhausted: %v", err)
	}
	if ok {
		t.Fatal("expected consume to report exhausted credits")
	}

	profile, err := repo.FindByID(ctx, userID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile.GenerationCredits != 0 {
		t.Fatalf("expected 0 credits, got %d", profile.GenerationCredits)
	}
}

func TestConsumeCreditConcurrent(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	userID := "5f6d9a1e-0000-4000-8000-000000000002"
	seedProfile(t, repo, userID, 5)

	var wg sync.WaitGroup
	granted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeCredit(ctx, userID)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	consumed := 0
	for ok := range granted {
		if ok {
			consumed++
		}
	}
	if consumed != 5 {
		t.Fatalf("expected exactly 5 consumed credits, got %d", consumed)
	}

	profile, err := repo.FindByID(ctx, userID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile.GenerationCredits != 0 {
		t.Fatalf("expected 0 credits after concurrent consume, got %d", profile.GenerationCredits)
	}
}

func TestMarkFreeTrialUsedIdempotent(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	userID := "5f6d9a1e-0000-4000-8000-000000000003"
	seedProfile(t, repo, userID, 0)

	for i := 0; i < 2; i++ {
		if err := repo.MarkFreeTrialUsed(ctx, userID); err != nil {
			t.Fatalf("mark trial %d: %v", i, err)
		}
		profile, err := repo.FindByID(ctx, userID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if !profile.FreeTrialUsed {
			t.Fatalf("expected trial flag set after call %d", i)
		}
	}
}

func TestMarkFreeTrialUsedMissingProfile(t *testing.T) {
	repo, _ := setupRepository(t)

	err := repo.MarkFreeTrialUsed(context.Background(), "5f6d9a1e-0000-4000-8000-00000000dead")
	if !errors.Is(err, profiledomain.ErrProfileNotFound) {
		t.Fatalf("expected profile_not_found, got %v", err)
	}
}

func TestIncrementStoryCountReturnsNewValue(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	userID := "5f6d9a1e-0000-4000-8000-000000000004"
	seedProfile(t, repo, userID, 0)

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementStoryCount(ctx, userID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
}

func TestActivateSubscriptionResetsStoryCount(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	userID := "5f6d9a1e-0000-4000-8000-000000000005"
	seedProfile(t, repo, userID, 0)

	for i := 0; i < 4; i++ {
		if _, err := repo.IncrementStoryCount(ctx, userID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	startsAt := time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)
	if err := repo.ActivateSubscription(ctx, userID, "stories_plus", startsAt); err != nil {
		t.Fatalf("activate: %v", err)
	}

	profile, err := repo.FindByID(ctx, userID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile.TotalStoriesGenerated != 0 {
		t.Fatalf("expected reset counter, got %d", profile.TotalStoriesGenerated)
	}
	if profile.SubscriptionStatus != profiledomain.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", profile.SubscriptionStatus)
	}
	if profile.SubscriptionTierID == nil || *profile.SubscriptionTierID != "stories_plus" {
		t.Fatalf("unexpected tier: %v", profile.SubscriptionTierID)
	}
	if profile.SubscriptionStartsAt == nil || !profile.SubscriptionStartsAt.Equal(startsAt) {
		t.Fatalf("unexpected starts_at: %v", profile.SubscriptionStartsAt)
	}
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	repo, _ := setupRepository(t)

	profile, err := repo.FindByID(context.Background(), "5f6d9a1e-0000-4000-8000-00000000beef")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile, got %+v", profile)
	}
}
