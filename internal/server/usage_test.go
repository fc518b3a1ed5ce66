package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/benjask5360/tuckandtale/internal/config"
	"github.com/benjask5360/tuckandtale/internal/genlock"
	profiledomain "github.com/benjask5360/tuckandtale/internal/profile/domain"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	trackerdomain "github.com/benjask5360/tuckandtale/internal/tracker/domain"
	usagedomain "github.com/benjask5360/tuckandtale/internal/usagelimits/domain"
	"gorm.io/gorm"
)

const testUserID = "c0ffee00-0000-4000-8000-000000000003"

type fakeUsageService struct {
	decision     usagedomain.Decision
	decisionErr  error
	lastGenerate struct {
		userID               string
		includeIllustrations bool
	}

	result       usagedomain.IncrementUsageResult
	incrementErr error
	lastRequest  usagedomain.IncrementUsageRequest

	stats    usagedomain.UsageStats
	statsErr error
}

func (f *fakeUsageService) CanGenerate(ctx context.Context, userID string, includeIllustrations bool) (usagedomain.Decision, error) {
	_ = ctx
	f.lastGenerate.userID = userID
	f.lastGenerate.includeIllustrations = includeIllustrations
	return f.decision, f.decisionErr
}

func (f *fakeUsageService) IncrementUsage(ctx context.Context, req usagedomain.IncrementUsageRequest) (usagedomain.IncrementUsageResult, error) {
	_ = ctx
	f.lastRequest = req
	return f.result, f.incrementErr
}

func (f *fakeUsageService) GetUsageStats(ctx context.Context, userID string) (usagedomain.UsageStats, error) {
	_ = ctx
	_ = userID
	return f.stats, f.statsErr
}

type fakeTrackerService struct {
	behavior     trackerdomain.PaywallBehavior
	behaviorErr  error
	creditsErr   error
	lastCredits  int
	purchased    int
	purchaseErr  error
	lastStoryID  snowflake.ID
	activateErr  error
	lastTierID   string
	lastStartsAt time.Time
}

func (f *fakeTrackerService) GetPaywallBehavior(ctx context.Context, userID string, includeIllustrations bool) (trackerdomain.PaywallBehavior, error) {
	_ = ctx
	_ = userID
	_ = includeIllustrations
	return f.behavior, f.behaviorErr
}

func (f *fakeTrackerService) IncrementStoryCount(ctx context.Context, userID string) (int, error) {
	_ = ctx
	_ = userID
	return 0, nil
}

func (f *fakeTrackerService) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	_ = ctx
	_ = userID
	return false, nil
}

func (f *fakeTrackerService) MarkFreeTrialUsed(ctx context.Context, userID string) error {
	_ = ctx
	_ = userID
	return nil
}

func (f *fakeTrackerService) AddCredits(ctx context.Context, userID string, amount int) error {
	_ = ctx
	_ = userID
	f.lastCredits = amount
	return f.creditsErr
}

func (f *fakeTrackerService) RecordStoryPurchase(ctx context.Context, userID string, storyID snowflake.ID) (int, error) {
	_ = ctx
	_ = userID
	f.lastStoryID = storyID
	return f.purchased, f.purchaseErr
}

func (f *fakeTrackerService) ActivateSubscription(ctx context.Context, userID, tierID string, startsAt time.Time) error {
	_ = ctx
	_ = userID
	f.lastTierID = tierID
	f.lastStartsAt = startsAt
	return f.activateErr
}

type fakeStoryRepo struct {
	created   *storydomain.Story
	createErr error
	list      storydomain.ListStoriesResponse
	listErr   error
	lastList  storydomain.ListStoriesRequest
}

func (f *fakeStoryRepo) Create(ctx context.Context, story *storydomain.Story) error {
	_ = ctx
	if f.createErr != nil {
		return f.createErr
	}
	f.created = story
	return nil
}

func (f *fakeStoryRepo) FindByID(ctx context.Context, id snowflake.ID) (*storydomain.Story, error) {
	_ = ctx
	_ = id
	return nil, storydomain.ErrStoryNotFound
}

func (f *fakeStoryRepo) List(ctx context.Context, req storydomain.ListStoriesRequest) (storydomain.ListStoriesResponse, error) {
	_ = ctx
	f.lastList = req
	return f.list, f.listErr
}

func (f *fakeStoryRepo) CountCompletedInWindow(ctx context.Context, userID string, from, to time.Time) (int, error) {
	_ = ctx
	_ = userID
	_ = from
	_ = to
	return 0, nil
}

func (f *fakeStoryRepo) SetPaywallLocked(ctx context.Context, id snowflake.ID, locked bool) error {
	_ = ctx
	_ = id
	_ = locked
	return nil
}

func (f *fakeStoryRepo) UpdateStatus(ctx context.Context, id snowflake.ID, status storydomain.GenerationStatus) error {
	_ = ctx
	_ = id
	_ = status
	return nil
}

func newTestServer(t *testing.T, usage *fakeUsageService, tracker *fakeTrackerService, stories *fakeStoryRepo) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	srv := &Server{
		cfg:        config.Config{},
		genID:      node,
		trackerSvc: tracker,
		usageSvc:   usage,
		storyRepo:  stories,
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.registerUserRoutes()

	return srv, router
}

func TestGenerationAllowanceAllowed(t *testing.T) {
	usage := &fakeUsageService{
		decision: usagedomain.Decision{
			Allowed: true,
			Behavior: trackerdomain.PaywallBehavior{
				StoryNumber: 1,
				Behavior:    trackerdomain.BehaviorFree,
				CanGenerate: true,
			},
		},
	}
	_, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+testUserID+"/generation-allowance?include_illustrations=true", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var decision usagedomain.Decision
	if err := json.Unmarshal(resp.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected allowed decision")
	}
	if usage.lastGenerate.userID != testUserID {
		t.Fatalf("expected user %s, got %s", testUserID, usage.lastGenerate.userID)
	}
	if !usage.lastGenerate.includeIllustrations {
		t.Fatal("expected include_illustrations to be forwarded")
	}
}

func TestGenerationAllowanceDenied(t *testing.T) {
	usage := &fakeUsageService{
		decision: usagedomain.Decision{
			Allowed: false,
			Reason:  usagedomain.ReasonSubscriptionLimitReached,
		},
	}
	_, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+testUserID+"/generation-allowance", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var decision usagedomain.Decision
	if err := json.Unmarshal(resp.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denied decision")
	}
	if decision.Reason != usagedomain.ReasonSubscriptionLimitReached {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestGenerationAllowanceLockHeldReturnsConflict(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Config{
		GenLock: config.GenLockConfig{
			Enabled:      true,
			RedisAddr:    mr.Addr(),
			TTLSeconds:   10,
			AttemptRate:  100,
			AttemptBurst: 100,
		},
	}
	guard, err := genlock.NewGenerationGuard(cfg)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}

	usage := &fakeUsageService{decision: usagedomain.Decision{Allowed: true}}
	srv, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})
	srv.guard = guard

	// Simulate an in-flight request holding the lock.
	if _, ok, err := guard.TryLock(context.Background(), testUserID); err != nil || !ok {
		t.Fatalf("seed lock: ok=%v err=%v", ok, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+testUserID+"/generation-allowance", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRecordUsageForwardsRequest(t *testing.T) {
	usage := &fakeUsageService{
		result: usagedomain.IncrementUsageResult{NewStoryCount: 2, ShouldMarkPaywall: true},
	}
	_, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})

	body := bytes.NewBufferString(`{"story_id":"1234567890123456789","include_illustrations":true,"used_credit":false}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/usage", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if usage.lastRequest.UserID != testUserID {
		t.Fatalf("expected user %s, got %s", testUserID, usage.lastRequest.UserID)
	}
	if usage.lastRequest.StoryID != snowflake.ID(1234567890123456789) {
		t.Fatalf("unexpected story id %d", usage.lastRequest.StoryID)
	}
	if !usage.lastRequest.IncludeIllustrations {
		t.Fatal("expected include_illustrations to be forwarded")
	}

	var result usagedomain.IncrementUsageResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.NewStoryCount != 2 || !result.ShouldMarkPaywall {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRecordUsageAllowsAbsentStoryID(t *testing.T) {
	usage := &fakeUsageService{
		result: usagedomain.IncrementUsageResult{NewStoryCount: 1},
	}
	_, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})

	body := bytes.NewBufferString(`{"include_illustrations":false}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/usage", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if usage.lastRequest.StoryID != 0 {
		t.Fatalf("expected zero story id, got %d", usage.lastRequest.StoryID)
	}
}

func TestRecordUsageRejectsBadStoryID(t *testing.T) {
	_, router := newTestServer(t, &fakeUsageService{}, &fakeTrackerService{}, &fakeStoryRepo{})

	body := bytes.NewBufferString(`{"story_id":"not-a-snowflake"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/usage", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGetUsageMissingProfileReturns404(t *testing.T) {
	usage := &fakeUsageService{statsErr: profiledomain.ErrProfileNotFound}
	_, router := newTestServer(t, usage, &fakeTrackerService{}, &fakeStoryRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+testUserID+"/usage", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestGrantCreditsInvalidAmountReturns400(t *testing.T) {
	tracker := &fakeTrackerService{creditsErr: profiledomain.ErrInvalidCredits}
	_, router := newTestServer(t, &fakeUsageService{}, tracker, &fakeStoryRepo{})

	body := bytes.NewBufferString(`{"credits":-5}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/credits", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRecordPurchaseReturnsPurchasedTotal(t *testing.T) {
	tracker := &fakeTrackerService{purchased: 3}
	_, router := newTestServer(t, &fakeUsageService{}, tracker, &fakeStoryRepo{})

	body := bytes.NewBufferString(`{"story_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/purchases", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if tracker.lastStoryID != snowflake.ID(42) {
		t.Fatalf("unexpected story id %d", tracker.lastStoryID)
	}
}

func TestCreateStoryDuplicateKeyReturnsConflict(t *testing.T) {
	stories := &fakeStoryRepo{createErr: gorm.ErrDuplicatedKey}
	_, router := newTestServer(t, &fakeUsageService{}, &fakeTrackerService{}, stories)

	body := bytes.NewBufferString(`{"title":"The Sleepy Fox"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/stories", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateStoryAssignsID(t *testing.T) {
	stories := &fakeStoryRepo{}
	_, router := newTestServer(t, &fakeUsageService{}, &fakeTrackerService{}, stories)

	body := bytes.NewBufferString(`{"title":"The Sleepy Fox","include_illustrations":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+testUserID+"/stories", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if stories.created == nil {
		t.Fatal("expected story to be created")
	}
	if stories.created.ID == 0 {
		t.Fatal("expected a generated story id")
	}
	if stories.created.Status != storydomain.GenerationStatusPending {
		t.Fatalf("unexpected status %q", stories.created.Status)
	}
}
