package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/benjask5360/tuckandtale/internal/cloudmetrics"
	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	usagedomain "github.com/benjask5360/tuckandtale/internal/usagelimits/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetGenerationAllowance answers "may this user generate a story right now".
// The app calls it when the user taps generate, before any pipeline work.
func (s *Server) GetGenerationAllowance(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	includeIllustrations := parseBoolQuery(c, "include_illustrations")

	ctx := c.Request.Context()

	if s.guard.Enabled() {
		allowed, retryAfter, err := s.guard.AllowAttempt(ctx, userID)
		if err != nil {
			// Redis being down must not block story generation.
			zap.L().Warn("generation attempt limiter unavailable", zap.Error(err))
		} else if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"type":    "rate_limited",
					"message": "too many generation attempts, slow down",
				},
			})
			return
		}

		token, ok, err := s.guard.TryLock(ctx, userID)
		if err != nil {
			zap.L().Warn("generation lock unavailable", zap.Error(err))
		} else if !ok {
			AbortWithError(c, ErrGenerationInProgress)
			return
		} else {
			defer func() {
				if releaseErr := s.guard.Release(ctx, userID, token); releaseErr != nil {
					zap.L().Warn("generation lock release failed", zap.Error(releaseErr))
				}
			}()
		}
	}

	decision, err := s.usageSvc.CanGenerate(ctx, userID, includeIllustrations)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if decision.Allowed {
		cloudmetrics.RecordStoryGenerated(string(decision.Behavior.Behavior))
	} else {
		cloudmetrics.RecordPaywallHit(string(decision.Reason))
	}

	c.JSON(http.StatusOK, decision)
}

type recordUsageRequest struct {
	StoryID              string `json:"story_id"`
	IncludeIllustrations bool   `json:"include_illustrations"`
	UsedCredit           bool   `json:"used_credit"`
}

// RecordUsage runs once per completed story. It moves the lifetime counter,
// spends a credit when one was promised, and flips paywall state.
func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// story_id is optional: without it the counters still move, there is
	// just no story row to complete or view-gate.
	var storyID snowflake.ID
	if raw := strings.TrimSpace(req.StoryID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("parse story id: %w", storydomain.ErrInvalidStory))
			return
		}
		storyID = parsed
	}

	result, err := s.usageSvc.IncrementUsage(c.Request.Context(), usagedomain.IncrementUsageRequest{
		UserID:               strings.TrimSpace(c.Param("user_id")),
		IncludeIllustrations: req.IncludeIllustrations,
		UsedCredit:           req.UsedCredit,
		StoryID:              storyID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetUsage(c *gin.Context) {
	stats, err := s.usageSvc.GetUsageStats(c.Request.Context(), strings.TrimSpace(c.Param("user_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetPaywallBehavior exposes the raw classification without the quota
// check, for screens that only need to know which gate to render.
func (s *Server) GetPaywallBehavior(c *gin.Context) {
	behavior, err := s.trackerSvc.GetPaywallBehavior(
		c.Request.Context(),
		strings.TrimSpace(c.Param("user_id")),
		parseBoolQuery(c, "include_illustrations"),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, behavior)
}

func parseBoolQuery(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return false
	}
	return v
}
