package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// Billing glue handlers. These are invoked by the payment webhook processor
// after charges settle, never directly by the app.

type grantCreditsRequest struct {
	Credits int `json:"credits"`
}

func (s *Server) GrantCredits(c *gin.Context) {
	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID := strings.TrimSpace(c.Param("user_id"))
	if err := s.trackerSvc.AddCredits(c.Request.Context(), userID, req.Credits); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type recordPurchaseRequest struct {
	StoryID string `json:"story_id"`
}

// RecordPurchase handles a single-story unlock: the purchased-slot counter
// moves and the story itself is released from the paywall.
func (s *Server) RecordPurchase(c *gin.Context) {
	var req recordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	storyID, err := snowflake.ParseString(strings.TrimSpace(req.StoryID))
	if err != nil {
		AbortWithError(c, fmt.Errorf("parse story id: %w", storydomain.ErrInvalidStory))
		return
	}

	userID := strings.TrimSpace(c.Param("user_id"))
	total, err := s.trackerSvc.RecordStoryPurchase(c.Request.Context(), userID, storyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchased_stories": total})
}

type activateSubscriptionRequest struct {
	TierID   string     `json:"tier_id"`
	StartsAt *time.Time `json:"starts_at"`
}

// ActivateSubscription records a new subscription. StartsAt anchors the
// user's billing cycle and defaults to the moment the webhook lands.
func (s *Server) ActivateSubscription(c *gin.Context) {
	var req activateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startsAt := time.Now().UTC()
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	}

	userID := strings.TrimSpace(c.Param("user_id"))
	if err := s.trackerSvc.ActivateSubscription(c.Request.Context(), userID, strings.TrimSpace(req.TierID), startsAt); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
