package server

import (
	"net/http"
	"strconv"
	"strings"

	storydomain "github.com/benjask5360/tuckandtale/internal/story/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListStories(c *gin.Context) {
	pageSize := 0
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be a non-negative integer"))
			return
		}
		pageSize = parsed
	}

	resp, err := s.storyRepo.List(c.Request.Context(), storydomain.ListStoriesRequest{
		UserID:    strings.TrimSpace(c.Param("user_id")),
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type createStoryRequest struct {
	Title                string `json:"title"`
	IncludeIllustrations bool   `json:"include_illustrations"`
}

// CreateStory registers a pending story row before the generation pipeline
// starts so that the completion callback has an id to report against.
func (s *Server) CreateStory(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	story := &storydomain.Story{
		ID:                   s.genID.Generate(),
		UserID:               strings.TrimSpace(c.Param("user_id")),
		ContentType:          storydomain.ContentTypeStory,
		Status:               storydomain.GenerationStatusPending,
		IncludeIllustrations: req.IncludeIllustrations,
		Title:                strings.TrimSpace(req.Title),
	}

	if err := s.storyRepo.Create(c.Request.Context(), story); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, story)
}
