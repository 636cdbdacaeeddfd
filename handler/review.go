package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/middleware"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/service"
)

// defaultPageSize bounds List responses when the client sends no limit
const defaultPageSize = 10

type ReviewHandler struct {
	processor *service.ReviewProcessor
	store     service.ReviewStore
	stats     *service.StatsAggregator
}

func NewReviewHandler(processor *service.ReviewProcessor, store service.ReviewStore, stats *service.StatsAggregator) *ReviewHandler {
	return &ReviewHandler{
		processor: processor,
		store:     store,
		stats:     stats,
	}
}

type CreateReviewRequest struct {
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// Create accepts a code snippet and schedules its review. The response is
// the pending submission; a deduplicated submission comes back completed.
func (h *ReviewHandler) Create(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language and code are required"})
		return
	}

	userID := middleware.GetUsername(c)
	sub, err := h.processor.Submit(c.Request.Context(), req.Language, req.Code, c.ClientIP(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create review"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Get returns the current snapshot of one submission
func (h *ReviewHandler) Get(c *gin.Context) {
	sub, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load review"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// parseFilter reads the shared query filter (language, status, date range)
func parseFilter(c *gin.Context) service.ListFilter {
	filter := service.ListFilter{
		Language: c.Query("language"),
		Status:   c.Query("status"),
	}
	if v := c.Query("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = ts
		}
	}
	if v := c.Query("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = ts
		}
	}
	return filter
}

// List returns submissions newest first, filtered and paged
func (h *ReviewHandler) List(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if skip < 0 {
		skip = 0
	}

	subs, err := h.store.List(c.Request.Context(), parseFilter(c), skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": subs, "skip": skip, "limit": limit})
}

// Stats returns aggregate metrics over stored submissions
func (h *ReviewHandler) Stats(c *gin.Context) {
	summary, err := h.stats.Compute(c.Request.Context(), parseFilter(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
