package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/video-gen-service/internal/api/dto"
	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Generate handles POST /api/generate
func (h *VideoHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid generate request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": err.Error(),
		})
		return
	}

	videoID, err := h.tracker.Submit(c.Request.Context(), req.ToDomain())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrTrackerStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"detail": err.Error(),
			})
		default:
			h.logger.Error("Failed to submit video job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"detail": "Failed to submit video job",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.GenerateResponse{
		VideoID: videoID,
		Status:  string(domain.StatePending),
	})
}

// GetStatus handles GET /api/status/:video_id
func (h *VideoHandler) GetStatus(c *gin.Context) {
	job, ok := h.tracker.GetStatus(c.Param("video_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Video job not found",
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewVideoStatusResponse(job))
}

// ListVideos handles GET /api/videos
// Newest first, with optional status filter and cursor pagination
func (h *VideoHandler) ListVideos(c *gin.Context) {
	var req dto.ListVideosRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": err.Error(),
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := decodeVideoCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid cursor",
		})
		return
	}

	jobs := h.tracker.List()
	if req.Status != "" {
		filtered := jobs[:0:0]
		for _, job := range jobs {
			if string(job.State) == req.Status {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	page, next := paginate(jobs, cursor, req.PageSize)

	resp := dto.ListVideosResponse{
		Videos: make([]dto.VideoDTO, 0, len(page)),
	}
	for _, job := range page {
		resp.Videos = append(resp.Videos, dto.NewVideoDTO(job))
	}
	if next != nil {
		resp.NextCursor = encodeVideoCursor(*next)
	}

	c.JSON(http.StatusOK, resp)
}

// Cleanup handles POST /api/cleanup
func (h *VideoHandler) Cleanup(c *gin.Context) {
	removed, remaining, err := h.tracker.Cleanup()
	if err != nil {
		h.logger.Error("Failed to clean up video jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Failed to clean up video jobs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{
		Removed:   removed,
		Remaining: remaining,
	})
}

// Health handles GET /health and GET /api/health
func (h *VideoHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
	})
}
