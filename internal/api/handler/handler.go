package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

// ServiceName is reported by the health endpoints
const ServiceName = "azure-openai-sora"

// VideoTracker is the job tracker as seen by the HTTP layer
type VideoTracker interface {
	Submit(ctx context.Context, req domain.Request) (string, error)
	GetStatus(id string) (domain.Job, bool)
	List() []domain.Job
	Cleanup() (removed int, remaining int, err error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Tracker VideoTracker
}

// VideoHandler handles video generation HTTP requests
type VideoHandler struct {
	logger  *slog.Logger
	tracker VideoTracker
}

// NewVideoHandler creates a new VideoHandler instance
func NewVideoHandler(deps *Dependencies) *VideoHandler {
	return &VideoHandler{
		logger:  deps.Logger,
		tracker: deps.Tracker,
	}
}
