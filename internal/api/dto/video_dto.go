package dto

import (
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

// Request defaults
const (
	DefaultResolution = "1920x1080"
	DefaultDuration   = 5
)

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Prompt     string `json:"prompt" binding:"required,min=1,max=1000"`
	Resolution string `json:"resolution" binding:"omitempty,oneof=1920x1080 1280x720 1080x1920"`
	Duration   *int   `json:"duration" binding:"omitempty,min=1,max=30"`
}

// ToDomain fills in defaults for omitted fields
func (r *GenerateRequest) ToDomain() domain.Request {
	req := domain.Request{
		Prompt:     r.Prompt,
		Resolution: r.Resolution,
		Duration:   DefaultDuration,
	}
	if req.Resolution == "" {
		req.Resolution = DefaultResolution
	}
	if r.Duration != nil {
		req.Duration = *r.Duration
	}
	return req
}

// GenerateResponse returns the id of the queued job
type GenerateResponse struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

// VideoStatusResponse is the job snapshot served by the status endpoint
type VideoStatusResponse struct {
	VideoID       string `json:"video_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	VideoURL      string `json:"video_url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// NewVideoStatusResponse maps a job snapshot onto the status read model
func NewVideoStatusResponse(job domain.Job) VideoStatusResponse {
	return VideoStatusResponse{
		VideoID:       job.ID,
		Status:        string(job.State),
		Progress:      job.Progress,
		VideoURL:      job.ResultURL,
		RevisedPrompt: job.RevisedPrompt,
		ErrorMessage:  job.ErrorMessage,
	}
}

// ListVideosRequest holds the query parameters of GET /api/videos
type ListVideosRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListVideosResponse is one page of jobs, newest first
type ListVideosResponse struct {
	Videos     []VideoDTO `json:"videos"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// VideoDTO is a job in a list page, with its request fields
type VideoDTO struct {
	VideoStatusResponse
	Prompt     string `json:"prompt"`
	Resolution string `json:"resolution"`
	Duration   int    `json:"duration"`
	CreatedAt  string `json:"created_at"`
}

// NewVideoDTO maps a job snapshot onto a listing entry
func NewVideoDTO(job domain.Job) VideoDTO {
	return VideoDTO{
		VideoStatusResponse: NewVideoStatusResponse(job),
		Prompt:              job.Prompt,
		Resolution:          job.Resolution,
		Duration:            job.Duration,
		CreatedAt:           job.CreatedAt.Format(time.RFC3339),
	}
}

// CleanupResponse reports the result of a retention pass
type CleanupResponse struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
