// Package events carries terminal video job outcomes between the API service
// and the archive service over RabbitMQ.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/google/uuid"
)

// ContentType is the content type of every published event
const ContentType = "application/json"

// ErrInvalidEvent is returned by Decode for messages that can never be archived
var ErrInvalidEvent = errors.New("invalid job event")

// JobFinished is the payload published when a job reaches a terminal state
type JobFinished struct {
	VideoID       string     `json:"video_id"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	VideoURL      string     `json:"video_url,omitempty"`
	RevisedPrompt string     `json:"revised_prompt,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	RemoteJobID   string     `json:"remote_job_id,omitempty"`
	Prompt        string     `json:"prompt"`
	Resolution    string     `json:"resolution"`
	Duration      int        `json:"duration"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// FromJob maps a job record onto its event payload
func FromJob(job domain.Job) JobFinished {
	ev := JobFinished{
		VideoID:       job.ID,
		Status:        string(job.State),
		Progress:      job.Progress,
		VideoURL:      job.ResultURL,
		RevisedPrompt: job.RevisedPrompt,
		ErrorMessage:  job.ErrorMessage,
		RemoteJobID:   job.RemoteJobID,
		Prompt:        job.Prompt,
		Resolution:    job.Resolution,
		Duration:      job.Duration,
		CreatedAt:     job.CreatedAt.UTC(),
	}
	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt.UTC()
		ev.CompletedAt = &completed
	}
	return ev
}

// Decode parses and validates a published event
func Decode(body []byte) (JobFinished, error) {
	var ev JobFinished
	if err := json.Unmarshal(body, &ev); err != nil {
		return JobFinished{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if _, err := uuid.Parse(ev.VideoID); err != nil {
		return JobFinished{}, fmt.Errorf("%w: video_id %q is not a UUID", ErrInvalidEvent, ev.VideoID)
	}

	if !domain.State(ev.Status).IsTerminal() {
		return JobFinished{}, fmt.Errorf("%w: status %q is not terminal", ErrInvalidEvent, ev.Status)
	}

	return ev, nil
}
