package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

// Sender is the broker side of the publisher; *rabbitmq.Client satisfies it
type Sender interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Publisher announces finished jobs on the broker
type Publisher struct {
	sender Sender
	logger *slog.Logger
}

// NewPublisher creates a publisher on top of sender
func NewPublisher(sender Sender, logger *slog.Logger) *Publisher {
	return &Publisher{sender: sender, logger: logger}
}

// JobFinished publishes the terminal record of job
func (p *Publisher) JobFinished(ctx context.Context, job domain.Job) error {
	if !job.State.IsTerminal() {
		return fmt.Errorf("job %s is not terminal: %s", job.ID, job.State)
	}

	body, err := json.Marshal(FromJob(job))
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	if err := p.sender.PublishWithRetry(ctx, body, ContentType); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("video_id", job.ID),
		slog.String("status", string(job.State)),
	)

	return nil
}
