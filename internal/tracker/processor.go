package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/provider/sora"
	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
)

// notifyTimeout bounds the completion hook, which may run after shutdown began.
const notifyTimeout = 5 * time.Second

// result is what a successful remote job produced
type result struct {
	url           string
	revisedPrompt string
}

// processJob drives a single job from pending to a terminal state. Every
// failure is recorded on the job; nothing propagates to the worker.
func (t *Tracker) processJob(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Job driver panicked",
				slog.String("video_id", id),
				slog.Any("panic", r),
			)
			t.finish(ctx, id, func(j *domain.Job) {
				j.Fail(fmt.Errorf("internal error: %v", r), t.clock.Now())
			})
		}
	}()

	// Step 1: pending -> processing
	job, err := t.store.Update(id, func(j *domain.Job) error {
		j.State = domain.StateProcessing
		j.Progress = domain.ProgressSubmitted
		j.UpdatedAt = t.clock.Now()
		return nil
	})
	if err != nil {
		t.logger.Error("Failed to start job",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	// Step 2: one submission attempt, no retries
	remoteID, err := t.client.Submit(ctx, sora.SubmitRequest{
		Prompt:     job.Prompt,
		Resolution: job.Resolution,
		Duration:   job.Duration,
	})
	if err != nil {
		t.failJob(ctx, id, err)
		return
	}

	if _, err := t.store.Update(id, func(j *domain.Job) error {
		j.RemoteJobID = remoteID
		j.UpdatedAt = t.clock.Now()
		return nil
	}); err != nil {
		t.logger.Warn("Failed to record remote job id",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
	}

	t.logger.Info("Job submitted to provider",
		slog.String("video_id", id),
		slog.String("remote_job_id", remoteID),
	)

	// Step 3: poll to conclusion
	res, err := t.pollUntilDone(ctx, id, remoteID)
	if err != nil {
		t.failJob(ctx, id, err)
		return
	}

	t.finish(ctx, id, func(j *domain.Job) {
		j.Complete(res.url, res.revisedPrompt, t.clock.Now())
	})

	t.logger.Info("Job completed successfully",
		slog.String("video_id", id),
		slog.String("video_url", res.url),
	)
}

// pollUntilDone polls the remote job until it succeeds, fails or the attempt
// ceiling is reached. Progress stays at the submitted milestone while waiting.
func (t *Tracker) pollUntilDone(ctx context.Context, id, remoteID string) (result, error) {
	for attempt := 0; attempt < t.pollPolicy.MaxAttempts; attempt++ {
		snap, err := t.client.Poll(ctx, remoteID)
		if err != nil {
			return result{}, err
		}

		switch snap.Status {
		case sora.StatusSucceeded:
			if len(snap.Outputs) == 0 || snap.Outputs[0].URL == "" {
				return result{}, domain.ErrMissingOutput
			}
			return result{url: snap.Outputs[0].URL, revisedPrompt: snap.RevisedPrompt}, nil

		case sora.StatusFailed:
			return result{}, &domain.ProviderError{Message: snap.ErrorMessage}

		case sora.StatusPending, sora.StatusRunning:
			t.logger.Debug("Remote job still running",
				slog.String("video_id", id),
				slog.String("status", string(snap.Status)),
				slog.Int("attempt", attempt+1),
			)

		default:
			return result{}, fmt.Errorf("%w: %q", domain.ErrUnknownProviderState, snap.Status)
		}

		select {
		case <-ctx.Done():
			return result{}, fmt.Errorf("job abandoned: %w", ctx.Err())
		case <-t.clock.After(t.pollPolicy.Delay(attempt)):
		}
	}

	return result{}, fmt.Errorf("%w after %d attempts", domain.ErrTimeout, t.pollPolicy.MaxAttempts)
}

func (t *Tracker) failJob(ctx context.Context, id string, cause error) {
	level := slog.LevelError
	if errors.Is(cause, context.Canceled) {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "Job execution failed",
		slog.String("video_id", id),
		slog.String("error", cause.Error()),
	)

	t.finish(ctx, id, func(j *domain.Job) {
		j.Fail(cause, t.clock.Now())
	})
}

// finish applies a terminal transition and hands the final record to the notifier.
func (t *Tracker) finish(ctx context.Context, id string, apply func(j *domain.Job)) {
	job, err := t.store.Update(id, func(j *domain.Job) error {
		apply(j)
		return nil
	})
	if err != nil {
		t.logger.Error("Failed to update job status",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	if t.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := t.notifier.JobFinished(notifyCtx, job); err != nil {
		t.logger.Warn("Failed to publish job completion",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
	}
}
