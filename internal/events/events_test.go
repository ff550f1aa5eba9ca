package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	bodies       [][]byte
	contentTypes []string
	err          error
}

func (f *fakeSender) PublishWithRetry(_ context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	f.contentTypes = append(f.contentTypes, contentType)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedJob() domain.Job {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	job := domain.NewJob("6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10", domain.Request{
		Prompt:     "a fox in the snow",
		Resolution: "1280x720",
		Duration:   8,
	}, created)
	job.RemoteJobID = "task_01"
	job.Complete("https://cdn.example.com/v.mp4", "a red fox in fresh snow", created.Add(time.Minute))
	return *job
}

func TestFromJob(t *testing.T) {
	t.Run("completed job", func(t *testing.T) {
		job := completedJob()
		ev := FromJob(job)

		assert.Equal(t, job.ID, ev.VideoID)
		assert.Equal(t, "completed", ev.Status)
		assert.Equal(t, 100, ev.Progress)
		assert.Equal(t, "https://cdn.example.com/v.mp4", ev.VideoURL)
		assert.Equal(t, "a red fox in fresh snow", ev.RevisedPrompt)
		assert.Empty(t, ev.ErrorMessage)
		assert.Equal(t, "task_01", ev.RemoteJobID)
		assert.Equal(t, "1280x720", ev.Resolution)
		assert.Equal(t, 8, ev.Duration)
		require.NotNil(t, ev.CompletedAt)
		assert.Equal(t, job.CompletedAt, *ev.CompletedAt)
	})

	t.Run("failed job keeps progress", func(t *testing.T) {
		job := domain.NewJob("6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c11", domain.Request{Prompt: "p"}, time.Now())
		job.State = domain.StateProcessing
		job.Progress = domain.ProgressSubmitted
		job.Fail(&domain.ProviderError{Message: "policy violation"}, time.Now())

		ev := FromJob(*job)
		assert.Equal(t, "failed", ev.Status)
		assert.Equal(t, 25, ev.Progress)
		assert.Equal(t, "video generation failed: policy violation", ev.ErrorMessage)
		assert.Empty(t, ev.VideoURL)
	})

	t.Run("no completion time", func(t *testing.T) {
		job := domain.NewJob("id", domain.Request{}, time.Now())
		assert.Nil(t, FromJob(*job).CompletedAt)
	})
}

func TestDecode(t *testing.T) {
	valid, err := json.Marshal(FromJob(completedJob()))
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{name: "valid event", body: valid},
		{name: "malformed json", body: []byte(`{"video_id":`), wantErr: true},
		{name: "id is not a uuid", body: []byte(`{"video_id":"abc","status":"completed"}`), wantErr: true},
		{name: "non terminal status", body: []byte(`{"video_id":"6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10","status":"processing"}`), wantErr: true},
		{name: "missing status", body: []byte(`{"video_id":"6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10"}`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.body)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10", ev.VideoID)
			assert.Equal(t, "completed", ev.Status)
			require.NotNil(t, ev.CompletedAt)
		})
	}
}

func TestPublisher_JobFinished(t *testing.T) {
	t.Run("publishes json", func(t *testing.T) {
		sender := &fakeSender{}
		p := NewPublisher(sender, discardLogger())

		require.NoError(t, p.JobFinished(context.Background(), completedJob()))
		require.Len(t, sender.bodies, 1)
		assert.Equal(t, ContentType, sender.contentTypes[0])

		ev, err := Decode(sender.bodies[0])
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/v.mp4", ev.VideoURL)
	})

	t.Run("rejects non terminal job", func(t *testing.T) {
		sender := &fakeSender{}
		p := NewPublisher(sender, discardLogger())

		job := domain.NewJob("id", domain.Request{}, time.Now())
		require.Error(t, p.JobFinished(context.Background(), *job))
		assert.Empty(t, sender.bodies)
	})

	t.Run("wraps broker error", func(t *testing.T) {
		brokerErr := errors.New("channel closed")
		p := NewPublisher(&fakeSender{err: brokerErr}, discardLogger())

		err := p.JobFinished(context.Background(), completedJob())
		require.Error(t, err)
		assert.ErrorIs(t, err, brokerErr)
		assert.Contains(t, err.Error(), "failed to publish job event")
	})
}
