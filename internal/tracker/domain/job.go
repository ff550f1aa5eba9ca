package domain

import "time"

// Job is one tracked video generation job
type Job struct {
	ID            string
	State         State
	Progress      int
	ResultURL     string
	RevisedPrompt string
	ErrorMessage  string

	Prompt      string
	Resolution  string
	Duration    int
	RemoteJobID string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Request holds the already-validated input for a new job
type Request struct {
	Prompt     string
	Resolution string
	Duration   int
}

// NewJob creates a pending job for the given request
func NewJob(id string, req Request, now time.Time) *Job {
	return &Job{
		ID:         id,
		State:      StatePending,
		Progress:   ProgressQueued,
		Prompt:     req.Prompt,
		Resolution: req.Resolution,
		Duration:   req.Duration,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Complete moves the job to completed with the produced artifact URL
func (j *Job) Complete(resultURL, revisedPrompt string, now time.Time) {
	j.State = StateCompleted
	j.Progress = ProgressDone
	j.ResultURL = resultURL
	j.RevisedPrompt = revisedPrompt
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = now
}

// Fail moves the job to failed, keeping the last known progress
func (j *Job) Fail(err error, now time.Time) {
	j.State = StateFailed
	j.ResultURL = ""
	j.ErrorMessage = err.Error()
	j.UpdatedAt = now
	j.CompletedAt = now
}
