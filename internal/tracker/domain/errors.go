package domain

import "errors"

var (
	// ErrValidation is returned when a request is rejected before it reaches the tracker
	ErrValidation = errors.New("invalid request")

	// ErrTransport is returned on connection, timeout or decoding faults talking to the provider
	ErrTransport = errors.New("provider transport error")

	// ErrProviderRejected is returned when the provider answers with a non-success status
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrMissingOutput is returned when the provider reports success without a usable result
	ErrMissingOutput = errors.New("no outputs in completed job")

	// ErrUnknownProviderState is returned when the provider reports an unrecognized status
	ErrUnknownProviderState = errors.New("unknown job status")

	// ErrTimeout is returned when the poll attempt ceiling is exceeded
	ErrTimeout = errors.New("job did not complete within timeout")

	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("video job not found")

	// ErrJobTerminal is returned when an update targets a job that already finished
	ErrJobTerminal = errors.New("job already in terminal state")

	// ErrQueueFull is returned when the worker queue cannot accept another job
	ErrQueueFull = errors.New("job queue is full")

	// ErrTrackerStopped is returned when submitting to a tracker that is shutting down
	ErrTrackerStopped = errors.New("tracker is stopped")
)

// ProviderError carries the provider's own failure message for a job
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return "video generation failed: " + e.Message
}
