// Package tracker runs video generation jobs against the remote provider in
// the background and answers status queries from the in-memory job table.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/provider/sora"
	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/cuongbtq/video-gen-service/internal/tracker/storage"
	"github.com/google/uuid"
)

// Pool defaults used when Config leaves them unset.
const (
	// DefaultConcurrency is the number of driver goroutines
	DefaultConcurrency = 10
	// DefaultQueueSize bounds the submissions waiting for a driver
	DefaultQueueSize = 100
)

// RemoteClient is the provider boundary the drivers call into
type RemoteClient interface {
	Submit(ctx context.Context, req sora.SubmitRequest) (string, error)
	Poll(ctx context.Context, remoteJobID string) (sora.Snapshot, error)
}

// Notifier is told about every job that reaches a terminal state
type Notifier interface {
	JobFinished(ctx context.Context, job domain.Job) error
}

// Config holds tracker configuration
type Config struct {
	Logger        *slog.Logger
	Store         *storage.Store
	Client        RemoteClient
	Notifier      Notifier
	Clock         Clock
	Concurrency   int
	QueueSize     int
	MaxStoredJobs int
	PollPolicy    PollPolicy
	NewID         func() string
}

// Tracker owns the job table and the pool of background drivers
type Tracker struct {
	logger        *slog.Logger
	store         *storage.Store
	client        RemoteClient
	notifier      Notifier
	clock         Clock
	concurrency   int
	maxStoredJobs int
	pollPolicy    PollPolicy
	newID         func() string

	jobsChan chan string
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// New creates a new tracker instance. Workers are not running until Start.
func New(cfg *Config) *Tracker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	maxStored := cfg.MaxStoredJobs
	if maxStored <= 0 {
		maxStored = storage.DefaultMaxSize
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		logger:        logger,
		store:         cfg.Store,
		client:        cfg.Client,
		notifier:      cfg.Notifier,
		clock:         clock,
		concurrency:   concurrency,
		maxStoredJobs: maxStored,
		pollPolicy:    cfg.PollPolicy.withDefaults(),
		newID:         newID,
		jobsChan:      make(chan string, queueSize),
		stopChan:      make(chan struct{}),
	}
}

// Start spawns the worker pool. The pool stops when ctx is canceled or Stop is called.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.spawnWorkerPool(ctx)
}

// Stop rejects new submissions, cancels in-flight drivers and waits for the
// workers to exit or ctx to expire. Queued jobs that never started are failed.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	close(t.stopChan)
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	t.logger.Info("Stopping tracker...")

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn("Tracker shutdown timeout exceeded, abandoning in-flight jobs")
		return fmt.Errorf("tracker shutdown: %w", ctx.Err())
	}

	t.abandonQueued()
	t.logger.Info("Tracker stopped")
	return nil
}

// Submit records a pending job and queues it for a background driver. It
// never waits on the provider; provider failures surface later as a failed job.
func (t *Tracker) Submit(ctx context.Context, req domain.Request) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped {
		return "", domain.ErrTrackerStopped
	}

	id := t.newID()
	job := domain.NewJob(id, req, t.clock.Now())
	if err := t.store.Put(job); err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}

	select {
	case t.jobsChan <- id:
	default:
		if err := t.store.Delete(id); err != nil {
			t.logger.Error("Failed to remove rejected job",
				slog.String("video_id", id),
				slog.String("error", err.Error()),
			)
		}
		t.logger.Warn("Job queue full, rejecting submission",
			slog.Int("queue_size", cap(t.jobsChan)),
		)
		return "", domain.ErrQueueFull
	}

	t.logger.Info("Video job queued",
		slog.String("video_id", id),
		slog.String("resolution", req.Resolution),
		slog.Int("duration", req.Duration),
	)

	return id, nil
}

// GetStatus returns a snapshot of the job, or false when the id is unknown
func (t *Tracker) GetStatus(id string) (domain.Job, bool) {
	return t.store.Get(id)
}

// List returns all tracked jobs, newest first
func (t *Tracker) List() []domain.Job {
	return t.store.List()
}

// Cleanup evicts the oldest finished jobs above the retention cap and
// reports how many were removed and how many remain.
func (t *Tracker) Cleanup() (int, int, error) {
	removed, err := t.store.Evict(t.maxStoredJobs)
	if err != nil {
		return 0, 0, err
	}

	remaining := t.store.Len()
	if removed > 0 {
		t.logger.Info("Old video jobs cleaned up",
			slog.Int("removed", removed),
			slog.Int("remaining", remaining),
		)
	}
	return removed, remaining, nil
}

// RunCleanup calls Cleanup every interval until ctx is canceled
func (t *Tracker) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("cleanup interval must be greater than 0")
	}

	ticks, stop := t.clock.Tick(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			if _, _, err := t.Cleanup(); err != nil {
				t.logger.Error("Scheduled cleanup failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (t *Tracker) QueueDepth() int {
	return len(t.jobsChan)
}

// abandonQueued fails jobs still sitting in the queue after the pool stopped.
func (t *Tracker) abandonQueued() {
	for {
		select {
		case id := <-t.jobsChan:
			t.finish(context.Background(), id, func(j *domain.Job) {
				j.Fail(domain.ErrTrackerStopped, t.clock.Now())
			})
		default:
			return
		}
	}
}
