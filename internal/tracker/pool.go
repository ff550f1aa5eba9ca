package tracker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (t *Tracker) spawnWorkerPool(ctx context.Context) {
	t.logger.Info("Spawning worker pool",
		slog.Int("concurrency", t.concurrency),
		slog.Int("queue_size", cap(t.jobsChan)),
	)

	for i := 0; i < t.concurrency; i++ {
		t.wg.Add(1)
		go t.workerLoop(ctx, i)
	}
}

// workerLoop drives one job at a time until the pool is stopped
func (t *Tracker) workerLoop(ctx context.Context, workerNum int) {
	defer t.wg.Done()

	workerName := fmt.Sprintf("driver-%d", workerNum)
	t.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-t.stopChan:
			t.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			t.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case id := <-t.jobsChan:
			t.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("video_id", id),
			)

			t.processJob(ctx, id)
		}
	}
}
