package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/video-gen-service/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// spawnWorkerPool spawns N writer goroutines based on concurrency configuration
func (a *Archiver) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < a.concurrency; i++ {
		a.wg.Add(1)
		go a.workerLoop(ctx, i)
	}
}

// workerLoop archives deliveries until the dispatcher closes jobsChan
func (a *Archiver) workerLoop(ctx context.Context, workerNum int) {
	defer a.wg.Done()

	workerName := fmt.Sprintf("archiver-%d", workerNum)

	for delivery := range a.jobsChan {
		err := a.processDelivery(ctx, delivery)
		if err == nil {
			if ackErr := delivery.Ack(false); ackErr != nil {
				a.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("error", ackErr.Error()),
				)
			}
			continue
		}

		requeue := shouldRequeue(err)
		a.logger.Error("Failed to archive message",
			slog.String("worker_name", workerName),
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)

		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			a.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("error", nackErr.Error()),
			)
		}
	}
}

// shouldRequeue keeps undecodable events out of the queue; anything else is
// treated as a transient database problem.
func shouldRequeue(err error) bool {
	return !errors.Is(err, events.ErrInvalidEvent)
}

// processDelivery decodes one event and writes it. Writes are detached from
// shutdown so an in-flight row is not lost halfway.
func (a *Archiver) processDelivery(ctx context.Context, delivery amqp.Delivery) error {
	ev, err := events.Decode(delivery.Body)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.writeTimeout)
	defer cancel()

	if _, err := a.repo.SaveJob(writeCtx, ev); err != nil {
		return fmt.Errorf("failed to archive video %s: %w", ev.VideoID, err)
	}

	return nil
}
