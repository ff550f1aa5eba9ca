// Package archive consumes job completion events and writes them to the
// PostgreSQL audit table.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultConcurrency  = 4
	DefaultWriteTimeout = 10 * time.Second
	DefaultConsumerTag  = "video-archive"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Repository persists finished jobs
type Repository interface {
	SaveJob(ctx context.Context, ev events.JobFinished) (bool, error)
}

// Source delivers raw event messages; *rabbitmq.Client satisfies it
type Source interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds archiver configuration
type Config struct {
	Logger       *slog.Logger
	Repository   Repository
	Source       Source
	Concurrency  int
	WriteTimeout time.Duration
	ConsumerTag  string
}

// Archiver fans deliveries out to a fixed pool of writers
type Archiver struct {
	logger       *slog.Logger
	repo         Repository
	source       Source
	concurrency  int
	writeTimeout time.Duration
	consumerTag  string

	jobsChan chan amqp.Delivery
	wg       sync.WaitGroup
}

// New creates a new archiver instance
func New(cfg *Config) *Archiver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	tag := cfg.ConsumerTag
	if tag == "" {
		tag = DefaultConsumerTag
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Archiver{
		logger:       logger,
		repo:         cfg.Repository,
		source:       cfg.Source,
		concurrency:  concurrency,
		writeTimeout: writeTimeout,
		consumerTag:  tag,
		jobsChan:     make(chan amqp.Delivery),
	}
}

// Run consumes until ctx is canceled or the broker closes the channel. It
// returns once every in-flight write has been acknowledged.
func (a *Archiver) Run(ctx context.Context) error {
	deliveries, err := a.source.Consume(a.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	a.logger.Info("Starting archiver",
		slog.Int("concurrency", a.concurrency),
		slog.String("consumer_tag", a.consumerTag),
	)

	a.spawnWorkerPool(ctx)

	err = a.dispatch(ctx, deliveries)

	close(a.jobsChan)
	a.wg.Wait()

	a.logger.Info("Archiver stopped")
	return err
}

// dispatch hands each delivery to an idle worker
func (a *Archiver) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				a.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}

			select {
			case a.jobsChan <- delivery:
			case <-ctx.Done():
				if err := delivery.Nack(false, true); err != nil {
					a.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", err.Error()),
					)
				}
				return nil
			}
		}
	}
}
