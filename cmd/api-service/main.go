package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/api/handler"
	"github.com/cuongbtq/video-gen-service/internal/api/router"
	"github.com/cuongbtq/video-gen-service/internal/config"
	"github.com/cuongbtq/video-gen-service/internal/events"
	"github.com/cuongbtq/video-gen-service/internal/provider/sora"
	"github.com/cuongbtq/video-gen-service/internal/tracker"
	"github.com/cuongbtq/video-gen-service/internal/tracker/storage"
	"github.com/cuongbtq/video-gen-service/shared/logger"
	"github.com/cuongbtq/video-gen-service/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	soraClient := sora.NewClient(sora.Config{
		Endpoint:   cfg.Provider.Endpoint,
		APIKey:     cfg.Provider.APIKey,
		APIVersion: cfg.Provider.APIVersion,
		Model:      cfg.Provider.Model,
		Timeout:    cfg.Provider.Timeout,
		Logger:     appLogger.Logger,
	})

	trackerCfg := &tracker.Config{
		Logger:        appLogger.Logger,
		Store:         store,
		Client:        soraClient,
		Concurrency:   cfg.Tracker.Concurrency,
		QueueSize:     cfg.Tracker.QueueSize,
		MaxStoredJobs: cfg.Tracker.MaxStoredJobs,
		PollPolicy: tracker.PollPolicy{
			Interval:          cfg.Tracker.PollInterval,
			MaxAttempts:       cfg.Tracker.PollMaxAttempts,
			BackoffMultiplier: cfg.Tracker.BackoffMultiplier,
			MaxInterval:       cfg.Tracker.MaxPollInterval,
		},
	}

	var rabbitClient *rabbitmq.Client
	if cfg.Events.Enabled {
		rabbitClient, err = initRabbitMQ(ctx, &cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		trackerCfg.Notifier = events.NewPublisher(rabbitClient, appLogger.Logger)
		appLogger.Info("Completion events enabled",
			slog.String("exchange", cfg.RabbitMQ.Exchange.Name),
		)
	}

	// The pool outlives the signal context so in-flight jobs are only
	// canceled by Stop, after the HTTP server has drained.
	jobTracker := tracker.New(trackerCfg)
	jobTracker.Start(context.Background())

	r := initRouter(cfg.App.Environment, appLogger.Logger, jobTracker)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return jobTracker.RunCleanup(gctx, cfg.Tracker.CleanupInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, jobTracker, cfg, appLogger.Logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("API service shutdown complete")
	return nil
}

// shutdown drains HTTP first, then stops the tracker and applies retention once more
func shutdown(srv *http.Server, jobTracker *tracker.Tracker, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Shutting down server...")

	serverCtx, cancel := context.WithTimeout(context.Background(), orDefault(cfg.Server.ShutdownTimeout))
	defer cancel()

	var errs []error
	if err := srv.Shutdown(serverCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
		errs = append(errs, err)
	}

	logger.Info("Stopping job tracker",
		slog.Int("queued_jobs", jobTracker.QueueDepth()),
	)

	trackerCtx, cancelTracker := context.WithTimeout(context.Background(), orDefault(cfg.Tracker.ShutdownTimeout))
	defer cancelTracker()

	if err := jobTracker.Stop(trackerCtx); err != nil {
		errs = append(errs, err)
	}

	if _, _, err := jobTracker.Cleanup(); err != nil {
		logger.Error("Final cleanup failed", slog.Any("error", err))
	}

	return errors.Join(errs...)
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultShutdownTimeout
	}
	return d
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initRabbitMQ connects the completion event publisher
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(ctx, &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PublishOnly:        true,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, jobTracker handler.VideoTracker) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:  logger,
		Tracker: jobTracker,
	})
}
