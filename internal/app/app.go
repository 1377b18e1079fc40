package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/adapter/repository/postgres"
	"github.com/mailflow/mailflow/internal/adapter/smtp"
	"github.com/mailflow/mailflow/internal/adapter/storage/local"
	"github.com/mailflow/mailflow/internal/api"
	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/mailer"
	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/domain/storage"
	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/internal/queue"
	"github.com/mailflow/mailflow/internal/queue/rabbitmq"
	"github.com/mailflow/mailflow/internal/recipients"
	"github.com/mailflow/mailflow/internal/reconciler"
	"github.com/mailflow/mailflow/internal/templates"
	"github.com/mailflow/mailflow/internal/usecase/dispatch"
	"github.com/mailflow/mailflow/internal/worker"
	"github.com/mailflow/mailflow/pkg/db"
	zaplog "github.com/mailflow/mailflow/pkg/log"
	"github.com/mailflow/mailflow/pkg/snowflake"
	"github.com/mailflow/mailflow/sql/migrations"
)

// RunServer starts the HTTP API and the background reconciler.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,
			newQueueConfig,

			// Broker
			rabbitmq.NewClient,
			fx.Annotate(
				rabbitmq.NewPublisher,
				fx.As(new(queue.Publisher)),
			),

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				postgres.NewTemplateRepository,
				fx.As(new(template.Repository)),
			),
			fx.Annotate(
				postgres.NewRecipientRepository,
				fx.As(new(recipient.Repository)),
			),
			fx.Annotate(
				postgres.NewDeliveryRepository,
				fx.As(new(delivery.Repository)),
			),
			newFileStore,

			// Use Cases & Services
			newDispatchUseCase,
			templates.NewService,
			recipients.NewService,
			reconciler.NewRetryReconciler,

			// API
			api.NewRouter,
		),
		db.Module,        // Database Module
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerServerHooks),
	)

	app.Run()
}

// RunWorker starts the queue consumer that performs deliveries.
func RunWorker() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,
			newQueueConfig,

			// Broker
			rabbitmq.NewClient,
			fx.Annotate(
				rabbitmq.NewPublisher,
				fx.As(new(queue.Publisher)),
			),
			fx.Annotate(
				rabbitmq.NewConsumer,
				fx.As(new(queue.Consumer)),
			),

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				postgres.NewDeliveryRepository,
				fx.As(new(delivery.Repository)),
			),
			fx.Annotate(
				smtp.NewSender,
				fx.As(new(mailer.Sender)),
			),
			newFileStore,

			// Worker
			newWorker,
		),
		db.Module,        // Database Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerWorkerHooks),
	)

	app.Run()
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied successfully")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied successfully")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerServerHooks(lc fx.Lifecycle, router *api.Router, retryReconciler *reconciler.RetryReconciler, client *rabbitmq.Client, cfg *config.Config, logger *zap.Logger) {
	var reconcilerCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			reconcilerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			reconcilerCancel = cancel
			go retryReconciler.Run(reconcilerCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if reconcilerCancel != nil {
				reconcilerCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			if err := client.Close(); err != nil {
				logger.Error("Broker connection close failed", zap.Error(err))
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}

func registerWorkerHooks(lc fx.Lifecycle, w *worker.Worker, client *rabbitmq.Client, shutdowner fx.Shutdowner, logger *zap.Logger) {
	var workerCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting delivery worker")

			workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			workerCancel = cancel
			go func() {
				if err := w.Run(workerCtx); err != nil && workerCtx.Err() == nil {
					logger.Error("Worker stopped unexpectedly", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down delivery worker gracefully...")

			if workerCancel != nil {
				workerCancel()
			}

			if err := client.Close(); err != nil {
				logger.Error("Broker connection close failed", zap.Error(err))
			}

			logger.Info("Delivery worker stopped gracefully")
			return nil
		},
	})
}

// newQueueConfig maps the environment configuration onto broker topology.
func newQueueConfig(cfg *config.Config) rabbitmq.Config {
	return rabbitmq.Config{
		URL:           cfg.AMQPURL(),
		Exchange:      cfg.ExchangeName,
		Queue:         cfg.QueueName,
		RoutingKey:    cfg.RoutingKey,
		PrefetchCount: cfg.PrefetchCount,
		WorkerCount:   cfg.ConsumerWorkers,
	}
}

func newFileStore(cfg *config.Config, logger *zap.Logger) (storage.FileStore, error) {
	return local.NewStore(cfg.StorageBasePath, logger)
}

func newDispatchUseCase(
	cfg *config.Config,
	tpls template.Repository,
	rcps recipient.Repository,
	logs delivery.Repository,
	publisher queue.Publisher,
	files storage.FileStore,
	logger *zap.Logger,
) *dispatch.UseCase {
	return dispatch.NewUseCase(tpls, rcps, logs, publisher, files, logger, cfg.MaxAttempts)
}

func newWorker(
	cfg *config.Config,
	logs delivery.Repository,
	sender mailer.Sender,
	files storage.FileStore,
	publisher queue.Publisher,
	consumer queue.Consumer,
	logger *zap.Logger,
) *worker.Worker {
	return worker.New(logs, sender, files, publisher, consumer, logger, time.Duration(cfg.RetryDelaySeconds)*time.Second)
}
