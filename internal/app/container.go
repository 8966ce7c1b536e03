// Package app wires the application's dependencies.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
	"github.com/tidewell/podwatch/internal/coverage/application/queries"
	"github.com/tidewell/podwatch/internal/coverage/application/services"
	"github.com/tidewell/podwatch/internal/coverage/application/subscribers"
	"github.com/tidewell/podwatch/internal/coverage/application/workers"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	coveragePersistence "github.com/tidewell/podwatch/internal/coverage/infrastructure/persistence"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/notify"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/snapshot"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/eventbus"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/migrations"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/tidewell/podwatch/internal/shared/infrastructure/persistence"
	"github.com/tidewell/podwatch/pkg/config"
	"github.com/tidewell/podwatch/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics

	// Database
	DB       *pgxpool.Pool
	SQLiteDB *sql.DB

	// Redis
	RedisClient *redis.Client

	// Repositories
	GapRepo    domain.GapRepository
	OutboxRepo outbox.Repository

	// Shift data source
	ShiftProvider application.ShiftSnapshotProvider

	// Publishers
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Notification
	Notifier application.Notifier

	// Detection
	Detector    *services.Detector
	SweepWorker *workers.SweepWorker

	// Command Handlers
	NotifyGapHandler   *commands.NotifyGapHandler
	DispatchGapHandler *commands.DispatchGapHandler
	CoverGapHandler    *commands.CoverGapHandler
	CancelGapHandler   *commands.CancelGapHandler

	// Query Handlers
	GetActiveGapsHandler *queries.GetActiveGapsHandler

	// Event Subscribers
	EscalationSubscriber *subscribers.EscalationSubscriber

	// Outbox Processor
	OutboxProcessor *outbox.Processor
}

// NewContainer creates and wires all dependencies. Production mode runs on
// PostgreSQL, Redis and RabbitMQ; when no DATABASE_URL is configured the
// container falls back to the local stack (SQLite, in-process bus).
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg.UseLocalStack() {
		return NewLocalContainer(ctx, cfg, logger)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NoopMetrics{},
	}

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.DB = pool
	logger.Info("connected to database")

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Connect to Redis (optional; detection works without the shift cache)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				pool.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, shift cache disabled", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					pool.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, shift cache disabled", "error", err)
			} else {
				c.RedisClient = redisClient
				logger.Info("connected to Redis")
			}
		}
	}

	// Create repositories
	c.GapRepo = coveragePersistence.NewPostgresGapRepository(pool)
	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)

	// Create the shift data source, cached when Redis is available
	var provider application.ShiftSnapshotProvider = snapshot.NewPostgresShiftProvider(pool)
	if c.RedisClient != nil {
		ttl := cfg.EffectiveShiftCacheTTL()
		if ttl != cfg.ShiftCacheTTL {
			logger.Warn("shift cache TTL capped below sweep interval",
				"configured_ttl", cfg.ShiftCacheTTL,
				"effective_ttl", ttl,
				"sweep_interval", cfg.SweepInterval,
			)
		}
		provider = snapshot.NewCachedShiftProvider(provider, c.RedisClient, ttl, logger)
	}
	c.ShiftProvider = provider

	// Create event publisher
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		// Fall back to noop publisher in development
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = publisher
	}

	// Create notifier: AMQP delivery behind a circuit breaker
	breakerConfig := notify.DefaultBreakerConfig()
	breakerConfig.FailureThreshold = uint32(cfg.NotifierFailureThreshold)
	breakerConfig.Timeout = cfg.NotifierBreakerTimeout
	c.Notifier = notify.NewBreakerNotifier(notify.NewAMQPNotifier(c.EventPublisher), breakerConfig, logger)

	c.wireCoverage(cfg, logger)

	return c, nil
}

// NewLocalContainer creates a container for local mode with SQLite. This
// provides zero-config operation without PostgreSQL, Redis, or RabbitMQ.
// Shifts come from an in-memory fixture provider.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Serialized access avoids SQLITE_BUSY under the sweep + command mix.
	db.SetMaxOpenConns(1)

	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	c.SQLiteDB = db

	c.GapRepo = coveragePersistence.NewSQLiteGapRepository(db)
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)
	c.ShiftProvider = snapshot.NewFixtureShiftProvider()

	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Metrics, logger)
	c.EventPublisher = c.InProcessEventBus
	c.Notifier = notify.NewLogNotifier(logger)

	c.wireCoverage(cfg, logger)

	// Auto-notify pod leads as soon as the detector publishes a gap
	c.EscalationSubscriber = subscribers.NewEscalationSubscriber(c.NotifyGapHandler, logger)
	c.EscalationSubscriber.SetEnabled(cfg.AutoNotifyEnabled)
	c.InProcessEventBus.RegisterConsumer(c.EscalationSubscriber)

	logger.Info("local mode container initialized",
		"database", cfg.SQLitePath,
		"driver", "sqlite",
	)

	return c, nil
}

// wireCoverage builds the detection, workflow and query layers on top of the
// repositories and collaborators chosen by the mode-specific constructors.
func (c *Container) wireCoverage(cfg *config.Config, logger *slog.Logger) {
	c.Detector = services.NewDetector(c.ShiftProvider, c.GapRepo, c.OutboxRepo, c.UnitOfWork, c.Metrics, logger)

	c.NotifyGapHandler = commands.NewNotifyGapHandler(c.GapRepo, c.OutboxRepo, c.UnitOfWork, c.Notifier, c.Metrics, logger)
	c.DispatchGapHandler = commands.NewDispatchGapHandler(c.GapRepo, c.OutboxRepo, c.UnitOfWork, c.Metrics)
	c.CoverGapHandler = commands.NewCoverGapHandler(c.GapRepo, c.OutboxRepo, c.UnitOfWork, c.Metrics)
	c.CancelGapHandler = commands.NewCancelGapHandler(c.GapRepo, c.OutboxRepo, c.UnitOfWork, c.Metrics)

	c.GetActiveGapsHandler = queries.NewGetActiveGapsHandler(c.GapRepo)

	c.SweepWorker = workers.NewSweepWorker(c.Detector, workers.SweepWorkerConfig{
		Interval:        cfg.SweepInterval,
		OrganizationIDs: cfg.OrganizationIDs,
	}, c.Metrics, logger)

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, c.Metrics, logger)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.SweepWorker != nil && c.SweepWorker.IsRunning() {
		c.SweepWorker.Stop()
		c.Logger.Info("sweep worker stopped")
	}

	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("PostgreSQL connection closed")
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		}
	}
}
