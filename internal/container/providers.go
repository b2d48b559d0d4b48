package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/dispatcher"
	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/service"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/event"
	"github.com/garyjia/travel-claims/internal/infrastructure/external/payout"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-claims/internal/infrastructure/storage"
	"github.com/garyjia/travel-claims/pkg/database"
	"github.com/garyjia/travel-claims/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds receipt storage components.
type StorageBundle struct {
	Blobs     port.BlobStore
	Inspector port.ReceiptInspector
}

// RateLimitBundle holds the limiter and, when counters live in redis, its client.
type RateLimitBundle struct {
	Limiter *limiter.Limiter
	Redis   *redis.Client
}

// ProvideDatabase applies pending migrations, then opens the connection pool
// and wraps it in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dbCfg := database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	sqlDB, err := database.Open(dbCfg, logger)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(dbCfg, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		TransactionMgr: sqlite.NewDB(sqlDB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Claim:   repository.NewClaimRepository(db, logger),
		History: repository.NewHistoryRepository(db, logger),
		Payout:  repository.NewPayoutRepository(db, logger),
	}, nil
}

// ProvideStorage creates the receipt blob store for the configured driver
// and the receipt inspector.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var blobs port.BlobStore
	switch cfg.Driver {
	case "local":
		blobs = storage.NewLocalBlobStore(cfg.LocalDir, logger)
	case "minio":
		store, err := storage.NewMinIOBlobStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		blobs = store
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	return &StorageBundle{
		Blobs:     blobs,
		Inspector: storage.NewReceiptInspector(int(cfg.MaxReceiptBytes), logger),
	}, nil
}

// ProvidePayoutGateway creates the payout collaborator: the simulated provider,
// optionally recorded in the xlsx ledger, with every call bounded by the timeout.
func ProvidePayoutGateway(cfg *PayoutConfig, logger *zap.Logger) (port.PayoutGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("payout config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var gateway port.PayoutGateway = payout.NewSimulatedGateway(logger, payout.WithFailure(cfg.SimulateFailure))
	if cfg.SimulateFailure {
		logger.Warn("Payout gateway configured to reject every payout")
	}
	if cfg.LedgerPath != "" {
		gateway = payout.NewLedgerGateway(gateway, cfg.LedgerPath, logger)
	}

	return payout.NewTimeoutGateway(gateway, cfg.Timeout), nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the activity log.
// Returns dispatcher.Dispatcher implementation.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKeyValueLogger(logger)),
	)
	d.SubscribeAll("activity_log", activityLogHandler(logger.Named("activity")))

	return d, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the claim workflow engine.
// Returns workflow.WorkflowEngine implementation.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return workflow.NewEngine(
		deps.Repos.Claim,
		deps.Repos.History,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(utils.NewKeyValueLogger(deps.Logger)),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Engine     workflow.WorkflowEngine
	Repos      *RepositoryBundle
	Storage    *StorageBundle
	Gateway    port.PayoutGateway
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
// Returns ServiceBundle containing all service implementations.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payout gateway is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKeyValueLogger(deps.Logger)

	return &ServiceBundle{
		Claims: service.NewClaimService(
			deps.Engine,
			deps.Repos.Claim,
			deps.Repos.History,
			deps.Storage.Blobs,
			deps.Storage.Inspector,
			serviceLogger,
		),
		Payouts: service.NewPayoutService(
			deps.Engine,
			deps.Repos.Claim,
			deps.Repos.Payout,
			deps.Gateway,
			deps.Dispatcher,
			serviceLogger,
		),
	}, nil
}

// ProvideRateLimiter creates the per-client limiter. Counters are kept in
// redis when a URL is configured, otherwise in process memory.
// Returns a nil bundle when rate limiting is disabled.
func ProvideRateLimiter(ctx context.Context, cfg *RateLimitConfig, logger *zap.Logger) (*RateLimitBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rate limit config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if !cfg.Enabled {
		logger.Info("Rate limiting disabled")
		return nil, nil
	}

	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", cfg.Rate, err)
	}

	if cfg.RedisURL == "" {
		logger.Info("Rate limiter using in-memory store", zap.String("rate", cfg.Rate))
		return &RateLimitBundle{Limiter: limiter.New(memory.NewStore(), rate)}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "travel-claims:ratelimit",
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}

	logger.Info("Rate limiter using redis store", zap.String("rate", cfg.Rate), zap.String("addr", opts.Addr))
	return &RateLimitBundle{Limiter: limiter.New(store, rate), Redis: client}, nil
}

// activityLogHandler writes one structured entry per claim event.
func activityLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt == nil {
			return fmt.Errorf("event cannot be nil")
		}

		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("claim_id", evt.ClaimID),
			zap.String("actor_id", evt.ActorID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Time("occurred_at", evt.Timestamp),
		}
		for k, v := range evt.Payload {
			fields = append(fields, zap.Any("payload."+k, v))
		}

		switch evt.Type {
		case event.TypePayoutFailed, event.TypeStatusOverridden:
			logger.Warn("Claim activity", fields...)
		default:
			logger.Info("Claim activity", fields...)
		}
		return nil
	}
}
