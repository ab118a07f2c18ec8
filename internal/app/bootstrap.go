package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/config"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/repository"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/service"
	"github.com/Mastero4ek/bull-diary-sub002/internal/exchange"
	ws "github.com/Mastero4ek/bull-diary-sub002/internal/handlers/websocket"
	redisrepo "github.com/Mastero4ek/bull-diary-sub002/internal/infrastructure/cache"
	"github.com/Mastero4ek/bull-diary-sub002/internal/infrastructure/queue"
	pgrepo "github.com/Mastero4ek/bull-diary-sub002/internal/infrastructure/storage"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config      *config.Config
	Logger      *slog.Logger
	Storage     *pgrepo.PostgresRepository
	Cache       repository.AggregateCache
	Registry    *exchange.Registry
	Progress    *service.ProgressTracker
	Broadcaster *ws.ProgressBroadcaster
	SyncService *service.SyncService
	Producer    queue.SyncEventProducer // nil when Kafka is not configured
}

// NewApp initializes the app context with all dependencies.
// Postgres is required; Redis and Kafka degrade to disabled-cache and
// no-events respectively when unavailable.
func NewApp(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*AppContext, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &AppContext{Config: cfg, Logger: logger}

	// Durable store: the engine cannot run without it.
	storage, err := pgrepo.NewPostgresRepository(ctx, pgrepo.PostgresConfig{
		DSN:      cfg.PostgresDSN,
		MinConns: cfg.PostgresMinConns,
		MaxConns: cfg.PostgresMaxConns,
		Timeout:  cfg.PostgresTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	app.Storage = storage
	logger.Info("Postgres storage initialized")

	// Cache: constructed unconditionally, disables itself if unreachable.
	app.Cache = redisrepo.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	logger.Info("Redis cache initialized")

	// Exchange adapters, resolved once at startup.
	retry := exchange.DefaultRetryPolicy(time.Duration(cfg.SyncRetryBaseDelayMs) * time.Millisecond)
	retry.MaxAttempts = cfg.SyncRetryMaxAttempts
	app.Registry = exchange.NewRegistry(
		exchange.NewBybitAdapter(cfg.BybitBaseURL, retry, logger),
		exchange.NewMexcAdapter(cfg.MexcBaseURL, retry, logger),
		exchange.NewBinanceAdapter(cfg.BinanceBaseURL, retry, logger),
	)
	logger.Info("exchange adapters registered", "exchanges", app.Registry.Names())

	// Progress tracking with WebSocket fan-out.
	app.Progress = service.NewProgressTracker()
	app.Broadcaster = ws.NewProgressBroadcaster(logger)
	app.Progress.SetListener(app.Broadcaster.BroadcastProgress)

	// Kafka sync events are optional.
	if len(cfg.KafkaBrokers) > 0 {
		app.Producer = queue.NewKafkaSyncProducer(queue.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		logger.Info("Kafka sync-event producer initialized", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("Kafka not configured, sync events disabled")
	}

	resolver := service.NewCredentialResolver(storage, nil)
	app.SyncService = service.NewSyncService(
		app.Registry,
		resolver,
		storage,
		storage,
		app.Cache,
		app.Progress,
		app.Producer,
		time.Duration(cfg.ProgressClearDelaySec)*time.Second,
		logger,
	)
	logger.Info("sync service initialized")

	return app, nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.Producer != nil {
		a.Logger.Info("Closing Kafka producer...")
		if err := a.Producer.Close(); err != nil {
			a.Logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if a.Storage != nil {
		a.Logger.Info("Closing Postgres pool...")
		a.Storage.Close()
	}

	a.Logger.Info("All resources cleaned up")
}
