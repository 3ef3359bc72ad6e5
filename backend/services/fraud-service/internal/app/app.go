package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "chargeguard/backend/libs/db"
	libredis "chargeguard/backend/libs/redis"
	"chargeguard/backend/services/fraud-service/internal/clients"
	"chargeguard/backend/services/fraud-service/internal/config"
	httpserver "chargeguard/backend/services/fraud-service/internal/http"
	"chargeguard/backend/services/fraud-service/internal/http/handlers"
	"chargeguard/backend/services/fraud-service/internal/http/middleware"
	redisstore "chargeguard/backend/services/fraud-service/internal/redis"
	"chargeguard/backend/services/fraud-service/internal/repository"
	"chargeguard/backend/services/fraud-service/internal/service"
	"chargeguard/backend/services/fraud-service/internal/thresholds"
	"chargeguard/backend/services/fraud-service/internal/verdict"
	"chargeguard/backend/services/fraud-service/internal/ws"
	"chargeguard/backend/services/fraud-service/migrations"
)

// App wires fraud-service dependencies.
type App struct {
	server      *httpserver.Server
	hub         *ws.Hub
	detection   *service.DetectionService
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. ctx bounds websocket subscriptions.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	if err := a.init(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config) error {
	logger := a.logger

	sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN, cfg.Database.Pool)
	if err != nil {
		return fmt.Errorf("app: connect postgres: %w", err)
	}
	a.db = sqlDB

	if cfg.Database.MigrateOnStart {
		if err := migrations.Up(ctx, sqlDB); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	store := repository.NewPostgresStore(sqlDB)
	registry := thresholds.NewRegistry(store, logger)
	aggregator := verdict.NewAggregator(store, logger)

	a.hub = ws.NewHub(cfg.WS.PingInterval, logger)
	opts := []service.DetectionOption{
		service.WithPublisher(a.hub),
		service.WithParallelism(cfg.Detection.Parallelism),
	}

	if cfg.Redis.Enabled() {
		client, err := libredis.NewRedisClient(ctx, cfg.Redis.Options)
		if err != nil {
			return fmt.Errorf("app: connect redis: %w", err)
		}
		a.redisClient = client
		opts = append(opts,
			service.WithRunLock(redisstore.NewRunLock(client, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL)),
			service.WithReportCache(redisstore.NewReportStore(client, cfg.Redis.KeyPrefix, cfg.Redis.ReportTTL)),
		)
	} else {
		logger.Warn("redis not configured; detection runs are not locked across replicas")
	}

	a.detection = service.NewDetectionService(store, registry, aggregator, logger, opts...)
	query := service.NewQueryService(store, logger)
	decisions := service.NewDecisionService(store, store, logger)
	geocoder := clients.NewGeocoderClient(
		cfg.Geocoder.URL,
		cfg.Geocoder.UserAgent,
		cfg.Geocoder.Interval,
		clients.NewDefaultHTTPClient(cfg.Geocoder.Timeout),
	)
	locations := service.NewLocationService(store, geocoder, logger, service.WithRetryAfter(cfg.Geocoder.RetryAfter))

	runFeed := ws.NewServer(ctx, a.hub, cfg.WS.WriteTimeout, logger)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		FraudHandlers:    handlers.NewFraudHandlers(a.detection, query, registry, logger),
		DecisionHandlers: handlers.NewDecisionHandlers(decisions, logger),
		LocationHandlers: handlers.NewLocationHandlers(locations, logger),
		HealthHandler:    handlers.NewHealthHandler(store),
		RunFeedHandler:   runFeed.HandleWS,
	}, middleware.AuthMiddleware(cfg.JWT.Secret))

	a.server = httpserver.NewServer(
		httpserver.ServerOptions{
			Addr:              cfg.HTTPAddress(),
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
			ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
		},
		router,
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	return nil
}

// Detection exposes the run orchestrator for one-shot commands.
func (a *App) Detection() *service.DetectionService {
	return a.detection
}

// Run starts the websocket keepalive loop and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
