package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	httpAdapter "github.com/finbase/ledgermatch/internal/adapter/http"
	"github.com/finbase/ledgermatch/internal/adapter/http/handler"
	postgresRepo "github.com/finbase/ledgermatch/internal/adapter/repository/postgres"
	redisRepo "github.com/finbase/ledgermatch/internal/adapter/repository/redis"
	"github.com/finbase/ledgermatch/internal/infrastructure/config"
	"github.com/finbase/ledgermatch/internal/infrastructure/eventpublisher"
	"github.com/finbase/ledgermatch/internal/infrastructure/logger"
	"github.com/finbase/ledgermatch/internal/infrastructure/logging"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
	"github.com/finbase/ledgermatch/internal/infrastructure/postgres"
	"github.com/finbase/ledgermatch/internal/infrastructure/redis"
	"github.com/finbase/ledgermatch/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Process-level zerolog logger; library code uses slog below.
	zlog := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = zlog
	slogger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx := context.Background()

	// Run migrations
	if cfg.MigrationsPath != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Matching policies from configuration
	scoringPolicy := cfg.ScoringPolicy()
	routingPolicy, err := cfg.RoutingPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid routing configuration")
	}
	consistencyPolicy, err := cfg.ConsistencyPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid consistency configuration")
	}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	stmtRepo := postgresRepo.NewStatementRepository(pool)
	matchRepo := postgresRepo.NewMatchRepository(pool)
	runRepo := postgresRepo.NewRunRepository(pool)
	checkRepo := postgresRepo.NewCheckRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	cache := redisRepo.NewCache(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	m := metrics.New()

	// Initialize use cases
	retrier := postgresRepo.NewRetrier()
	accountUC := usecase.NewAccountUseCase(accountRepo, idGen)
	entryUC := usecase.NewEntryUseCase(txManager, entryRepo, accountRepo, idGen)
	ledgerUC := usecase.NewLedgerUseCase(txManager, entryRepo, accountRepo, ledgerRepo, outboxRepo, idGen).WithRetrier(retrier)
	stmtUC := usecase.NewStatementUseCase(txManager, stmtRepo, accountRepo, idGen, m)
	scorer := usecase.NewScoringEngine(scoringPolicy, consistencyPolicy)
	consistencyUC := usecase.NewConsistencyUseCase(
		txManager, matchRepo, checkRepo, ledgerRepo, outboxRepo,
		consistencyPolicy, idGen, m, slogger.Logger,
	)
	matcherUC := usecase.NewMatcherUseCase(
		txManager, matchRepo, stmtRepo, entryRepo, accountRepo, runRepo, outboxRepo,
		ledgerUC, consistencyUC, scorer, routingPolicy, idGen, m, slogger.Logger,
	)
	reviewUC := usecase.NewReviewUseCase(
		txManager, matchRepo, stmtRepo, checkRepo, outboxRepo,
		ledgerUC, consistencyPolicy, idGen, cache, m, slogger.Logger,
	).WithRetrier(retrier)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountUC)
	entryHandler := handler.NewEntryHandler(entryUC, ledgerUC)
	ledgerHandler := handler.NewLedgerHandler(ledgerUC)
	stmtHandler := handler.NewStatementHandler(stmtUC)
	reconHandler := handler.NewReconciliationHandler(matcherUC, reviewUC, matchRepo)
	consistencyHandler := handler.NewConsistencyHandler(consistencyUC)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:        accountHandler,
		EntryHandler:          entryHandler,
		LedgerHandler:         ledgerHandler,
		StatementHandler:      stmtHandler,
		ReconciliationHandler: reconHandler,
		ConsistencyHandler:    consistencyHandler,
		HealthHandler:         healthHandler,
		IdempotencyStore:      idempotencyStore,
		Logger:                zlog,
		RateLimitPerSecond:    cfg.RateLimitPerSecond,
		RateLimitBurst:        cfg.RateLimitBurst,
	})

	// Start the outbox publisher
	publisherCtx, stopPublisher := context.WithCancel(ctx)
	defer stopPublisher()
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(slogger.Logger),
		Logger:     slogger.Logger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := publisher.Start(publisherCtx); err != nil && publisherCtx.Err() == nil {
			log.Error().Err(err).Msg("outbox publisher stopped")
		}
	}()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopPublisher()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
