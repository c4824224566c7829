package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/cashledger/internal/adapter/http"
	"github.com/iho/cashledger/internal/adapter/http/handler"
	"github.com/iho/cashledger/internal/adapter/http/middleware"
	"github.com/iho/cashledger/internal/adapter/rates"
	postgresRepo "github.com/iho/cashledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cashledger/internal/adapter/repository/redis"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/auth"
	"github.com/iho/cashledger/internal/infrastructure/config"
	"github.com/iho/cashledger/internal/infrastructure/eventpublisher"
	"github.com/iho/cashledger/internal/infrastructure/logger"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
	"github.com/iho/cashledger/internal/infrastructure/postgres"
	"github.com/iho/cashledger/internal/infrastructure/redis"
	"github.com/iho/cashledger/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "cashledger"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	pegs, err := cfg.Pegs()
	if err != nil {
		return err
	}
	epsilon, err := cfg.Epsilon()
	if err != nil {
		return err
	}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	repos := usecase.Repositories{
		Accounts:     postgresRepo.NewAccountRepository(pool),
		Balances:     postgresRepo.NewBalanceRepository(pool),
		Entries:      postgresRepo.NewEntryRepository(pool),
		Adjustments:  postgresRepo.NewAdjustmentRepository(pool),
		TransitLocks: postgresRepo.NewTransitLockRepository(pool),
		Outbox:       postgresRepo.NewOutboxRepository(pool),
		Audit:        postgresRepo.NewAuditRepository(pool),
	}
	rateRepo := postgresRepo.NewRateRepository(pool)
	operatorRepo := postgresRepo.NewOperatorRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(log).WithMetrics(m)

	// Rate feed: Postgres is the source, Redis and process memory cache it.
	rateProvider := rates.NewCachedProvider(rateRepo, redisRepo.NewCache(redisClient, "cashledger:"), rates.Config{
		LocalTTL:   cfg.RateLocalTTL,
		SharedTTL:  cfg.RateSharedTTL,
		StaleAfter: cfg.RateStaleAfter,
	}, m, log)
	refresher := rates.NewRefresher(rateProvider, rates.RefresherConfig{
		Currencies: cfg.RateCurrencies,
		Coins:      cfg.RateCoins,
		Interval:   cfg.RateRefresh,
	}, m, log)

	// Initialize use cases
	converter := usecase.NewConversionService(cfg.PivotCurrency, pegs)
	snapshots := usecase.NewSnapshotBuilder(rateProvider, cfg.PivotCurrency)

	accountUC := usecase.NewAccountUseCase(txManager, repos, idGen, m)
	entryUC := usecase.NewEntryUseCase(repos.Entries, repos.Adjustments)
	writeUC := usecase.NewLedgerWriteUseCase(txManager, repos, snapshots, converter, idGen, m, log).WithRetrier(retrier)
	reconciliationUC := usecase.NewReconciliationUseCase(txManager, repos, snapshots, converter, idGen, epsilon, m, log).WithRetrier(retrier)
	rateUC := usecase.NewRateUseCase(rateRepo, snapshots, converter, log).WithInvalidator(rateProvider)
	ledgerUC := usecase.NewLedgerUseCase(postgresRepo.NewLedgerRepository(pool))
	operatorUC := usecase.NewOperatorUseCase(operatorRepo, idGen)

	if _, err := accountUC.EnsureCashPool(ctx); err != nil {
		return fmt.Errorf("ensure cash pool: %w", err)
	}
	if input, ok := adminOperator(cfg); ok {
		if _, err := operatorUC.EnsureOperator(ctx, input); err != nil {
			return fmt.Errorf("ensure admin operator: %w", err)
		}
	}

	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePublisher(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()
	outbox := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: repos.Outbox,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     log,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	// Initialize handlers
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, m)
	healthHandler := handler.NewHealthHandler().
		WithCheck("postgres", pool.Ping).
		WithCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountUC),
		EntryHandler:          handler.NewEntryHandler(entryUC),
		MovementHandler:       handler.NewMovementHandler(writeUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		RateHandler:           handler.NewRateHandler(rateUC),
		LedgerHandler:         handler.NewLedgerHandler(ledgerUC),
		AuthHandler:           handler.NewAuthHandler(operatorUC, jwtManager, m),
		HealthHandler:         healthHandler,
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           limiter,
		Metrics:               m,
		MetricsHandler:        promhttp.Handler(),
		AllowedOrigins:        cfg.CORSAllowedOrigins,
		Logger:                log,
	}
	if cfg.AuthEnabled {
		if cfg.JWTSecret == "" {
			return errors.New("AUTH_ENABLED requires JWT_SECRET")
		}
		routerCfg.TokenVerifier = jwtManager
	} else {
		log.Warn().Msg("authentication disabled, every request runs as the system operator")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		refresher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := outbox.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.StartCleanup(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// adminOperator returns the bootstrap admin configured through
// ADMIN_EMAIL and ADMIN_PASSWORD.
func adminOperator(cfg *config.Config) (usecase.CreateOperatorInput, bool) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return usecase.CreateOperatorInput{}, false
	}
	return usecase.CreateOperatorInput{
		Email:    cfg.AdminEmail,
		Name:     "Administrator",
		Password: cfg.AdminPassword,
		Role:     domain.RoleAdmin,
	}, true
}

// newPublisher picks Kafka when brokers are configured and the log
// otherwise. The returned func closes the producer.
func newPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func() error, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventpublisher.NewLogPublisher(log), func() error { return nil }, nil
	}

	kafka, err := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing outbox to kafka")
	return kafka, kafka.Close, nil
}
