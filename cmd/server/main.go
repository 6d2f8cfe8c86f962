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

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/bistroledger/internal/adapter/http"
	"github.com/iho/bistroledger/internal/adapter/http/handler"
	"github.com/iho/bistroledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/bistroledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/bistroledger/internal/adapter/repository/redis"
	"github.com/iho/bistroledger/internal/infrastructure/config"
	"github.com/iho/bistroledger/internal/infrastructure/eventpublisher"
	"github.com/iho/bistroledger/internal/infrastructure/logger"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
	"github.com/iho/bistroledger/internal/infrastructure/postgres"
	"github.com/iho/bistroledger/internal/infrastructure/ratefeed"
	"github.com/iho/bistroledger/internal/infrastructure/redis"
	"github.com/iho/bistroledger/internal/usecase"
)

const (
	rateLimiterSweep   = time.Minute
	rateLimiterMaxIdle = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.RunMigrations {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.WithPoolSize(cfg.RedisPoolSize), redis.WithDialTimeout(cfg.RedisDialTimeout))
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	b, err := newBackends(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer b.close()

	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	deps := usecase.Dependencies{
		TxManager:   postgresRepo.NewTxManager(pool),
		Store:       ledgerRepo,
		Reader:      ledgerRepo,
		Currencies:  postgresRepo.NewCurrencyRepository(pool),
		Corrections: postgresRepo.NewCorrectionRepository(pool),
		Stock:       postgresRepo.NewStockMovementRepository(pool),
		Outbox:      outboxRepo,
		IDGen:       postgresRepo.NewULIDGenerator(),
		Retrier:     postgresRepo.NewRetrier(log, m),
		Notifier:    b.notifier,
		Thresholds:  cfg.Thresholds(),
		Metrics:     m,
		Logger:      &log,
	}

	recalc := usecase.NewRecalculator(ledgerRepo, m)
	postingUC := usecase.NewPostingUseCase(deps, recalc)
	linkedUC := usecase.NewLinkedPostingUseCase(deps, postingUC, recalc)
	correctionUC := usecase.NewCorrectionUseCase(deps, postingUC, recalc)
	stockUC := usecase.NewStockUseCase(deps, postingUC, linkedUC, correctionUC, recalc)
	ledgerUC := usecase.NewLedgerUseCase(deps, recalc)
	currencyUC := usecase.NewCurrencyUseCase(deps, rateSource(cfg), redisRepo.NewCache(redisClient), cfg.RateCacheTTL)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EntryHandler:      handler.NewEntryHandler(postingUC, ledgerUC),
		LinkedHandler:     handler.NewLinkedHandler(linkedUC),
		CorrectionHandler: handler.NewCorrectionHandler(correctionUC),
		CurrencyHandler:   handler.NewCurrencyHandler(currencyUC),
		StockHandler:      handler.NewStockHandler(stockUC),
		LedgerHandler:     handler.NewLedgerHandler(ledgerUC),
		HealthHandler:     handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:  redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:    cfg.IdempotencyTTL,
		RateLimiter:       rateLimiter,
		Logger:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
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

	g.Go(func() error {
		rateLimiter.Run(gctx, rateLimiterSweep, rateLimiterMaxIdle)
		return nil
	})

	g.Go(func() error {
		return ignoreCanceled(eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  b.publisher,
			Metrics:    m,
			Logger:     log,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxPollInterval,
			Retention:  cfg.OutboxRetention,
		}).Start(gctx))
	})

	if cfg.RateFeedURL != "" {
		g.Go(func() error {
			return ignoreCanceled(ratefeed.NewJob(currencyUC, cfg.RateRefreshInterval, log).Start(gctx))
		})
	}

	return g.Wait()
}

// backends are the alert notifier and the outbox publisher picked by
// NOTIFY_BACKEND.
type backends struct {
	notifier  usecase.Notifier
	publisher eventpublisher.Publisher
	close     func()
}

func newBackends(ctx context.Context, cfg *config.Config, redisClient goredis.UniversalClient, log zerolog.Logger) (*backends, error) {
	logPublisher := eventpublisher.NewLogPublisher(log)

	switch cfg.NotifyBackend {
	case config.NotifyRedis:
		return &backends{
			notifier:  redisRepo.NewAlertPublisher(redisClient, cfg.NotifyChannel),
			publisher: logPublisher,
			close:     func() {},
		}, nil

	case config.NotifyNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("bistroledger"))
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		if err := eventpublisher.EnsureStream(ctx, nc, cfg.NATSStream, eventpublisher.DefaultSubjectPrefix); err != nil {
			nc.Close()
			return nil, err
		}
		pub, err := eventpublisher.NewNATSPublisher(nc, eventpublisher.DefaultSubjectPrefix)
		if err != nil {
			nc.Close()
			return nil, err
		}
		log.Info().Str("url", cfg.NATSURL).Str("stream", cfg.NATSStream).Msg("connected to nats")
		return &backends{notifier: pub, publisher: pub, close: nc.Close}, nil

	default:
		return &backends{notifier: logPublisher, publisher: logPublisher, close: func() {}}, nil
	}
}

// rateSource returns nil when no feed is configured; manual refreshes then fail
// and rates are only set through the API.
func rateSource(cfg *config.Config) usecase.RateSource {
	if cfg.RateFeedURL == "" {
		return nil
	}
	return ratefeed.NewClient(cfg.RateFeedURL, ratefeed.WithAPIKey(cfg.RateFeedAPIKey))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
