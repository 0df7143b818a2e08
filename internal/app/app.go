package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/PackStore/internal/catalog"
	"github.com/utafrali/PackStore/internal/config"
	"github.com/utafrali/PackStore/internal/event"
	handler "github.com/utafrali/PackStore/internal/handler/http"
	"github.com/utafrali/PackStore/internal/orderlookup"
	"github.com/utafrali/PackStore/internal/ordertotal"
	"github.com/utafrali/PackStore/internal/payment"
	"github.com/utafrali/PackStore/internal/poller"
	"github.com/utafrali/PackStore/internal/repository/postgres"
	redisrepo "github.com/utafrali/PackStore/internal/repository/redis"
	"github.com/utafrali/PackStore/internal/repository/routing"
	"github.com/utafrali/PackStore/internal/service"
	"github.com/utafrali/PackStore/internal/shipping"
	"github.com/utafrali/PackStore/pkg/database"
	apperrors "github.com/utafrali/PackStore/pkg/errors"
	"github.com/utafrali/PackStore/pkg/health"
	"github.com/utafrali/PackStore/pkg/httpclient"
	pkgkafka "github.com/utafrali/PackStore/pkg/kafka"
	"github.com/utafrali/PackStore/pkg/middleware"
	"github.com/utafrali/PackStore/pkg/tracing"
)

const (
	serviceName   = "packstore"
	sweepInterval = time.Minute
)

// circuitOpenFallback answers downstream calls while a breaker is open.
func circuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("downstream service is temporarily unavailable, please retry after 30 seconds")
}

// App wires together all dependencies and runs the packstore service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	checkout       *service.CheckoutService
	limiter        *middleware.Limiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = serviceName
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := postgres.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	eventProducer := event.NewProducer(producer, logger)

	// Downstream HTTP with a circuit breaker per collaborator.
	baseClient := httpclient.New(httpclient.DefaultConfig())
	catalogHTTP := httpclient.NewCircuitBreakerClient(baseClient, httpclient.DefaultCircuitBreakerConfig("catalog"), logger).
		WithFallback(circuitOpenFallback)
	catalogReader := catalog.NewCachedReader(
		catalog.NewClient(catalogHTTP, cfg.CatalogURL), rdb, cfg.CatalogCacheTTL, logger,
	)

	// Cart storage: anonymous carts in Redis, customer carts in Postgres.
	carts := routing.NewCartStore(
		redisrepo.NewCartStore(rdb, cfg.CartTTL),
		postgres.NewCartStore(pool),
	)

	shippingTable, err := shippingTable(cfg.ShippingDefault)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, err
	}
	totals := ordertotal.New(ordertotal.Policy{Rate: cfg.VATRate, ApplyToShipping: cfg.VATAppliesToShipping})
	cartService := service.NewCartService(carts, catalogReader, eventProducer, shippingTable, totals, logger)

	// Order confirmation.
	orders := orderLookup(cfg, pool, logger)
	verifier, err := paymentVerifier(cfg, logger)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, err
	}
	checkoutService := service.NewCheckoutService(
		verifier, orders, cartService, eventProducer, cfg.Poll, cfg.PollRetention, logger,
	)

	// Order-created consumer clears the customer's durable cart once per event.
	dlq := pkgkafka.NewDLQProducer(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, logger)
	orderConsumer := event.NewConsumer(carts, logger)
	consumer := pkgkafka.NewConsumer(
		pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaConsumerGroup,
			Topic:    event.TopicOrderCreated,
			MinBytes: 1,
			MaxBytes: 10e6,
		},
		pkgkafka.IdempotentHandler(
			pkgkafka.NewRedisIdempotencyStore(rdb, serviceName+":events:", cfg.EventDedupTTL),
			orderConsumer.HandleOrderCreated,
			logger,
		),
		logger,
	).WithDLQ(dlq)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	limiter := middleware.NewLimiter(cfg.PollStatusRPS, cfg.PollStatusBurst, 10*time.Minute)
	router := handler.NewRouter(cartService, checkoutService, healthHandler, logger, handler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		PprofCIDRs:     cfg.PprofAllowCIDRs,
		PollLimiter:    limiter,
		JWTSecret:      cfg.JWTSecret,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		dlq:            dlq,
		consumer:       consumer,
		checkout:       checkoutService,
		limiter:        limiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the event consumer and the housekeeping loop,
// and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	bgCtx, stopBackground := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.consumer.Start(bgCtx); err != nil {
			a.logger.Error("order consumer stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		defer wg.Done()
		a.housekeeping(bgCtx)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopBackground()
	wg.Wait()
	return errors.Join(runErr, a.Shutdown())
}

// housekeeping evicts idle rate-limit buckets and finished polls.
func (a *App) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.limiter.Sweep()
			if n := a.checkout.Sweep(now); n > 0 {
				a.logger.Debug("evicted finished confirmation polls", slog.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully stops all components in order: HTTP server, running
// polls, tracer, Kafka writers, Redis, then the Postgres pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.checkout.Close()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func shippingTable(defaultID string) (*shipping.Table, error) {
	t, err := shipping.NewTable(shipping.DefaultMethods(), defaultID)
	if err != nil {
		return nil, fmt.Errorf("shipping table: %w", err)
	}
	return t, nil
}

// orderLookup reads orders from the order service when one is configured,
// otherwise straight from the orders table. The HTTP client never retries a
// lookup on its own.
func orderLookup(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) poller.OrderLookup {
	if cfg.OrderServiceURL == "" {
		logger.Info("order lookup reads postgres")
		return postgres.NewOrderRepository(pool)
	}
	base := httpclient.New(orderlookup.HTTPConfig())
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("order"), logger).
		WithFallback(circuitOpenFallback)
	logger.Info("order lookup calls order service", slog.String("url", cfg.OrderServiceURL))
	return orderlookup.NewClient(cb, cfg.OrderServiceURL)
}

// paymentVerifier uses Stripe when a key is configured. The mock, which
// reports every session as paid, is only allowed in development.
func paymentVerifier(cfg *config.Config, logger *slog.Logger) (poller.PaymentVerifier, error) {
	if cfg.StripeSecretKey == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("STRIPE_SECRET_KEY is required outside development")
		}
		logger.Warn("STRIPE_SECRET_KEY not set, every payment session is treated as paid")
		return payment.NewMockVerifier(), nil
	}
	v, err := payment.NewStripeVerifier(cfg.StripeSecretKey, nil)
	if err != nil {
		return nil, fmt.Errorf("payment verifier: %w", err)
	}
	return v, nil
}
