package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/seatflow/internal/availability"
	"github.com/kirinyoku/seatflow/internal/config"
	"github.com/kirinyoku/seatflow/internal/events"
	"github.com/kirinyoku/seatflow/internal/postgres"
	"github.com/kirinyoku/seatflow/internal/redis"
	postgresrepo "github.com/kirinyoku/seatflow/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/seatflow/internal/repository/redis"
	"github.com/kirinyoku/seatflow/internal/service"
	"github.com/kirinyoku/seatflow/internal/session"
	httpgin "github.com/kirinyoku/seatflow/internal/transport/http/gin"
	"github.com/kirinyoku/seatflow/internal/upstream"
	"github.com/kirinyoku/seatflow/internal/upstream/bookings"
	"github.com/kirinyoku/seatflow/internal/upstream/flights"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const janitorInterval = time.Minute

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.FlightsPubSub
	publisher  events.Publisher
	pool       *pgxpool.Pool
	rdb        *goredis.Client
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	// Initialize dependencies
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Timeout: 5 * time.Second,
		}, logger)
		if err != nil {
			pgxPool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to initialize kafka: %w", err)
		}
		publisher = kp
	} else {
		logger.Warn("KAFKA_BROKERS not set, submission events are not published")
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	if err := store.Migrate(ctx); err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}

	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewFlightsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "checks", cfg.RateLimit.ManualChecks, cfg.RateLimit.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)

	// Upstream clients
	hc := upstream.NewHTTPClient(cfg.Upstream.Timeout)
	flightsClient := flights.NewCached(
		flights.New(hc, logger, flights.Config{
			BaseURL:    cfg.Upstream.FlightServiceURL,
			MaxRetries: cfg.Upstream.MaxRetries,
		}),
		cache,
		cfg.Redis.FlightCacheTTL,
	)
	bookingsClient := bookings.New(hc, cfg.Upstream.BookingServiceURL)

	// Initialize services
	services := service.NewServices(
		store,
		flightsClient,
		bookingsClient,
		pubsub,
		limiter,
		publisher,
		logger,
		service.Config{
			Sessions: session.Config{
				IdleTTL:       cfg.Sessions.IdleTTL,
				CheckInterval: cfg.Availability.Interval,
				SubmitTimeout: cfg.Sessions.SubmitTimeout,
				Availability: availability.Options{
					Debounce:     cfg.Availability.Debounce,
					Interval:     cfg.Availability.Interval,
					CheckTimeout: cfg.Upstream.Timeout,
				},
			},
		},
	)

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		services:  services,
		pubsub:    pubsub,
		publisher: publisher,
		pool:      pgxPool,
		rdb:       rdb,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Idle session eviction
	g.Go(func() error {
		return a.services.Sessions.RunJanitor(gCtx, janitorInterval)
	})

	// Seat changes announced by other instances
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, a.services.Sessions.OnFlightChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("flight change subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.httpServer.Shutdown(ctx)
		a.services.Sessions.CloseAll()
		return err
	})

	return g.Wait()
}

func (a *App) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close event publisher", "error", err)
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("failed to close redis", "error", err)
	}
	a.pool.Close()
}
