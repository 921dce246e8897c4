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

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/okryvyi/seatwave/internal/config"
	"github.com/okryvyi/seatwave/internal/domain"
	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	"github.com/okryvyi/seatwave/internal/notify"
	"github.com/okryvyi/seatwave/internal/persist"
	persistpg "github.com/okryvyi/seatwave/internal/persist/postgres"
	persistredis "github.com/okryvyi/seatwave/internal/persist/redis"
	redisx "github.com/okryvyi/seatwave/internal/redis"
	"github.com/okryvyi/seatwave/internal/service"
	"github.com/okryvyi/seatwave/internal/store"
	httpgin "github.com/okryvyi/seatwave/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	pubsub     *redisx.EventsPubSub
	cache      *redisx.Cache
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	// Redis is optional: without it the service runs on the in-memory core
	// with no cache, pub/sub, rate limiting or idempotency store.
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = redisx.New(ctx, redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	}

	port, err := newPersistPort(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	led := ledger.New(logger)
	if err := restoreLedgers(ctx, led, port, logger); err != nil {
		return nil, err
	}

	var (
		cache   *redisx.Cache
		pubsub  *redisx.EventsPubSub
		limiter *redisx.SlidingWindowLimiter
		idem    *redisx.IdempotencyStore
	)
	if rdb != nil {
		cache = redisx.NewCache(rdb)
		pubsub = redisx.NewEventsPubSub(rdb)
		limiter = redisx.NewSlidingWindowLimiter(rdb, "bookings", 10, 1*time.Minute)
		idem = redisx.NewIdempotencyStore(rdb, 2*time.Hour)
	}

	dispatcher := notify.NewDispatcher(pubsub, cfg.AMQP.URL, logger)

	services := service.NewServices(
		led,
		store.New(),
		locker.New(),
		dispatcher,
		port,
		cache,
		logger,
	)

	router := httpgin.NewRouter(services, idem, limiter, cfg.Auth.JWTSecret, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		pubsub: pubsub,
		cache:  cache,
	}, nil
}

func newPersistPort(ctx context.Context, cfg *config.Config, rdb *goredis.Client) (persist.Port, error) {
	switch cfg.Persist.Backend {
	case config.PersistMemory:
		return persist.NewMemory(), nil
	case config.PersistFile:
		return persist.NewFile(cfg.Persist.FilePath), nil
	case config.PersistRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis persistence requires a redis connection")
		}
		return persistredis.New(rdb), nil
	case config.PersistPostgres:
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.Name,
			cfg.Postgres.SSLMode,
		)
		pg, err := persistpg.New(ctx, persistpg.Config{DSN: dsn})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		return pg, nil
	}

	return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persist.Backend)
}

// restoreLedgers reloads every persisted snapshot into the in-memory ledger
// on startup.
func restoreLedgers(ctx context.Context, led *ledger.Ledger, port persist.Port, logger *slog.Logger) error {
	snaps, err := port.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger snapshots: %w", err)
	}

	for _, snap := range snaps {
		if err := led.Restore(snap); err != nil {
			return fmt.Errorf("failed to restore ledger for event %d: %w", snap.EventID, err)
		}
	}

	if len(snaps) > 0 {
		logger.Info("restored ledgers", "events", len(snaps))
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Peer instances publish seat updates through Redis; drop the local read
	// cache for the touched event so every replica serves fresh counts.
	if a.pubsub != nil && a.cache != nil {
		g.Go(func() error {
			err := a.pubsub.SubscribeSeatUpdates(gCtx, func(ctx context.Context, ev domain.SeatAvailabilityChanged) {
				if err := a.cache.InvalidateEvent(ctx, ev.EventID); err != nil {
					a.logger.Warn("cache invalidation from seat update failed", "event_id", ev.EventID, "error", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
