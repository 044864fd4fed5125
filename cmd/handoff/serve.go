package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/handoff/core/config"
	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/health"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/core/response"
	"github.com/dmitrymomot/handoff/core/router"
	"github.com/dmitrymomot/handoff/core/server"
	"github.com/dmitrymomot/handoff/integration/database/mongo"
	"github.com/dmitrymomot/handoff/integration/database/pg"
	"github.com/dmitrymomot/handoff/integration/database/redis"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/db"
	"github.com/dmitrymomot/handoff/internal/handoff"
	"github.com/dmitrymomot/handoff/internal/intent"
	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/metrics"
	"github.com/dmitrymomot/handoff/internal/realtime"
	"github.com/dmitrymomot/handoff/internal/recommend"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
	"github.com/dmitrymomot/handoff/internal/sweeper"
	"github.com/dmitrymomot/handoff/internal/transfer"
	"github.com/dmitrymomot/handoff/middleware"
)

// ErrUnknownDriver is returned for an unsupported KV_DRIVER or STORAGE_DRIVER.
var ErrUnknownDriver = errors.New("unknown driver")

// serveConfig groups the per-component settings loaded from the environment.
type serveConfig struct {
	Server   server.Config
	Redis    redis.Config
	Postgres pg.Config
	Mongo    mongo.Config
	Transfer transfer.Config
	Registry registry.Config
	Sweeper  sweeper.Config
	Handoff  handoff.Config
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, log, err := loadAppConfig()
			if err != nil {
				return err
			}
			var cfg serveConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, app, cfg, log); err != nil {
				log.ErrorContext(ctx, "server stopped", logger.Error(err))
				return err
			}
			return nil
		},
	}
}

// backends holds the storage chosen by configuration and the readiness checks
// that go with it.
type backends struct {
	kv       kv.Store
	sessions session.Store
	catalog  catalog.Repository
	checks   []health.Check
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func serve(ctx context.Context, app appConfig, cfg serveConfig, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	b := &backends{}
	defer b.close()
	if err := openKV(ctx, app, cfg, log, b); err != nil {
		return err
	}
	if err := openStorage(ctx, app, cfg, log, b); err != nil {
		return err
	}
	if app.CatalogSeed {
		n, err := catalog.Seed(ctx, b.catalog, catalog.DefaultProducts())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.InfoContext(ctx, "catalog ready", logger.Count("seeded", n))
	}

	tokens, err := transfer.NewFromConfig(cfg.Transfer, b.kv, transfer.WithLogger(log))
	if err != nil {
		return err
	}
	if !tokens.Configured() {
		log.WarnContext(ctx, "TRANSFER_TOKEN_SECRET is not set, session transfer is disabled")
	}
	connections, err := registry.NewFromConfig(cfg.Registry, b.kv, registry.WithLogger(log))
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(b.sessions, session.WithLogger(log))
	if err != nil {
		return err
	}

	var upgrade []response.WebSocketOption
	if app.AllowAnyOrigin {
		upgrade = append(upgrade, response.WithWSAllowAnyOrigin())
	}
	mobile := newNamespace(registry.Mobile, log, m, upgrade)
	kiosk := newNamespace(registry.Kiosk, log, m, upgrade)

	coord, err := handoff.NewFromConfig(cfg.Handoff, handoff.Deps{
		Sessions:    sessions,
		Tokens:      tokens,
		Registry:    connections,
		Parser:      intent.NewRuleParser(),
		Recommender: recommend.New(b.catalog, recommend.WithLogger(log)),
		Catalog:     b.catalog,
		Mobile:      mobile,
		Kiosk:       kiosk,
		Metrics:     m,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	coord.Attach(mobile, kiosk)

	sweep, err := sweeper.NewFromConfig(cfg.Sweeper, b.kv,
		sweeper.WithPrefixes(tokens.KeyPrefix()),
		sweeper.WithLogger(log),
		sweeper.WithObserver(m.ObserveSweep),
	)
	if err != nil {
		return err
	}

	r := router.New[*router.Context](
		router.WithErrorHandler(response.JSONErrorHandler[*router.Context]),
		router.WithLogger[*router.Context](log),
		router.WithMiddleware(
			middleware.RequestID[*router.Context](),
			middleware.LoggingWithConfig[*router.Context](middleware.LoggingConfig{
				Logger: log,
				Skip:   skipLogging,
			}),
		),
	)

	r.Get("/health/live", health.Liveness[*router.Context])
	r.Get("/health/ready", health.Readiness[*router.Context](log, b.checks...))
	metricsHandler := response.Handler(m.Handler())
	r.Get("/metrics", func(*router.Context) handler.Response { return metricsHandler })

	serveMobile, serveKiosk := mobile.Serve(), kiosk.Serve()
	r.Get("/ws/mobile", func(*router.Context) handler.Response { return serveMobile })
	r.Get("/ws/kiosk", func(*router.Context) handler.Response { return serveKiosk })
	handoff.RegisterRoutes(r, coord)

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(gctx, r))
	g.Go(sweep.Run(gctx))
	g.Go(mobile.Run(gctx, cfg.Server.ShutdownTimeout))
	g.Go(kiosk.Run(gctx, cfg.Server.ShutdownTimeout))

	log.InfoContext(ctx, "handoff started",
		slog.String("addr", cfg.Server.Addr),
		slog.String("kv", app.KVDriver),
		slog.String("storage", app.StorageDriver),
	)
	return g.Wait()
}

func newNamespace(ch registry.Channel, log *slog.Logger, m *metrics.Metrics, upgrade []response.WebSocketOption) *realtime.Namespace {
	return realtime.NewNamespace(ch.String(),
		realtime.WithLogger(log),
		realtime.WithErrorEncoder(handoff.ErrorEncoder(ch)),
		realtime.WithConnGauge(m.ConnGauge(ch.String())),
		realtime.WithOnEvent(func(_ context.Context, c *realtime.Conn, event string) {
			m.EventReceived(c.Namespace(), event)
		}),
		realtime.WithUpgradeOptions(upgrade...),
	)
}

// skipLogging keeps long-lived websocket connections and scrapes out of the
// request log.
func skipLogging(ctx handler.Context) bool {
	p := ctx.Request().URL.Path
	return strings.HasPrefix(p, "/ws/") || p == "/metrics" || strings.HasPrefix(p, "/health/")
}

func openKV(ctx context.Context, app appConfig, cfg serveConfig, log *slog.Logger, b *backends) error {
	switch app.KVDriver {
	case driverMemory:
		store := kv.NewMemoryStore()
		b.kv = store
		b.closers = append(b.closers, store.Close)
	case driverRedis:
		client, err := redis.Open(cfg.Redis)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		// Commands retry on their own, so an unreachable Redis degrades
		// transfer and routing instead of blocking startup.
		if err := redis.WaitReady(ctx, client, cfg.Redis); err != nil {
			log.WarnContext(ctx, "redis not ready, continuing degraded", logger.Error(err))
		}
		b.kv = kv.NewRedisStore(client, cfg.Redis.ScanBatchSize)
		b.checks = append(b.checks, health.Check{Name: "redis", Fn: redis.Healthcheck(client), Optional: true})
	default:
		return fmt.Errorf("%w: KV_DRIVER=%q", ErrUnknownDriver, app.KVDriver)
	}
	return nil
}

func openStorage(ctx context.Context, app appConfig, cfg serveConfig, log *slog.Logger, b *backends) error {
	switch app.StorageDriver {
	case driverMemory:
		b.sessions = session.NewMemoryStore()
		b.catalog = catalog.NewMemoryRepository()
	case driverPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, pool.Close)
		if err := pg.Migrate(ctx, pool, cfg.Postgres, log, db.Migrations); err != nil {
			return err
		}
		b.sessions = session.NewPostgresStore(pool)
		b.catalog = catalog.NewPostgresRepository(pool)
		b.checks = append(b.checks, health.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	case driverMongo:
		client, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(cctx)
		})
		database := client.Database(cfg.Mongo.Database)
		store := session.NewMongoStore(database)
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		b.sessions = store
		b.catalog = catalog.NewMongoRepository(database)
		b.checks = append(b.checks, health.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})
	default:
		return fmt.Errorf("%w: STORAGE_DRIVER=%q", ErrUnknownDriver, app.StorageDriver)
	}
	return nil
}
