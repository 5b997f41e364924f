package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/tractor-shop/internal/broadcast"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/handler"
	"github.com/xenking/tractor-shop/internal/lock"
	"github.com/xenking/tractor-shop/internal/storage/postgres"
	"github.com/xenking/tractor-shop/pkg/health"
	"github.com/xenking/tractor-shop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Register(health.Readiness, "postgres", health.PingCheck("postgres", pool),
		health.WithTimeout(5*time.Second))
	healthSvc.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))

	// Order locks and snapshot fan-out: Redis when configured, in-process
	// otherwise.
	hub := broadcast.NewHub(0)
	var (
		locker    order.Locker    = lock.NewLocal()
		publisher order.Publisher = hub
	)
	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.RedisURL, m)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		locker = lock.NewRedis(rdb, lock.RedisConfig{
			TTL:          cfg.Lock.TTL,
			RetryBackoff: cfg.Lock.RetryBackoff,
		})
		publisher = broadcast.Multi{hub, broadcast.NewRedisPublisher(rdb)}
		healthSvc.Register(health.Readiness, "redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, health.WithTimeout(2*time.Second))
		lg.Info("Using Redis for order locks and snapshots")
	}
	go logSnapshots(ctx, lg, hub)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	customerRepo := postgres.NewCustomerRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	customerService := customer.NewService(customerRepo)
	orderService := order.NewService(orderRepo, catalogRepo, customerRepo, locker,
		order.WithPublisher(publisher),
		order.WithMeterProvider(m.MeterProvider()),
	)

	h := handler.NewHandler(orderService, customerService, catalogRepo)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.ShareRouteContext(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("shop-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
			httpmiddleware.Labeler(httpmiddleware.ChiRoute),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newRedis(ctx context.Context, url string, m *app.Telemetry) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis metrics")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

// logSnapshots writes every published order snapshot to the debug log until
// ctx is done.
func logSnapshots(ctx context.Context, lg *zap.Logger, hub *broadcast.Hub) {
	snapshots, cancel := hub.Subscribe(broadcast.AllOrders)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-snapshots:
			lg.Debug("Order snapshot",
				zap.String("order_id", s.ID),
				zap.String("status", string(s.Status)),
				zap.Int64("version", s.Version),
				zap.Stringer("total", s.Totals.Final),
			)
		}
	}
}
