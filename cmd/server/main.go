package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"scoring/internal/method/auth"
	"scoring/internal/method/handler"
	"scoring/internal/method/service"
	"scoring/internal/platform/config"
	"scoring/internal/platform/health"
	"scoring/internal/platform/logger"
	"scoring/internal/platform/metrics"
	"scoring/internal/platform/redis"
	"scoring/internal/platform/tracer"
	"scoring/internal/scoring"
	"scoring/internal/store"
	httptransport "scoring/internal/transport/http"
	"scoring/pkg/platform/circuit"
	"scoring/pkg/platform/middleware/metadata"
)

var errStoreBreakerOpen = errors.New("circuit open")

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	log, closeLog, err := logger.Open(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, log)
	if err != nil {
		log.Error("server failed", "error", err)
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache, cleanup, err := openCache(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	storage := store.NewStorage(cache,
		store.WithAttempts(cfg.Store.Attempts),
		store.WithRetryInterval(cfg.Store.RetryInterval),
		store.WithBreaker(circuit.New("store",
			circuit.WithFailureThreshold(cfg.Store.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Store.SuccessThreshold),
		)),
		store.WithLogger(log),
		store.WithMetrics(m),
	)

	engine := scoring.New(storage,
		scoring.WithLogger(log),
		scoring.WithMetrics(m),
		scoring.WithTracer(tracer.NewOTel()),
		scoring.WithScoreTTL(cfg.Scoring.ScoreTTL),
		scoring.WithFanout(cfg.Scoring.Fanout),
	)
	authn := auth.New(auth.WithSalt(cfg.Auth.Salt), auth.WithAdminSalt(cfg.Auth.AdminSalt))
	dispatcher := service.New(authn, engine, service.WithLogger(log), service.WithMetrics(m))

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	healthHandler := health.New(cfg.Server.Environment)
	healthHandler.RegisterCheck("store", storage.Ping)
	healthHandler.RegisterOptional("store_breaker", func(context.Context) error {
		if storage.BreakerOpen() {
			return errStoreBreakerOpen
		}
		return nil
	})

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
		TrustedProxies: proxies,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, healthHandler, handler.New(dispatcher, log, m))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", srv.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// openCache returns Redis when configured, otherwise an in-memory store
// optionally seeded from a file.
func openCache(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (store.Cache, func(), error) {
	client, err := redis.New(ctx, cfg.Redis, redis.NewPoolMetrics(reg), log)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		go client.RunPoolStats(ctx, cfg.Redis.StatsInterval)
		log.Info("using redis store")
		return store.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	mem := store.NewMemoryStore()
	if cfg.Store.SeedFile != "" {
		n, err := store.LoadSeedFile(ctx, mem, cfg.Store.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("seeded interests", "clients", n, "file", cfg.Store.SeedFile)
	}
	go mem.RunSweeper(ctx, cfg.Store.SweepInterval, log)
	log.Warn("REDIS_URL not set, using in-memory store")
	return mem, func() {}, nil
}
