package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/purchasing/internal/app"
	audithttp "github.com/odyssey-erp/purchasing/internal/audit/http"
	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/observability"
	"github.com/odyssey-erp/purchasing/internal/platform/cache"
	"github.com/odyssey-erp/purchasing/internal/platform/db"
	"github.com/odyssey-erp/purchasing/internal/procurement"
	"github.com/odyssey-erp/purchasing/internal/suppliers"
	"github.com/odyssey-erp/purchasing/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("purchasing server", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.Postgres())
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		if cfg.LockBackend == app.LockBackendRedis {
			return err
		}
		logger.Warn("redis unavailable; using in-process locks", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	redisOpts := cfg.Redis().AsynqOpt()
	jobClient, err := jobs.NewClient(redisOpts, metrics.Jobs())
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	params := app.ServicesParams{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		Metrics:    metrics,
		Notifier:   jobClient,
		Reconciler: jobClient,
	}
	if redisClient != nil {
		params.Redis = redisClient
	}
	services := app.NewServices(params)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement),
		SupplierHandler:    suppliers.NewHandler(logger, services.Suppliers),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory),
		AuditHandler:       audithttp.NewHandler(logger, services.Audit),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Database:           pool,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
