package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tipledger-backend/api/controllers"
	"github.com/angelmondragon/tipledger-backend/api/routes"
	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/internal/maintenance"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/idempotency"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
	"github.com/angelmondragon/tipledger-backend/pkg/migrate"
	"github.com/angelmondragon/tipledger-backend/pkg/redis"
)

const serviceKind = "maintenance-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		lock        maintenance.Lock
		redisPinger db.Pinger
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		var redisLock *maintenance.RedisLock
		redisLock, err = maintenance.NewRedisLock(redisClient, maintenance.LockKey(cfg.App.Env), cfg.Maintenance.LockTTL)
		if err != nil {
			return err
		}
		lock, redisPinger = redisLock, redisClient
	} else {
		logg.Warn(bootCtx, "redis not configured; maintenance lock is process-local")
		lock = &maintenance.LocalLock{}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	jobMetrics := metrics.NewJobMetrics(registry)

	guard, err := idempotency.NewGuard(dbClient.DB())
	if err != nil {
		return err
	}
	retention, err := maintenance.NewRetentionJob(maintenance.RetentionJobParams{
		Logger:    logg,
		Purger:    guard,
		Metrics:   jobMetrics,
		Retention: cfg.Maintenance.ProcessedEventsRetention,
	})
	if err != nil {
		return err
	}
	auditor, err := ledger.NewAuditor(dbClient.DB())
	if err != nil {
		return err
	}
	reconcile, err := maintenance.NewReconcileJob(maintenance.ReconcileJobParams{
		Logger:  logg,
		Auditor: auditor,
		History: ledger.NewRepository(dbClient.DB()),
		Metrics: jobMetrics,
		Limit:   cfg.Maintenance.ReconcileLimit,
	})
	if err != nil {
		return err
	}

	service, err := maintenance.NewService(maintenance.ServiceParams{
		Logger:   logg,
		Registry: maintenance.NewRegistry(retention, reconcile),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"interval":    cfg.Maintenance.Interval.String(),
	})

	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: routes.NewOpsRouter(cfg, logg, registry,
			controllers.Dependency{Name: "database", Pinger: dbClient},
			controllers.Dependency{Name: "redis", Pinger: redisPinger},
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, server.Shutdown(shutdownCtx))
	}()

	logg.Info(ctx, "starting maintenance worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "maintenance worker shutting down gracefully")
	return nil
}
