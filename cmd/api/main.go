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

	"github.com/angelmondragon/tipledger-backend/api/routes"
	"github.com/angelmondragon/tipledger-backend/internal/employees"
	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/internal/tableqrs"
	"github.com/angelmondragon/tipledger-backend/internal/tips"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
	"github.com/angelmondragon/tipledger-backend/pkg/migrate"
	"github.com/angelmondragon/tipledger-backend/pkg/pubsub"
	"github.com/angelmondragon/tipledger-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(bootCtx, "redis not configured; http idempotency replay disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tipMetrics := metrics.NewTipMetrics(registry)

	var publisher events.Publisher = events.NopPublisher{Logger: logg}
	if cfg.PubSub.PublishingEnabled(cfg.GCP) {
		psCfg := cfg.PubSub
		psCfg.TipEventsSubscription = ""
		var pubsubClient *pubsub.Client
		pubsubClient, err = pubsub.NewClient(bootCtx, cfg.GCP, psCfg, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

		topic := pubsubClient.TipEventsPublisher()
		defer topic.Stop()

		publisher, err = events.NewPubSubPublisher(topic, cfg.Eventing.PublishTimeout, tipMetrics, logg)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(bootCtx, "tip events topic not configured; events will be dropped")
	}

	conn := dbClient.DB()
	merchantSvc, err := merchants.NewService(merchants.NewRepository(conn))
	if err != nil {
		return err
	}
	tableSvc, err := tableqrs.NewService(tableqrs.NewRepository(conn), merchantSvc)
	if err != nil {
		return err
	}
	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return err
	}
	employeeSvc, err := employees.NewService(employees.NewRepository(conn), ledgerSvc, merchantSvc)
	if err != nil {
		return err
	}
	tipSvc, err := tips.NewService(tips.ServiceParams{
		Repo:       tips.NewRepository(conn),
		Tx:         dbClient,
		Ledger:     ledgerSvc,
		LedgerRepo: ledgerRepo,
		Tables:     tableSvc,
		Employees:  employeeSvc,
		Publisher:  publisher,
		Metrics:    tipMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:        dbClient,
			Redis:     redisClient,
			Metrics:   registry,
			Tips:      tipSvc,
			Merchants: merchantSvc,
			Tables:    tableSvc,
			Employees: employeeSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
