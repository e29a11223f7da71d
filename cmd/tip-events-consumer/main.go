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
	"github.com/angelmondragon/tipledger-backend/internal/consumers/tipevents"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/idempotency"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
	"github.com/angelmondragon/tipledger-backend/pkg/migrate"
	"github.com/angelmondragon/tipledger-backend/pkg/pubsub"
)

const serviceKind = "tip-events-consumer"

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
		logg.Error(context.Background(), "tip events consumer stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()
	if cfg.PubSub.TipEventsSubscription == "" {
		return errors.New("TIPLEDGER_PUBSUB_TIP_EVENTS_SUBSCRIPTION is required")
	}

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	subscription := pubsubClient.TipEventsSubscription()
	if n := cfg.Eventing.MaxOutstandingMessages; n > 0 {
		subscription.ReceiveSettings.MaxOutstandingMessages = n
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	tipMetrics := metrics.NewTipMetrics(registry)

	guard, err := idempotency.NewGuard(dbClient.DB())
	if err != nil {
		return err
	}
	consumer, err := tipevents.NewConsumer(subscription, guard, tipevents.LogHandler{Logger: logg}, tipMetrics, logg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  serviceKind,
		"subscription": cfg.PubSub.TipEventsSubscription,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewOpsRouter(cfg, logg, registry, controllers.Dependency{Name: "database", Pinger: dbClient}),
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

	logg.Info(ctx, "starting tip events consumer")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "tip events consumer shutting down gracefully")
	return nil
}
