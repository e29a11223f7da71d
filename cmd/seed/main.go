package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tipledger-backend/internal/seed"
	"github.com/angelmondragon/tipledger-backend/pkg/config"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Warn(context.Background(), "refusing to seed demo data in production")
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})
	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	res, err := seed.Run(ctx, dbClient)
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"merchant_id": res.Merchant.ID.String(),
		"existing":    res.Existing,
		"employees":   len(res.Employees),
		"tables":      len(res.Tables),
	})
	logg.Info(ctx, "demo data ready")

	fmt.Printf("Merchant ID: %s\n", res.Merchant.ID)
	for _, e := range res.Employees {
		fmt.Printf("Employee:    %s  %s\n", e.ID, e.Name)
	}
	for _, t := range res.Tables {
		fmt.Printf("Table:       %s\n", t.TableCode)
	}
}
