package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if cfg.FeatureFlags.AutoMigrate {
		if !cfg.App.IsDev() {
			logg.Warn(ctx, "auto-migrate requested outside dev, skipping")
		} else if err := dbClient.DB().AutoMigrate(models.All()...); err != nil {
			logg.Error(ctx, "failed to auto-migrate schema", err)
			os.Exit(1)
		} else {
			logg.Info(ctx, "schema migrated")
		}
	}

	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	userService, err := users.NewService(users.NewRepository(dbClient.DB()), dbClient, publisher, cfg.Password, logg)
	if err != nil {
		logg.Error(ctx, "failed to create users service", err)
		os.Exit(1)
	}

	if err := userService.SeedRoles(ctx); err != nil {
		logg.Error(ctx, "failed to seed roles", err)
		os.Exit(1)
	}
	logg.Info(ctx, "roles seeded")
}
