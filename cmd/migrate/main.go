package main

import (
	"context"
	"os"
	"time"

	"github.com/brojonat/lpctl/service/app"
	"github.com/brojonat/lpctl/service/config"
	"github.com/brojonat/lpctl/service/logging"
)

// Applies the operation journal schema. The schema is idempotent, so running
// this against an up-to-date database is a no-op.
func main() {
	logger := logging.New("info", "text")

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, closeFn, err := app.OpenStore(ctx, databaseURL, nil)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer closeFn()
	logger.Info("connected to database")

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("operation journal schema applied")
}
