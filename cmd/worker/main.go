package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/audit"
	"github.com/sb-works/collab-backend/internal/bootstrap"
	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: worker <migrate|audit>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, cfg)
	case "audit":
		err = runAudit(ctx, cfg)
	default:
		logging.Fatal().Str("command", os.Args[1]).Msg("unknown command")
	}
	if err != nil {
		logging.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.DriverPostgres)
	}
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	from, to, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	logging.Info().Uint("from_version", from).Uint("to_version", to).Msg("migrations complete")
	return nil
}

// runAudit runs the invariant audit once and exits non-zero when it finds
// anything, so it can gate deploy pipelines.
func runAudit(ctx context.Context, cfg *config.Config) error {
	storage, err := bootstrap.OpenStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer storage.Close()

	found, err := audit.NewScheduler(storage.Store, "").RunOnce(ctx)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return fmt.Errorf("%d invariant violations", len(found))
	}
	return nil
}
