package main

import (
	"context"
	"fmt"

	"caregraph/internal/config"
	"caregraph/internal/store"
	"caregraph/internal/store/postgres"
	"caregraph/internal/store/sqlite"
)

const configFile = "caregraph.yaml"

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
