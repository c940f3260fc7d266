package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/sdemirror/internal/config"
	"github.com/JonMunkholm/sdemirror/internal/store"
	"github.com/JonMunkholm/sdemirror/internal/store/postgres"
	"github.com/JonMunkholm/sdemirror/internal/store/sqlite"
)

// openStore connects to the engine selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return s, nil

	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Options{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}

		// Log which database we connected to
		if u, err := url.Parse(cfg.URL); err == nil {
			slog.Info("connected to database", "driver", cfg.Driver, "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database", "driver", cfg.Driver)
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
