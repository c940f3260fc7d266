package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sdemirror/internal/config"
	"github.com/JonMunkholm/sdemirror/internal/logging"
	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/source"
	"github.com/JonMunkholm/sdemirror/internal/store"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	driver string // --driver

	cfg   *config.Config
	store store.Store
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdemirror",
		Short: "Mirror the EVE Online static data export into a relational store",
		Long: `sdemirror downloads the static data export CSVs, reshapes them into
foreign-key consistent tables and replaces the local copy in one transaction
whenever the upstream version token changes.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.driver, "driver", "", "store driver: postgres or sqlite (overrides SDE_DB_DRIVER)")

	root.AddCommand(
		a.updateCmd(),
		a.statusCmd(),
		a.serveCmd(),
		a.migrateCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads configuration, configures logging and opens the store.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load(config.WithDriver(a.driver))
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.SetupTo(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	s, err := openStore(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	a.store = s

	if err := s.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
	a.store = nil
}

// newUpdater wires the HTTP source client and the default pipelines.
func (a *app) newUpdater() *sde.Updater {
	src := a.cfg.Source

	userAgent := src.UserAgent
	if userAgent == "" {
		userAgent = "sdemirror/" + version
	}

	client := source.NewClient(source.Options{
		Timeout:   src.HTTPTimeout,
		UserAgent: userAgent,
	})

	return sde.NewUpdater(a.store, client, sde.UpdaterConfig{
		TokenURL: src.TokenURL,
		Sources: sde.Sources{
			Category:    src.CategoryURL,
			Group:       src.GroupURL,
			MarketGroup: src.MarketGroupURL,
			Type:        src.TypeURL,
			Volume:      src.VolumeURL,
		},
		Timeout: a.cfg.Refresh.Timeout,
	})
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "sdemirror", version)
		},
	}
}
