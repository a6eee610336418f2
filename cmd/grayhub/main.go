// Package main is the entry point for the Gray Logic Hub.
//
// The hub drives serial microcontrollers, wireless mesh adapters and remote
// HTTP agents from one process. It runs stored automation scripts on a
// DST-aware schedule and records periodic samples of monitored elements.
//
// Usage:
//
//	grayhub run                       # start the hub (default)
//	grayhub migrate up|down|status    # manage the database schema
//	grayhub run-script 3              # run one stored script and exit
//	grayhub version
//
// The configuration path comes from --config, then GRAYHUB_CONFIG, then
// configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/migrations"
)

// Build-time variables (set via -ldflags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor GRAYHUB_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

var configPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "grayhub",
		Short:         "Gray Logic home automation hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default $GRAYHUB_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the hub and run until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context())
			},
		},
		newMigrateCmd(),
		&cobra.Command{
			Use:   "run-script <id>",
			Short: "Run one stored script against the configured devices",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid script id %q", args[0])
				}
				return runScript(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "grayhub %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB, _ *logging.Logger) error {
					return db.Migrate(ctx, migrations.FS)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB, _ *logging.Logger) error {
					return db.MigrateDown(ctx, migrations.FS)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, db *database.DB, _ *logging.Logger) error {
					applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, m := range applied {
						fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
					}
					for _, m := range pending {
						fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
					}
					return nil
				})
			},
		},
	)
	return migrate
}

// run is the main application logic, separated for testability.
func run(ctx context.Context) error {
	return withDatabase(ctx, func(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) error {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete")

		h, err := newHub(ctx, cfg, db, log)
		if err != nil {
			return err
		}
		defer h.Close()

		return h.Run(ctx)
	})
}

// runScript connects the configured devices, runs one script and exits.
func runScript(ctx context.Context, id int64) error {
	return withDatabase(ctx, func(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) error {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		h, err := newHub(ctx, cfg, db, log)
		if err != nil {
			return err
		}
		defer h.Close()

		h.connectDevices(ctx)
		return h.runner.Run(ctx, id)
	})
}

// withDatabase loads configuration, builds the logger and opens the
// database, then calls fn.
func withDatabase(ctx context.Context, fn func(context.Context, *config.Config, *database.DB, *logging.Logger) error) error {
	log := logging.Default()
	log.Info("starting Gray Logic Hub", "version", version, "config", getConfigPath())

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "closing log: %v\n", closeErr)
		}
	}()
	log.Info("configuration loaded",
		"site_id", cfg.Site.ID,
		"site_name", cfg.Site.Name,
		"timezone", cfg.Site.Timezone,
		"version", version,
		"commit", commit,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", cfg.Database.Path)

	return fn(ctx, cfg, db, log)
}

// getConfigPath returns the configuration file path.
func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if path := os.Getenv("GRAYHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
