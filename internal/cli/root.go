// Package cli is the cadence command-line interface.
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/config"
	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/engine"
	"github.com/dukerupert/cadence/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "Recurring tasks and time blocks",
		Long:  "Materializes recurrence rules into concrete tasks and time blocks and manages their lifecycle.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "cadence.yaml", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMaterializeCommand(opts))
	cmd.AddCommand(NewAgendaCommand(opts))
	cmd.AddCommand(NewRecurrenceCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewAreaCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// app is everything a command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	engine *engine.Engine
	logger *slog.Logger
}

func openApp(opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	eng := engine.New(db, engine.Options{
		Logger:   logger,
		Location: loc,
		MaxScan:  cfg.MaxScan,
	})
	return &app{cfg: cfg, db: db, engine: eng, logger: logger}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}
