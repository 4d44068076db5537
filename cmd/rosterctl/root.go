package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/database"
	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	logLevel  string
	logFormat string
	actorID   string
	role      string
}

// NewRootCommand builds the rosterctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rosterctl",
		Short: "Reconcile and register athlete rosters",
		Long: `rosterctl runs the roster pipeline outside the HTTP server.

validate needs no database. The other commands read DATABASE_URL and the
rest of the server configuration from the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			logging.SetupTo(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	cmd.PersistentFlags().StringVar(&opts.actorID, "actor", "rosterctl", "Actor id recorded in logs")
	cmd.PersistentFlags().StringVar(&opts.role, "role", "admin", "Role presented for authorization")

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newCommitCommand(opts))
	cmd.AddCommand(newDivisionsCommand(opts))
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

// env is an open database plus the service built on it.
type env struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	service *core.Service
}

// openEnv loads configuration and connects to the database.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := core.NewPostgresStore(pool)
	return &env{
		cfg:     cfg,
		pool:    pool,
		service: core.NewService(store, core.OptionsFromConfig(cfg), nil),
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
}

// actorContext attaches the CLI caller to ctx.
func (o *rootOptions) actorContext(ctx context.Context) context.Context {
	return core.ContextWithActor(ctx, core.Actor{ID: o.actorID, Role: o.role})
}

func readRosterFile(path string, opts core.ParseOptions) (*core.RosterFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return core.ParseRoster(f, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
