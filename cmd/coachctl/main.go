// Command coachctl is the admin CLI: schema management, memory wipes,
// replaying workflow results and chatting with a running server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is shared state for subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Admin tool for the coaching chat backend",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSchemaCmd(a),
		newMemoriesCmd(a),
		newWorkflowCmd(a),
		newChatCmd(a),
	)
	return root
}

// connect opens the database configured by SUPABASE_DB_URL.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, *postgres.RepositoryConfig, error) {
	if a.cfg.SupabaseDBURL == "" {
		return nil, nil, fmt.Errorf("SUPABASE_DB_URL is not set")
	}
	pool, err := postgres.CreateConnectionPool(ctx, a.cfg.SupabaseDBURL)
	if err != nil {
		return nil, nil, err
	}
	return pool, &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(a.cfg.TablePrefix),
		Logger: a.logger,
	}, nil
}
