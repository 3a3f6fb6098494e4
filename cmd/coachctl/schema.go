package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
)

func newSchemaCmd(a *app) *cobra.Command {
	var drop bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the thread, message and memory tables",
		Long: `Creates the pgvector extension and the prefixed tables for the current
ENVIRONMENT (or TABLE_PREFIX). With --drop the tables are dropped instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, repoConfig, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if drop {
				if err := postgres.DropSchema(ctx, pool, repoConfig.Tables); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dropped tables with prefix %q\n", a.cfg.TablePrefix)
				return nil
			}

			if err := postgres.EnsureSchema(ctx, pool, repoConfig.Tables, a.cfg.TablePrefix, a.cfg.EmbeddingDimensions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (prefix %q, %d-dim embeddings)\n", a.cfg.TablePrefix, a.cfg.EmbeddingDimensions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the tables instead of creating them")
	return cmd
}
