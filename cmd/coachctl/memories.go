package main

import (
	"fmt"

	"github.com/spf13/cobra"

	postgresChat "github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres/chat"
)

func newMemoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Manage long-term user memories",
	}

	var userID string
	wipe := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every memory of one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, repoConfig, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			deleted, err := postgresChat.NewMemoryRepository(repoConfig).DeleteUserMemories(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d memories for user %s\n", deleted, userID)
			return nil
		},
	}
	wipe.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = wipe.MarkFlagRequired("user")

	cmd.AddCommand(wipe)
	return cmd
}
