package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
	postgresChat "github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/workflow"
)

func newWorkflowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Document workflow maintenance",
	}

	var file string
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a saved workflow callback body",
		Long: `Reads a callback body ({chatId, answersData | n8nData}) from --file and
appends its result to the chat. Replaying a result that was already recorded
is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var cb chatSvc.WorkflowCallback
			if err := json.Unmarshal(raw, &cb); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if err := cb.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, repoConfig, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			threads := postgresChat.NewThreadRepository(repoConfig)
			messages := postgresChat.NewMessageRepository(repoConfig)
			statuses := workflow.NewStatusTracker(cache.NewLRU[chatModels.WorkflowStatus](1, time.Minute))
			reconciler := workflow.NewReconciler(threads, messages, postgres.NewTransactionManager(pool, a.logger), statuses, a.logger)

			msg, created, err := reconciler.Reconcile(ctx, cb.ChatID, workflow.ParseResult(cb.Payload()))
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "appended result message %s to chat %s\n", msg.ID, cb.ChatID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "chat %s already has result message %s\n", cb.ChatID, msg.ID)
			}
			return nil
		},
	}
	reconcile.Flags().StringVarP(&file, "file", "f", "", "path to the callback JSON (required)")
	_ = reconcile.MarkFlagRequired("file")

	cmd.AddCommand(reconcile)
	return cmd
}
