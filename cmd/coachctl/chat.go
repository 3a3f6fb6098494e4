package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/streamclient"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		url    string
		token  string
		tool   string
		chatID string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one turn to a running server and stream the reply",
		Example: `  coachctl chat --token "$JWT" "How should I price a 12-week program?"
  coachctl chat --token "$JWT" --tool hybrid-offer "Let's start"
  coachctl chat --token "$JWT" --chat-id 3f1c... "Therapists in private practice"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("COACH_TOKEN")
			}
			client := streamclient.New(url, streamclient.WithToken(token), streamclient.WithLogger(a.logger))
			out := cmd.OutOrStdout()

			req := &chatSvc.TurnRequest{
				Messages: []chatSvc.IncomingMessage{{Role: "user", Content: strings.Join(args, " ")}},
				Tool:     tool,
				ChatID:   chatID,
			}

			streamed := false
			return client.Stream(cmd.Context(), req, streamclient.Callbacks{
				OnChunk: func(delta, full string) {
					streamed = true
					fmt.Fprint(out, delta)
				},
				OnComplete: func(c streamclient.Completion) {
					if !streamed {
						fmt.Fprint(out, c.Content)
					}
					fmt.Fprintln(out)
					fmt.Fprintf(cmd.ErrOrStderr(), "chat %s", c.ChatID)
					if key, ok := c.Payload["currentQuestionKey"].(string); ok && key != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), " (next question: %s)", key)
					}
					if wf, ok := c.Payload["workflow"].(map[string]interface{}); ok {
						fmt.Fprintf(cmd.ErrOrStderr(), " workflow: %v", wf["status"])
					}
					fmt.Fprintln(cmd.ErrOrStderr())
				},
				OnError: func(err error) {
					fmt.Fprintln(out)
				},
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default $COACH_TOKEN)")
	cmd.Flags().StringVar(&tool, "tool", "", "start a guided tool (hybrid-offer, workshop-generator)")
	cmd.Flags().StringVar(&chatID, "chat-id", "", "continue an existing chat")
	return cmd
}
