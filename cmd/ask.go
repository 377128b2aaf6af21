package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/api"
	"github.com/iksnae/agent-chat/internal/render"
	"github.com/spf13/cobra"
)

var (
	askFormat string
	askOut    string
	askWait   time.Duration
	askWidth  int
	askLimit  int
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and print the agent's answer",
	Long: `Connect to the agent, send one question and wait until the turn ends.

The transcript, query results and chart suggestions are printed in the
terminal, or exported in a structured format with --format.

Prefix the question with a display context the same way the chat screen does:
  ---DISPLAY_CONTEXT START---Q3 dashboard---DISPLAY_CONTEXT END---QUERY START---why?`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		ctx, cancel := context.WithTimeout(cmd.Context(), askWait)
		defer cancel()

		session, client, err := connectSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		err = internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
			{
				Message: "Connecting to the agent",
				Fn:      func() error { return waitForSessionID(ctx, session, client) },
			},
			{
				Message: "Waiting for the answer",
				Fn: func() error {
					submitter := api.NewClient(cfg.APIURL, cfg.RequestTimeout)
					if err := session.SendMessage(ctx, submitter, question); err != nil {
						return err
					}
					return waitIdle(ctx, session)
				},
			},
		})

		snap := session.Snapshot()
		if len(snap.Transcript) > 0 {
			if writeErr := writeSnapshot(cmd.OutOrStdout(), snap, askFormat, askOut, showOptions{
				Width:    askWidth,
				Limit:    askLimit,
				MaxRows:  render.DefaultMaxRows,
				ImageDir: cfg.ImageDir,
			}); writeErr != nil {
				return writeErr
			}
		}
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askFormat, "format", "f", textFormat, "Output format (text, jsonl, md, yaml, json)")
	askCmd.Flags().StringVarP(&askOut, "out", "o", "", "Write the export to this file or directory")
	askCmd.Flags().DurationVar(&askWait, "wait", 2*time.Minute, "Maximum time to wait for the turn to finish")
	askCmd.Flags().IntVar(&askWidth, "width", 100, "Rendering width for text output")
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 0, "Only print the last N transcript entries")
}
