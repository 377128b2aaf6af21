package cmd

import (
	"fmt"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/api"
	"github.com/iksnae/agent-chat/internal/ui"
	"github.com/spf13/cobra"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Open the interactive chat screen.

Keys:
  enter        send the message
  tab          switch between transcript, results and charts
  ctrl+n/p     next / previous result or chart
  ctrl+a       send the next message as a follow-up on the selected result
  pgup/pgdown  scroll
  esc          quit

Logs go to --log-file (or log_file) so they never draw over the screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.LogFile == "" {
			internal.SetLogLevel(internal.LogLevelError)
		}

		ctx := cmd.Context()
		session, client, err := connectSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		err = ui.Run(ctx, ui.Options{
			Session:   session,
			Submitter: api.NewClient(cfg.APIURL, cfg.RequestTimeout),
			Timeout:   cfg.RequestTimeout,
			ImageDir:  cfg.ImageDir,
			PageSize:  cfg.PageSize,
		})
		if err != nil {
			return fmt.Errorf("chat screen failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
