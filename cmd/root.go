package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/config"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	wsURL      string
	apiURL     string
	logFile    string
	imageDir   string
	timeout    time.Duration
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is loaded before every command runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agent-chat",
	Short: "Chat with a data-analysis agent from the terminal",
	Long: `A terminal client for a data-analysis agent.

Questions are posted to the agent's chat endpoint while progress, query
results, the final insight and chart suggestions stream back over a
WebSocket event channel.

Features:
  • Interactive chat with live status, result tables and charts
  • One-shot questions for scripts (text, JSON, JSONL, Markdown, YAML)
  • Offline replay of recorded event logs
  • Terminal rendering of bar, line, scatter and pie suggestions

Quick Start:
  agent-chat chat --ws-url ws://localhost:8000/ws      # Interactive session
  agent-chat ask "How did revenue change last quarter?"
  agent-chat healthcheck                              # Check connectivity

Settings come from flags, AGENTCHAT_* environment variables (a .env file is
read), or a YAML file passed with --config.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)

		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		if loaded.LogFile != "" {
			internal.ConfigureLogFile(loaded.LogFile)
		}
		if !verbose {
			internal.SetLogLevel(internal.ParseLogLevel(loaded.LogLevel))
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		internal.SyncLogs()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "", "Agent event channel URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Chat endpoint URL (derived from --ws-url when unset)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&imageDir, "image-dir", "", "Directory where image charts are saved")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Chat request timeout")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
