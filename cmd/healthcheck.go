package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/api"
	"github.com/iksnae/agent-chat/internal/channel"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
	healthcheckWait    time.Duration
)

var (
	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration and connectivity to the agent",
	Long: `Check the health of agent-chat by verifying:
  • Configuration (event channel URL, chat endpoint, timeouts)
  • Event channel handshake
  • Session announcement on the event channel
  • Chat endpoint reachability

This command is useful for debugging connection issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, sectionStyle.Render("🔍 Agent Chat Health Check"))
		_, _ = fmt.Fprintln(out)

		// Step 1: Configuration
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 1: Validating configuration..."))
		if err := cfg.Validate(); err != nil {
			internal.LogError("Invalid configuration: %v", err)
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Configuration is invalid:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Configuration is valid"))
		if healthcheckVerbose {
			_, _ = fmt.Fprintf(out, "   Event channel: %s\n", cfg.WSURL)
			_, _ = fmt.Fprintf(out, "   Chat endpoint: %s\n", cfg.APIURL)
			_, _ = fmt.Fprintf(out, "   Request timeout: %s\n", cfg.RequestTimeout)
		}
		_, _ = fmt.Fprintln(out)

		ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckWait)
		defer cancel()

		// Step 2: Event channel handshake
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 2: Opening the event channel..."))
		session := internal.NewChatSession()
		client, err := channel.Dial(ctx, cfg.WSURL, channel.WithStateHandler(session.SetConnectionState))
		if err != nil {
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Failed to open the event channel:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer func() { _ = client.Close() }()
		go channel.Forward(ctx, client, session)
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Event channel is open"))
		_, _ = fmt.Fprintln(out)

		// Step 3: Session announcement
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 3: Waiting for a session id..."))
		sessionOK := true
		if err := waitForSessionID(ctx, session, client); err != nil {
			sessionOK = false
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  No session announced:"), err)
		} else {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Session announced"))
			if healthcheckVerbose {
				_, _ = fmt.Fprintf(out, "   Session: %s\n", session.SessionID())
			}
		}
		_, _ = fmt.Fprintln(out)

		// Step 4: Chat endpoint
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 4: Checking the chat endpoint..."))
		apiOK := true
		status, err := api.NewClient(cfg.APIURL, cfg.RequestTimeout).Ping(ctx)
		if err != nil {
			apiOK = false
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Chat endpoint is not reachable:"), err)
		} else {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Chat endpoint is reachable"))
			if healthcheckVerbose {
				_, _ = fmt.Fprintf(out, "   HTTP status for GET: %d\n", status)
			}
		}
		_, _ = fmt.Fprintln(out)

		// Summary
		_, _ = fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		_, _ = fmt.Fprintln(out)

		switch {
		case sessionOK && apiOK:
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			return nil
		case apiOK:
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Connected, but the agent did not announce a session"))
			_, _ = fmt.Fprintln(out, "   • Messages cannot be sent until a session id arrives")
			return nil
		default:
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			_, _ = fmt.Fprintln(out, "   • The chat endpoint cannot accept messages")
			return fmt.Errorf("health check failed: chat endpoint unreachable")
		}
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "verbose", "v", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckWait, "wait", 10*time.Second, "How long to wait for the agent")
}
