package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/render"
	"github.com/spf13/cobra"
)

const maxEventLine = 8 << 20

var (
	replayFormat string
	replayOut    string
	replayWidth  int
	replayLimit  int
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Fold a recorded event log and show or export the result",
	Long: `Replay a recorded event channel log (one JSON event per line) through the
same state machine the chat uses, then print or export the outcome.

Lines that are not valid events are logged and skipped. Use "-" to read
from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open event log: %w", err)
			}
			defer func() { _ = file.Close() }()
			in = file
		}

		session := internal.NewChatSession()
		applied, skipped, err := replayEvents(in, session)
		if err != nil {
			return err
		}
		internal.LogInfo("Replayed %d event(s), skipped %d", applied, skipped)
		if skipped > 0 {
			internal.PrintWarning(fmt.Sprintf("Skipped %d line(s) that are not valid events", skipped))
		}

		return writeSnapshot(cmd.OutOrStdout(), session.Snapshot(), replayFormat, replayOut, showOptions{
			Width:    replayWidth,
			Limit:    replayLimit,
			MaxRows:  render.DefaultMaxRows,
			ImageDir: cfg.ImageDir,
		})
	},
}

// replayEvents applies every decodable line of r to session, in order
func replayEvents(r io.Reader, session *internal.ChatSession) (applied, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ev, decodeErr := internal.DecodeEvent([]byte(text))
		if decodeErr != nil {
			internal.LogWarn("Skipping line %d: %v", line, decodeErr)
			skipped++
			continue
		}
		session.Apply(ev)
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, skipped, fmt.Errorf("failed to read event log: %w", err)
	}
	return applied, skipped, nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", textFormat, "Output format (text, jsonl, md, yaml, json)")
	replayCmd.Flags().StringVarP(&replayOut, "out", "o", "", "Write the export to this file or directory")
	replayCmd.Flags().IntVar(&replayWidth, "width", 100, "Rendering width for text output")
	replayCmd.Flags().IntVarP(&replayLimit, "limit", "n", 0, "Only print the last N transcript entries")
}
