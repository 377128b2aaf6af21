package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/render"
	"github.com/spf13/cobra"
)

var (
	chartSuggestionPath string
	chartResultsPath    string
	chartWidth          int
	chartHeight         int
)

// chartCmd represents the chart command
var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a chart suggestion against saved query results",
	Long: `Normalize a chart suggestion, match it to one of the given query results
and draw it in the terminal.

--suggestion takes a JSON file with one suggestion or a list of them, in any
of the shapes the agent sends (nested "columns" or flat x_axis/y_axis).
--results takes a JSON file with one result or a list of results
({"objective", "query", "columns", "rows"}).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suggestions, err := readSuggestions(chartSuggestionPath)
		if err != nil {
			return err
		}
		var results []internal.TabularResult
		if chartResultsPath != "" {
			if results, err = readResults(chartResultsPath); err != nil {
				return err
			}
		} else {
			internal.PrintInfo("No --results given; plot charts have no data to draw")
		}

		normalizer := internal.NewNormalizer()
		out := cmd.OutOrStdout()
		for i, s := range suggestions {
			outcome := normalizer.Prepare(s, results)
			internal.LogDebug("Chart %d %q: %s", i+1, s.Title, outcome.Status)
			_, _ = fmt.Fprintln(out, render.Chart(outcome, render.ChartOptions{
				Width:    chartWidth,
				Height:   chartHeight,
				ImageDir: cfg.ImageDir,
			}))
			_, _ = fmt.Fprintln(out)
		}
		return nil
	},
}

func readSuggestions(path string) ([]internal.ChartSuggestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestion file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var list []internal.ChartSuggestion
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, &internal.ChartError{Err: fmt.Errorf("invalid suggestion list: %w", err)}
		}
		return list, nil
	}
	var one internal.ChartSuggestion
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, &internal.ChartError{Err: fmt.Errorf("invalid suggestion: %w", err)}
	}
	return []internal.ChartSuggestion{one}, nil
}

func readResults(path string) ([]internal.TabularResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var list []internal.TabularResult
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("invalid results list: %w", err)
		}
		return list, nil
	}
	var one internal.TabularResult
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("invalid result: %w", err)
	}
	return []internal.TabularResult{one}, nil
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVarP(&chartSuggestionPath, "suggestion", "s", "", "JSON file with the chart suggestion(s)")
	chartCmd.Flags().StringVarP(&chartResultsPath, "results", "r", "", "JSON file with the query result(s)")
	chartCmd.Flags().IntVar(&chartWidth, "width", 80, "Chart width in columns")
	chartCmd.Flags().IntVar(&chartHeight, "height", 12, "Chart height in rows for line and scatter charts")
	_ = chartCmd.MarkFlagRequired("suggestion")
}
