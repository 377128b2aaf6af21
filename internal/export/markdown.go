package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/agent-chat/internal"
)

// MarkdownExporter exports a session snapshot as a Markdown report
type MarkdownExporter struct{}

// Export writes the transcript, query results and chart suggestions
func (e *MarkdownExporter) Export(snap *internal.Snapshot, w io.Writer) error {
	title := snap.SessionID
	if title == "" {
		title = "(no session)"
	}
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", title)
	_, _ = fmt.Fprintf(w, "**Entries:** %d  \n", len(snap.Transcript))
	_, _ = fmt.Fprintf(w, "**Results:** %d  \n", len(snap.Results))
	_, _ = fmt.Fprintf(w, "**Charts:** %d\n\n", len(snap.Suggestions))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Transcript\n\n")

	for i, entry := range snap.Transcript {
		writeEntry(w, entry)

		if i < len(snap.Transcript)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	if len(snap.Results) > 0 {
		_, _ = fmt.Fprintf(w, "## Results\n\n")
		for _, r := range snap.Results {
			writeResult(w, r)
		}
	}

	if len(snap.Suggestions) > 0 {
		_, _ = fmt.Fprintf(w, "## Charts\n\n")
		for _, s := range snap.Suggestions {
			writeSuggestion(w, s)
		}
	}

	return nil
}

func writeEntry(w io.Writer, entry internal.TranscriptEntry) {
	timestamp := ""
	if !entry.CreatedAt.IsZero() {
		timestamp = fmt.Sprintf(" (%s)", entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", entry.Role, timestamp, escapeMarkdown(entry.Content))

	for _, q := range entry.GeneratedQueries {
		_, _ = fmt.Fprintf(w, "- %s\n\n```sql\n%s\n```\n\n", q.Objective, q.Query)
	}
	for _, s := range entry.ReportSections {
		_, _ = fmt.Fprintf(w, "### %s\n\n%s\n\n", s.Title, escapeMarkdown(s.Content))
	}
	if entry.Reasoning != "" {
		_, _ = fmt.Fprintf(w, "> %s\n\n", strings.ReplaceAll(escapeMarkdown(entry.Reasoning), "\n", "\n> "))
	}
}

func writeResult(w io.Writer, r internal.TabularResult) {
	_, _ = fmt.Fprintf(w, "### %s\n\n", r.Objective)
	if r.Platform != "" {
		_, _ = fmt.Fprintf(w, "**Platform:** %s\n\n", r.Platform)
	}
	if r.Query != "" && r.Query != "N/A" {
		_, _ = fmt.Fprintf(w, "```sql\n%s\n```\n\n", r.Query)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "**Error:** %s\n\n", r.Error)
		return
	}
	if len(r.Rows) == 0 {
		_, _ = fmt.Fprintf(w, "_No rows returned._\n\n")
		return
	}

	cols := internal.ColumnsOf(r)
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	_, _ = fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", len(cols)))
	for _, row := range r.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = escapeCell(internal.FormatValue(row[c]))
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	_, _ = fmt.Fprintln(w)
}

func writeSuggestion(w io.Writer, s internal.ChartSuggestion) {
	kind := s.ChartType
	if kind == "" {
		kind = s.Type
	}
	if s.IsImage() {
		kind = "image"
	}
	_, _ = fmt.Fprintf(w, "- **%s** (%s)", s.Title, kind)
	if s.Objective != "" {
		_, _ = fmt.Fprintf(w, " for %s", s.Objective)
	}
	_, _ = fmt.Fprintln(w)
	if s.Description != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", escapeMarkdown(s.Description))
	}
	_, _ = fmt.Fprintln(w)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
