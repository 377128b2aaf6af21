package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/export"
	"github.com/iksnae/agent-chat/internal/render"
)

const textFormat = "text"

var (
	sessionSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginTop(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

// showOptions controls how a snapshot is printed
type showOptions struct {
	Width    int
	Limit    int
	MaxRows  int
	ImageDir string
}

// showSnapshot prints the transcript followed by every result and chart
func showSnapshot(w io.Writer, snap internal.Snapshot, opts showOptions) {
	_, _ = fmt.Fprintln(w, render.Header(snap))
	_, _ = fmt.Fprintln(w)

	entries := snap.Transcript
	if opts.Limit > 0 && len(entries) > opts.Limit {
		_, _ = fmt.Fprintln(w, sessionMetaStyle.Render(fmt.Sprintf("(%d earlier entries hidden)", len(entries)-opts.Limit)))
		entries = entries[len(entries)-opts.Limit:]
	}
	if len(entries) > 0 {
		_, _ = fmt.Fprintln(w, render.Transcript(entries, opts.Width))
	}

	if len(snap.Results) > 0 {
		_, _ = fmt.Fprintln(w, sessionSectionStyle.Render(fmt.Sprintf("📊 Results (%d)", len(snap.Results))))
		for _, r := range snap.Results {
			_, _ = fmt.Fprintln(w, render.Result(r, opts.MaxRows))
			_, _ = fmt.Fprintln(w)
		}
	}

	if len(snap.Suggestions) > 0 {
		_, _ = fmt.Fprintln(w, sessionSectionStyle.Render(fmt.Sprintf("📈 Charts (%d)", len(snap.Suggestions))))
		normalizer := internal.NewNormalizer()
		for _, s := range snap.Suggestions {
			out := normalizer.Prepare(s, snap.Results)
			_, _ = fmt.Fprintln(w, render.Chart(out, render.ChartOptions{Width: opts.Width, ImageDir: opts.ImageDir}))
			_, _ = fmt.Fprintln(w)
		}
	}
}

// writeSnapshot writes snap in format to w, or to a file under outPath when
// it is set. The text format prints the rendered terminal view.
func writeSnapshot(w io.Writer, snap internal.Snapshot, format, outPath string, opts showOptions) error {
	if format == "" || format == textFormat {
		if outPath == "" {
			showSnapshot(w, snap, opts)
			return nil
		}
		return fmt.Errorf("--out requires a structured --format (jsonl, md, yaml, json)")
	}

	exporter, err := export.NewExporter(format)
	if err != nil {
		return err
	}
	if outPath == "" {
		if err := exporter.Export(&snap, w); err != nil {
			return &internal.ExportError{Format: format, Err: err}
		}
		return nil
	}

	if info, statErr := os.Stat(outPath); statErr == nil && info.IsDir() {
		name := snap.SessionID
		if name == "" {
			name = "transcript"
		}
		outPath = filepath.Join(outPath, fmt.Sprintf("session_%s.%s", name, exporter.Extension()))
	} else if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &internal.ExportError{Format: format, Path: outPath, Err: err}
	}

	file, err := os.Create(outPath)
	if err != nil {
		return &internal.ExportError{Format: format, Path: outPath, Err: err}
	}
	if err := exporter.Export(&snap, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: format, Path: outPath, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: format, Path: outPath, Err: err}
	}
	internal.PrintSuccess(fmt.Sprintf("Exported session to %s", outPath))
	return nil
}
