package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/agent-chat/internal"
)

// JSONLExporter exports a snapshot as one JSON object per line: transcript
// entries first, then results, then chart suggestions
type JSONLExporter struct{}

type jsonlRecord struct {
	Kind       string                    `json:"kind"`
	Entry      *internal.TranscriptEntry `json:"entry,omitempty"`
	Result     *internal.TabularResult   `json:"result,omitempty"`
	Suggestion *internal.ChartSuggestion `json:"suggestion,omitempty"`
}

// Export writes one line per transcript entry, result and suggestion
func (e *JSONLExporter) Export(snap *internal.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)

	for i := range snap.Transcript {
		if err := enc.Encode(jsonlRecord{Kind: "entry", Entry: &snap.Transcript[i]}); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	for i := range snap.Results {
		if err := enc.Encode(jsonlRecord{Kind: "result", Result: &snap.Results[i]}); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	}
	for i := range snap.Suggestions {
		if err := enc.Encode(jsonlRecord{Kind: "suggestion", Suggestion: &snap.Suggestions[i]}); err != nil {
			return fmt.Errorf("failed to encode suggestion: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
