package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/agent-chat/internal"
)

// JSONExporter exports a session snapshot as pretty-printed JSON
type JSONExporter struct{}

// Export writes the whole snapshot as one JSON document
func (e *JSONExporter) Export(snap *internal.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(snap)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
