package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iksnae/agent-chat/internal"
)

// YAMLExporter exports a session snapshot in YAML format
type YAMLExporter struct{}

// Export writes the snapshot as one YAML document. Image payloads are left
// out; numeric cells keep their wire spelling.
func (e *YAMLExporter) Export(snap *internal.Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(snap)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
