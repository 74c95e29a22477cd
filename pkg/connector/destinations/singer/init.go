package singer

import (
	"github.com/ajitpratap0/tap-monday/pkg/connector/registry"
)

func init() {
	// Register Singer destination factory
	registry.RegisterDestination(ConnectorName, NewSingerDestination)

	// Register connector info
	registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        ConnectorName,
		Type:        "destination",
		Description: "Writes SCHEMA, RECORD and STATE messages as line-delimited JSON to stdout or a file",
		Version:     ConnectorVersion,
		Capabilities: []string{
			"streaming",
			"json_lines",
			"compression",
		},
		ConfigSchema: map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Output file; standard output when empty. .gz, .sz, .lz4 and .zst select compression",
			},
			"buffer_size": map[string]interface{}{
				"type":        "integer",
				"required":    false,
				"default":     65536,
				"description": "Buffer size for writing (bytes)",
			},
		},
	})
}
