package monday

import (
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/connector/registry"
)

func init() {
	// Register Monday source connector in the global registry
	registry.RegisterSource(ConnectorName, func(cfg *config.BaseConfig) (core.Source, error) {
		return NewMondaySource(ConnectorName, cfg)
	})

	streams := make([]string, 0, len(Streams()))
	for _, def := range Streams() {
		streams = append(streams, def.Name)
	}

	registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         ConnectorName,
		Type:         string(core.ConnectorTypeSource),
		Description:  "Extracts workspaces, boards, items, columns, groups and views from the Monday.com GraphQL API",
		Version:      ConnectorVersion,
		Capabilities: []string{"discover", "catalog", "state"},
		Streams:      streams,
		ConfigSchema: map[string]interface{}{
			"type":     "object",
			"required": []string{config.KeyAuthToken},
			"properties": map[string]interface{}{
				config.KeyAuthToken: map[string]interface{}{
					"type":        "string",
					"description": "Monday.com API token",
					"secret":      true,
				},
				config.KeyBoardLimit: map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": config.MaxPageSize,
					"default": config.DefaultBoardLimit,
				},
				config.KeyItemLimit: map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": config.MaxPageSize,
					"default": config.DefaultItemLimit,
				},
				config.KeyWorkspaceLimit: map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": config.MaxPageSize,
					"default": config.DefaultWorkspaceLimit,
				},
				config.KeyAPIURL: map[string]interface{}{
					"type":    "string",
					"default": config.DefaultAPIURL,
				},
				config.KeyAPIVersion: map[string]interface{}{"type": "string"},
				config.KeyUserAgent:  map[string]interface{}{"type": "string"},
				"request_timeout": map[string]interface{}{
					"type":    "string",
					"default": "30s",
				},
				"rate_limit_per_sec": map[string]interface{}{
					"type":    "integer",
					"minimum": 0,
				},
			},
		},
	})
}
