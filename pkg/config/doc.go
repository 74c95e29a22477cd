// Package config provides the configuration system for tap-monday.
//
// # Overview
//
// Connectors receive a single BaseConfig structure, the same way regardless
// of whether they read from the Monday API or write Singer messages. It is
// organized into sections:
//
//   - Performance: page sizes and buffering
//   - Timeouts: connection and request timeouts
//   - Reliability: rate limiting
//   - Security: the token and the connector options
//   - Observability: metrics, tracing, logging
//   - Advanced: output compression
//
// # Tap Config File
//
// A Singer orchestrator hands the tap a flat JSON (or YAML) file:
//
//	{
//	  "auth_token": "${MONDAY_TOKEN}",
//	  "board_limit": 10,
//	  "item_limit": 25
//	}
//
// LoadTapConfig reads it with viper, substitutes ${VAR} references, applies
// TAP_MONDAY_<KEY> environment overrides and validates the result. Page
// sizes must lie between 1 and MaxPageSize; auth_token is required.
//
// # Converting to Connector Configs
//
//	tapCfg, err := config.LoadTapConfig("config.json")
//	if err != nil {
//	    return err
//	}
//	source, _ := registry.CreateSource("monday", tapCfg.SourceConfig())
//	dest, _ := registry.CreateDestination("singer", tapCfg.DestinationConfig())
//
// SourceConfig stores the tap options in Security.Credentials under the
// Key* constants; connectors read them back with SecurityConfig.Credential.
package config
