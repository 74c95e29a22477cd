package config_test

import (
	"fmt"

	"github.com/ajitpratap0/tap-monday/pkg/config"
)

// ExampleNewBaseConfig shows the defaults every connector starts from.
func ExampleNewBaseConfig() {
	cfg := config.NewBaseConfig("monday", "source")

	fmt.Printf("Batch Size: %d\n", cfg.Performance.BatchSize)
	fmt.Printf("Connection Timeout: %s\n", cfg.Timeouts.Connection)
	fmt.Printf("Request Timeout: %s\n", cfg.Timeouts.Request)
	fmt.Printf("Rate Limited: %t\n", cfg.Reliability.IsRateLimited())

	// Output:
	// Batch Size: 25
	// Connection Timeout: 10s
	// Request Timeout: 30s
	// Rate Limited: false
}

// ExampleTapConfig_SourceConfig converts tap options into the source config.
func ExampleTapConfig_SourceConfig() {
	tapCfg := config.NewTapConfig()
	tapCfg.AuthToken = "token"
	tapCfg.BoardLimit = 2

	cfg := tapCfg.SourceConfig()
	fmt.Println(cfg.Type)
	fmt.Println(cfg.Security.Credential(config.KeyBoardLimit, ""))
	fmt.Println(cfg.Security.Credential(config.KeyAPIURL, ""))

	// Output:
	// source
	// 2
	// https://api.monday.com/v2
}

// ExampleValidatePageSize shows the error for an out-of-range page size.
func ExampleValidatePageSize() {
	fmt.Println(config.ValidatePageSize(config.KeyItemLimit, 25) == nil)
	fmt.Println(config.ValidatePageSize(config.KeyItemLimit, 501))

	// Output:
	// true
	// config: item_limit must be between 1 and 500, got 501
}
