package config

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

const (
	// DefaultAPIURL is the Monday GraphQL endpoint
	DefaultAPIURL = "https://api.monday.com/v2"
	// DefaultAPIVersion is the API-Version header sent when none is configured.
	// The item query reads boards.items(limit, page), which later versions
	// replace with items_page.
	DefaultAPIVersion = "2023-10"
	// DefaultBoardLimit is the boards page size
	DefaultBoardLimit = 10
	// DefaultItemLimit is the items page size
	DefaultItemLimit = 25
	// DefaultWorkspaceLimit is the workspaces page size
	DefaultWorkspaceLimit = 25
	// MaxPageSize is the largest page the Monday API accepts
	MaxPageSize = 500
)

// Credential keys understood by the monday source.
const (
	KeyAuthToken      = "auth_token"
	KeyAPIURL         = "api_url"
	KeyAPIVersion     = "api_version"
	KeyUserAgent      = "user_agent"
	KeyBoardLimit     = "board_limit"
	KeyItemLimit      = "item_limit"
	KeyWorkspaceLimit = "workspace_limit"
	KeyPath           = "path"
)

// TapConfig is the flat config file a Singer orchestrator hands to the tap.
type TapConfig struct {
	AuthToken       string        `mapstructure:"auth_token" json:"auth_token" yaml:"auth_token"`
	BoardLimit      int           `mapstructure:"board_limit" json:"board_limit" yaml:"board_limit"`
	ItemLimit       int           `mapstructure:"item_limit" json:"item_limit" yaml:"item_limit"`
	WorkspaceLimit  int           `mapstructure:"workspace_limit" json:"workspace_limit" yaml:"workspace_limit"`
	APIURL          string        `mapstructure:"api_url" json:"api_url" yaml:"api_url"`
	APIVersion      string        `mapstructure:"api_version" json:"api_version" yaml:"api_version"`
	UserAgent       string        `mapstructure:"user_agent" json:"user_agent" yaml:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	RateLimitPerSec int           `mapstructure:"rate_limit_per_sec" json:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
	OutputPath      string        `mapstructure:"output_path" json:"output_path" yaml:"output_path"`
	EnableTracing   bool          `mapstructure:"enable_tracing" json:"enable_tracing" yaml:"enable_tracing"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// NewTapConfig returns a TapConfig holding the defaults.
func NewTapConfig() *TapConfig {
	return &TapConfig{
		BoardLimit:     DefaultBoardLimit,
		ItemLimit:      DefaultItemLimit,
		WorkspaceLimit: DefaultWorkspaceLimit,
		APIURL:         DefaultAPIURL,
		APIVersion:     DefaultAPIVersion,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// Validate fails on the first invalid option. It runs before any client is
// built, so a bad config never reaches the network.
func (c *TapConfig) Validate() error {
	if c.AuthToken == "" {
		return errors.New(errors.ErrorTypeConfig, "auth_token is required")
	}
	limits := []struct {
		name  string
		value int
	}{
		{KeyBoardLimit, c.BoardLimit},
		{KeyItemLimit, c.ItemLimit},
		{KeyWorkspaceLimit, c.WorkspaceLimit},
	}
	for _, l := range limits {
		if err := ValidatePageSize(l.name, l.value); err != nil {
			return err
		}
	}
	if c.APIURL == "" {
		return errors.New(errors.ErrorTypeConfig, "api_url cannot be empty")
	}
	if c.RequestTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "request_timeout cannot be negative")
	}
	if c.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit_per_sec cannot be negative")
	}
	return nil
}

// ValidatePageSize checks that a page size is within what the API accepts.
func ValidatePageSize(name string, value int) error {
	if value < 1 || value > MaxPageSize {
		return errors.Newf(errors.ErrorTypeConfig, "%s must be between 1 and %d, got %d", name, MaxPageSize, value).
			WithDetail("option", name)
	}
	return nil
}

// SourceConfig converts the tap options into the monday source configuration.
func (c *TapConfig) SourceConfig() *BaseConfig {
	cfg := NewBaseConfig("monday", "source")
	cfg.Performance.BatchSize = c.ItemLimit
	if c.RequestTimeout > 0 {
		cfg.Timeouts.Request = c.RequestTimeout
	}
	cfg.Reliability.RateLimitPerSec = c.RateLimitPerSec
	cfg.Observability.EnableTracing = c.EnableTracing
	if c.LogLevel != "" {
		cfg.Observability.LogLevel = c.LogLevel
	}

	creds := cfg.Security.Credentials
	creds[KeyAuthToken] = c.AuthToken
	creds[KeyAPIURL] = c.APIURL
	creds[KeyBoardLimit] = strconv.Itoa(c.BoardLimit)
	creds[KeyItemLimit] = strconv.Itoa(c.ItemLimit)
	creds[KeyWorkspaceLimit] = strconv.Itoa(c.WorkspaceLimit)
	if c.APIVersion != "" {
		creds[KeyAPIVersion] = c.APIVersion
	}
	if c.UserAgent != "" {
		creds[KeyUserAgent] = c.UserAgent
	}
	return cfg
}

// DestinationConfig converts the tap options into the singer destination
// configuration. An empty output path means standard output.
func (c *TapConfig) DestinationConfig() *BaseConfig {
	cfg := NewBaseConfig("singer", "destination")
	cfg.Security.AuthType = "none"
	if c.OutputPath != "" {
		cfg.Security.Credentials[KeyPath] = c.OutputPath
	}
	if c.LogLevel != "" {
		cfg.Observability.LogLevel = c.LogLevel
	}
	return cfg
}
