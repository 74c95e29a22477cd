package config

import (
	"time"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

// BaseConfig is the configuration structure that all connectors use.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the connector type (e.g., "monday", "singer")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Performance settings control page sizes and buffering
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for rate limiting
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Security configuration for authentication and connector options
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Advanced features
	Advanced AdvancedConfig `yaml:"advanced" json:"advanced"`
}

// PerformanceConfig contains all performance-related settings.
type PerformanceConfig struct {
	// BatchSize is the default page size for paginated requests
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the size of output write buffers in bytes
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// TimeoutConfig contains all timeout-related settings.
// These prevent operations from hanging indefinitely.
type TimeoutConfig struct {
	// Request timeout for individual operations
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
}

// ReliabilityConfig contains rate limiting settings.
type ReliabilityConfig struct {
	// RateLimitPerSec limits operations per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateLimitBurst allows short bursts above the steady rate
	RateLimitBurst int `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// SecurityConfig contains authentication settings and connector options.
type SecurityConfig struct {
	// AuthType specifies authentication method (token, none)
	AuthType string `yaml:"auth_type" json:"auth_type"`
	// Credentials stores connector options keyed by their config file name
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates request tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	// ProgressInterval sets how often read progress is logged
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// AdvancedConfig contains optional features.
type AdvancedConfig struct {
	// EnableCompression activates output compression
	EnableCompression bool `yaml:"enable_compression" json:"enable_compression"`
	// CompressionAlgorithm selects compression type (gzip, zstd, lz4)
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	// CompressionLevel sets compression ratio vs speed (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
//
// Example:
//
//	cfg := config.NewBaseConfig("monday", "source")
//	cfg.Performance.BatchSize = 50
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:  DefaultItemLimit,
			BufferSize: 64 * 1024,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RateLimitPerSec: 0,
			RateLimitBurst:  1,
		},
		Security: SecurityConfig{
			AuthType:    "token",
			Credentials: make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 1.0,
			ProgressInterval:  10 * time.Second,
		},
		Advanced: AdvancedConfig{
			EnableCompression: false,
			CompressionLevel:  5,
		},
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if bc.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if bc.Timeouts.Request < 0 {
		return errors.New(errors.ErrorTypeConfig, "request timeout cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit_per_sec cannot be negative")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// Credential returns a connector option, or fallback when it is unset
func (s *SecurityConfig) Credential(key, fallback string) string {
	if v, ok := s.Credentials[key]; ok && v != "" {
		return v
	}
	return fallback
}

// IsCompressionEnabled returns true if compression should be used
func (a *AdvancedConfig) IsCompressionEnabled() bool {
	return a.EnableCompression && a.CompressionAlgorithm != ""
}
