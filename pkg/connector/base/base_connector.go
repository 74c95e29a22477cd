// Package base provides the BaseConnector that tap-monday connectors embed.
// It implements the shared lifecycle: configuration, rate limiting, state,
// metrics collection and progress reporting.
//
// # Usage
//
// Connectors embed BaseConnector to inherit its functionality:
//
//	type MySource struct {
//	    *base.BaseConnector
//	    // connector-specific fields
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{
//	        BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
//
// # Lifecycle
//
// 1. Create with NewBaseConnector
// 2. Initialize with Initialize()
// 3. Use throughout connector operations
// 4. Close with Close()
package base

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-monday/pkg/clients"
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	"github.com/ajitpratap0/tap-monday/pkg/logger"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
)

// BaseConnector provides common functionality for all connectors.
type BaseConnector struct {
	// Core fields
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	// State management
	state      core.State
	stateMutex sync.RWMutex

	// Resource management
	closed     bool
	closeMutex sync.Mutex

	rateLimiter      clients.RateLimiter
	metricsCollector *metrics.Collector
	progressReporter *ProgressReporter
}

// NewBaseConnector creates a new base connector with the specified name, type, and version.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		state:         make(core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize validates the configuration and sets up the rate limiter,
// metrics collector and progress reporter.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bc.config = cfg
	bc.logger = logger.Get().With(
		zap.String("connector", bc.name),
		zap.String("type", string(bc.connectorType)),
	)

	burst := cfg.Reliability.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	bc.rateLimiter = clients.NewRateLimiter(float64(cfg.Reliability.RateLimitPerSec), burst)
	bc.metricsCollector = metrics.NewCollector(bc.name)
	bc.progressReporter = NewProgressReporter(bc.logger, bc.metricsCollector, cfg.Observability.ProgressInterval)

	bc.logger.Debug("connector initialized",
		zap.Int("rate_limit_per_sec", cfg.Reliability.RateLimitPerSec),
		zap.Duration("request_timeout", cfg.Timeouts.Request))
	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of the current state
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.state.Clone()
}

// SetState replaces the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()
	if state == nil {
		state = make(core.State)
	}
	bc.state = state.Clone()
	return nil
}

// UpdateState applies fn to the state under the state lock
func (bc *BaseConnector) UpdateState(fn func(state core.State)) {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()
	fn(bc.state)
}

// Health reports whether the connector can still be used
func (bc *BaseConnector) Health(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	if bc.closed {
		return errors.New(errors.ErrorTypeInternal, "connector is closed")
	}
	if bc.config == nil {
		return errors.New(errors.ErrorTypeConfig, "connector is not initialized")
	}
	return nil
}

// Metrics returns collected metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	out := map[string]interface{}{
		"name":    bc.name,
		"type":    string(bc.connectorType),
		"version": bc.version,
	}
	if bc.metricsCollector != nil {
		for k, v := range bc.metricsCollector.GetAll() {
			out[k] = v
		}
	}
	if bc.rateLimiter != nil {
		out["rate_limiter"] = bc.rateLimiter.GetStats()
	}
	return out
}

// Close stops progress reporting; it is safe to call more than once
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	if bc.closed {
		return nil
	}
	bc.closed = true
	if bc.progressReporter != nil {
		bc.progressReporter.Stop()
	}
	bc.logger.Debug("connector closed")
	return nil
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetRateLimiter returns the connector rate limiter
func (bc *BaseConnector) GetRateLimiter() clients.RateLimiter {
	return bc.rateLimiter
}

// GetMetricsCollector returns the connector metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// GetProgressReporter returns the connector progress reporter
func (bc *BaseConnector) GetProgressReporter() *ProgressReporter {
	return bc.progressReporter
}
