package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	tu "github.com/ajitpratap0/tap-monday/pkg/testutil"
)

func newInitialized(t *testing.T) *BaseConnector {
	t.Helper()
	tu.UseTestLogger(t)
	bc := NewBaseConnector("monday", core.ConnectorTypeSource, "1.0.0")
	require.NoError(t, bc.Initialize(context.Background(), config.NewBaseConfig("monday", "source")))
	t.Cleanup(func() { _ = bc.Close(context.Background()) })
	return bc
}

func TestInitializeValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.BaseConfig
		errMsg string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing name", &config.BaseConfig{Type: "source"}, "name is required"},
		{"negative rate limit", func() *config.BaseConfig {
			cfg := config.NewBaseConfig("monday", "source")
			cfg.Reliability.RateLimitPerSec = -1
			return cfg
		}(), "rate_limit_per_sec cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBaseConnector("monday", core.ConnectorTypeSource, "1.0.0")
			err := bc.Initialize(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Error(t, bc.Health(context.Background()))
		})
	}
}

func TestStateIsCopied(t *testing.T) {
	bc := newInitialized(t)

	incoming := core.State{"bookmarks": map[string]interface{}{"items": map[string]interface{}{"page": 3}}}
	require.NoError(t, bc.SetState(incoming))
	incoming.Bookmarks()["boards"] = "mutated"

	bc.UpdateState(func(state core.State) {
		state.Bookmarks()["boards"] = map[string]interface{}{"page": 1}
	})

	got := bc.GetState()
	assert.Equal(t, map[string]interface{}{"page": 3}, got.Bookmarks()["items"])
	assert.Equal(t, map[string]interface{}{"page": 1}, got.Bookmarks()["boards"])

	got.Bookmarks()["items"] = nil
	assert.NotNil(t, bc.GetState().Bookmarks()["items"], "GetState returns a copy")
}

func TestCloseIsIdempotent(t *testing.T) {
	bc := newInitialized(t)
	require.NoError(t, bc.Health(context.Background()))

	require.NoError(t, bc.Close(context.Background()))
	require.NoError(t, bc.Close(context.Background()))
	assert.Error(t, bc.Health(context.Background()))
}

func TestMetricsIncludeCollectorAndLimiter(t *testing.T) {
	bc := newInitialized(t)
	bc.GetProgressReporter().IncrementProcessed(4)

	m := bc.Metrics()
	assert.Equal(t, "monday", m["name"])
	assert.Equal(t, int64(4), m["records_processed"])
	assert.Contains(t, m, "rate_limiter")
}

func TestProgressReporterStopsOnce(t *testing.T) {
	tu.UseTestLogger(t)
	pr := NewProgressReporter(tu.TestLogger(t), nil, time.Millisecond)
	pr.Start()
	pr.IncrementProcessed(10)
	tu.AssertEventually(t, func() bool { return pr.Throughput() > 0 }, time.Second, "throughput should be positive")
	pr.Stop()
	pr.Stop()
	assert.Equal(t, int64(10), pr.Processed())
}
