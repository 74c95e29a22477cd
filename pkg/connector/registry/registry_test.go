package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

type stubDestination struct {
	cfg *config.BaseConfig
}

func (s *stubDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error { return nil }
func (s *stubDestination) Write(ctx context.Context, stream *core.RecordStream) error { return nil }
func (s *stubDestination) Close(ctx context.Context) error { return nil }
func (s *stubDestination) Health(ctx context.Context) error { return nil }
func (s *stubDestination) Metrics() map[string]interface{} { return nil }

func TestRegistryDestinations(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg *config.BaseConfig) (core.Destination, error) {
		return &stubDestination{cfg: cfg}, nil
	}

	require.NoError(t, r.RegisterDestination("singer", factory))
	require.NoError(t, r.RegisterDestination("alpha", factory))

	err := r.RegisterDestination("singer", factory)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.Equal(t, []string{"alpha", "singer"}, r.ListDestinations())
	assert.Empty(t, r.ListSources())

	cfg := config.NewBaseConfig("singer", "destination")
	dest, err := r.CreateDestination("singer", cfg)
	require.NoError(t, err)
	assert.Same(t, cfg, dest.(*stubDestination).cfg)

	_, err = r.CreateDestination("missing", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination connector missing not found")
	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	available, ok := typed.Detail("available")
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "singer"}, available)
}

func TestRegistryFactoryErrorKeepsType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("broken", func(cfg *config.BaseConfig) (core.Source, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "auth_token is required")
	}))

	_, err := r.CreateSource("broken", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "auth_token is required")

	_, err = r.CreateSource("nope", nil)
	require.Error(t, err)
	assert.Equal(t, []string{"broken"}, r.ListSources())
}

func TestConnectorCatalog(t *testing.T) {
	c := NewConnectorCatalog()
	require.NoError(t, c.Register(&ConnectorInfo{Name: "zeta", Type: "source"}))
	require.NoError(t, c.Register(&ConnectorInfo{Name: "alpha", Type: "destination"}))
	assert.Error(t, c.Register(&ConnectorInfo{Name: "zeta"}))

	info, err := c.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "destination", info.Type)

	_, err = c.Get("missing")
	assert.Error(t, err)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}
