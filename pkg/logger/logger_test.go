package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

func TestWithContextAddsStream(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		fields map[string]interface{}
	}{
		{"stream set", ContextWithStream(context.Background(), "items"), map[string]interface{}{"stream": "items"}},
		{"no stream", context.Background(), map[string]interface{}{}},
		{"empty stream", ContextWithStream(context.Background(), ""), map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			WithContext(tt.ctx, zap.New(core)).Debug("graphql response")

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.fields, logs.All()[0].ContextMap())
		})
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
