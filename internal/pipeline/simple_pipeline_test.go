package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
)

// sliceSource replays messages on an unbuffered channel, then reports err
type sliceSource struct {
	messages []*core.Message
	err      error
	readErr  error
}

func (s *sliceSource) Initialize(ctx context.Context, cfg *config.BaseConfig) error { return nil }
func (s *sliceSource) Discover(ctx context.Context) (*core.Catalog, error)         { return &core.Catalog{}, nil }
func (s *sliceSource) Close(ctx context.Context) error                             { return nil }
func (s *sliceSource) SetCatalog(catalog *core.Catalog) error                      { return nil }
func (s *sliceSource) GetState() core.State                                        { return core.State{} }
func (s *sliceSource) SetState(state core.State) error                             { return nil }
func (s *sliceSource) Health(ctx context.Context) error                            { return nil }
func (s *sliceSource) Metrics() map[string]interface{}                             { return nil }

func (s *sliceSource) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	messages := make(chan *core.Message)
	errs := make(chan error, 1)
	go func() {
		defer close(messages)
		defer close(errs)
		for _, m := range s.messages {
			select {
			case messages <- m:
			case <-ctx.Done():
				return
			}
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return &core.RecordStream{Messages: messages, Errors: errs}, nil
}

// memoryDestination collects messages; failAfter > 0 fails on that message
type memoryDestination struct {
	mu        sync.Mutex
	got       []*core.Message
	failAfter int
}

func (d *memoryDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error { return nil }
func (d *memoryDestination) Close(ctx context.Context) error                             { return nil }
func (d *memoryDestination) Health(ctx context.Context) error                            { return nil }
func (d *memoryDestination) Metrics() map[string]interface{}                             { return nil }

func (d *memoryDestination) Write(ctx context.Context, stream *core.RecordStream) error {
	for msg := range stream.Messages {
		d.mu.Lock()
		d.got = append(d.got, msg)
		n := len(d.got)
		d.mu.Unlock()
		if d.failAfter > 0 && n == d.failAfter {
			return errors.New(errors.ErrorTypeFile, "disk full")
		}
	}
	return nil
}

func (d *memoryDestination) streams() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.got))
	for _, m := range d.got {
		out = append(out, string(m.Type)+":"+m.Stream)
	}
	return out
}

func boardMessages(n int) []*core.Message {
	msgs := []*core.Message{{Type: core.MessageTypeSchema, Stream: "pipeline_boards"}}
	for i := 0; i < n; i++ {
		msgs = append(msgs, &core.Message{
			Type:   core.MessageTypeRecord,
			Stream: "pipeline_boards",
			Record: core.Record{"id": i},
		})
	}
	return append(msgs, &core.Message{Type: core.MessageTypeState, State: core.State{}})
}

func TestRunForwardsInOrder(t *testing.T) {
	src := &sliceSource{messages: boardMessages(3)}
	dest := &memoryDestination{}
	before := testutil.ToFloat64(metrics.RecordsEmitted.WithLabelValues("pipeline_boards"))

	p := NewSimplePipeline(src, dest, nil, zaptest.NewLogger(t))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{
		"SCHEMA:pipeline_boards",
		"RECORD:pipeline_boards",
		"RECORD:pipeline_boards",
		"RECORD:pipeline_boards",
		"STATE:",
	}, dest.streams())
	for i, m := range dest.got[1:4] {
		assert.Equal(t, i, m.Record["id"])
	}

	m := p.Metrics()
	assert.Equal(t, int64(3), m["records_processed"])
	assert.Equal(t, int64(5), m["messages_forwarded"])
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RecordsEmitted.WithLabelValues("pipeline_boards"))-before)
}

func TestRunSurfacesSourceError(t *testing.T) {
	failure := errors.WrapStream(errors.New(errors.ErrorTypeAuthentication, "api returned status 401"), "boards", "fetch page 1 failed")
	src := &sliceSource{messages: boardMessages(2)[:2], err: failure}
	dest := &memoryDestination{}

	err := NewSimplePipeline(src, dest, nil, zaptest.NewLogger(t)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Equal(t, "boards", errors.StreamOf(err))
	assert.Len(t, dest.got, 2, "messages before the failure are delivered")
}

func TestRunSurfacesReadError(t *testing.T) {
	src := &sliceSource{readErr: errors.New(errors.ErrorTypeConfig, "source is not initialized")}
	err := NewSimplePipeline(src, &memoryDestination{}, nil, zaptest.NewLogger(t)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunStopsWhenDestinationFails(t *testing.T) {
	src := &sliceSource{messages: boardMessages(50)}
	dest := &memoryDestination{failAfter: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewSimplePipeline(src, dest, nil, zaptest.NewLogger(t)).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.NoError(t, ctx.Err(), "the run must not hang until the deadline")
}

func TestFilterTransform(t *testing.T) {
	src := &sliceSource{messages: boardMessages(4)}
	dest := &memoryDestination{}

	p := NewSimplePipeline(src, dest, &PipelineConfig{BufferSize: 2}, zaptest.NewLogger(t))
	p.AddTransform(FilterTransform(func(msg *core.Message) bool {
		if msg.Type != core.MessageTypeRecord {
			return true
		}
		return msg.Record["id"].(int)%2 == 0
	}))
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, dest.got, 4)
	m := p.Metrics()
	assert.Equal(t, int64(2), m["records_filtered"])
	assert.Equal(t, int64(2), m["records_processed"])
}
