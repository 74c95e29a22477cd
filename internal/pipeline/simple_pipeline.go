// Package pipeline moves messages from a source connector to a destination
// connector.
//
// # Overview
//
// The pipeline reads the source's record stream and hands each message to
// the destination in the order it was produced. Optional transforms run on
// the forwarding goroutine, so ordering is preserved.
//
// # Basic Usage
//
//	p := pipeline.NewSimplePipeline(source, destination, nil, logger)
//	if err := p.Run(ctx); err != nil {
//	    return err
//	}
//
// Run returns the first error: a source error (transport, decoding) or a
// destination error (output file). Messages produced before a source error
// are still written.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
)

// SimplePipeline forwards messages from a source to a destination.
type SimplePipeline struct {
	source      core.Source
	destination core.Destination
	transforms  []Transform

	// Configuration
	bufferSize int

	// Metrics
	recordsProcessed  int64
	recordsFiltered   int64
	messagesForwarded int64
	startTime         time.Time
	finishTime        time.Time

	logger *zap.Logger
	cancel context.CancelFunc
	mu     sync.Mutex
}

// Transform modifies a message in flight. Returning nil drops the message.
type Transform func(ctx context.Context, msg *core.Message) (*core.Message, error)

// PipelineConfig contains pipeline configuration parameters.
type PipelineConfig struct {
	// BufferSize is the number of messages queued between source and
	// destination. Zero keeps them in lockstep.
	BufferSize int
}

// DefaultPipelineConfig returns the default configuration
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{BufferSize: 0}
}

// NewSimplePipeline creates a pipeline. Both connectors must already be
// initialized; call Run to start.
func NewSimplePipeline(source core.Source, destination core.Destination, config *PipelineConfig, logger *zap.Logger) *SimplePipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bufferSize := config.BufferSize
	if bufferSize < 0 {
		bufferSize = 0
	}

	return &SimplePipeline{
		source:      source,
		destination: destination,
		bufferSize:  bufferSize,
		logger:      logger.With(zap.String("component", "pipeline")),
	}
}

// AddTransform adds a transformation. Transforms are applied in the order
// they are added.
func (p *SimplePipeline) AddTransform(transform Transform) {
	p.transforms = append(p.transforms, transform)
}

// Run streams every message from the source to the destination and blocks
// until the source is exhausted or an error occurs.
func (p *SimplePipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.cancel = cancel
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("starting pipeline",
		zap.Int("buffer_size", p.bufferSize),
		zap.Int("transforms", len(p.transforms)))

	stream, err := p.source.Read(ctx)
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to start source read")
	}

	out := make(chan *core.Message, p.bufferSize)
	destErrs := make(chan error)
	close(destErrs)

	var writeErr error
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		writeErr = p.destination.Write(ctx, &core.RecordStream{Messages: out, Errors: destErrs})
	}()

	sourceErr := p.forward(ctx, stream, out, writeDone)
	<-writeDone
	cancel()

	p.mu.Lock()
	p.finishTime = time.Now()
	p.mu.Unlock()

	switch {
	case sourceErr != nil:
		p.logger.Error("pipeline failed", zap.Error(sourceErr))
		return sourceErr
	case writeErr != nil:
		p.logger.Error("destination write failed", zap.Error(writeErr))
		return writeErr
	}

	m := p.Metrics()
	p.logger.Info("pipeline completed",
		zap.Int64("records_processed", atomic.LoadInt64(&p.recordsProcessed)),
		zap.Int64("messages_forwarded", atomic.LoadInt64(&p.messagesForwarded)),
		zap.String("duration", m["duration"].(string)),
		zap.Float64("throughput_rps", m["throughput_rps"].(float64)))
	return nil
}

// forward copies messages to out and closes it. It returns the source's
// error, or nil when the source finished or the destination stopped early.
func (p *SimplePipeline) forward(ctx context.Context, stream *core.RecordStream, out chan<- *core.Message, writeDone <-chan struct{}) error {
	defer close(out)

	messages := stream.Messages
	errs := stream.Errors
	for messages != nil || errs != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}

			msg, err := p.apply(ctx, msg)
			if err != nil {
				return err
			}
			if msg == nil {
				continue
			}

			select {
			case out <- msg:
				p.count(msg)
			case <-writeDone:
				return nil
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "pipeline cancelled")
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}

		case <-writeDone:
			return nil

		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "pipeline cancelled")
		}
	}
	return nil
}

func (p *SimplePipeline) apply(ctx context.Context, msg *core.Message) (*core.Message, error) {
	for i, transform := range p.transforms {
		result, err := transform(ctx, msg)
		if err != nil {
			return nil, errors.Wrap(err, errors.TypeOf(err), "transform failed").WithDetail("transform", i)
		}
		if result == nil {
			if msg.Type == core.MessageTypeRecord {
				atomic.AddInt64(&p.recordsFiltered, 1)
			}
			return nil, nil
		}
		msg = result
	}
	return msg, nil
}

func (p *SimplePipeline) count(msg *core.Message) {
	atomic.AddInt64(&p.messagesForwarded, 1)
	if msg.Type == core.MessageTypeRecord {
		atomic.AddInt64(&p.recordsProcessed, 1)
		metrics.RecordsEmitted.WithLabelValues(msg.Stream).Inc()
	}
}

// Stop cancels a running pipeline
func (p *SimplePipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		p.logger.Info("stopping pipeline")
		cancel()
	}
}

// Metrics returns pipeline metrics
func (p *SimplePipeline) Metrics() map[string]interface{} {
	p.mu.Lock()
	start, finish := p.startTime, p.finishTime
	p.mu.Unlock()

	if finish.IsZero() {
		finish = time.Now()
	}
	duration := finish.Sub(start)
	records := atomic.LoadInt64(&p.recordsProcessed)

	throughput := 0.0
	if !start.IsZero() && duration > 0 {
		throughput = float64(records) / duration.Seconds()
	}

	return map[string]interface{}{
		"records_processed":  records,
		"records_filtered":   atomic.LoadInt64(&p.recordsFiltered),
		"messages_forwarded": atomic.LoadInt64(&p.messagesForwarded),
		"duration":           duration.String(),
		"throughput_rps":     throughput,
		"buffer_size":        p.bufferSize,
		"transform_count":    len(p.transforms),
	}
}

// FilterTransform creates a transform that drops messages for which
// predicate returns false.
func FilterTransform(predicate func(*core.Message) bool) Transform {
	return func(ctx context.Context, msg *core.Message) (*core.Message, error) {
		if predicate(msg) {
			return msg, nil
		}
		return nil, nil
	}
}
