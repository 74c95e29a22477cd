// Package singer implements the destination that writes the record stream as
// Singer messages, one JSON object per line.
package singer

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-monday/pkg/compression"
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
	"github.com/ajitpratap0/tap-monday/pkg/logger"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
)

const (
	// ConnectorName is the registry name of the destination
	ConnectorName = "singer"
	// ConnectorVersion is reported in metrics and --about
	ConnectorVersion = "1.0.0"
)

// wireMessage is the line format of a Singer message
type wireMessage struct {
	Type          core.MessageType       `json:"type"`
	Stream        string                 `json:"stream,omitempty"`
	Schema        map[string]interface{} `json:"schema,omitempty"`
	KeyProperties []string               `json:"key_properties,omitempty"`
	Record        interface{}            `json:"record,omitempty"`
	TimeExtracted string                 `json:"time_extracted,omitempty"`
	Value         interface{}            `json:"value,omitempty"`
}

type encoder interface {
	Encode(v interface{}) error
}

// SingerDestination writes Singer messages to standard output or to a file
type SingerDestination struct {
	config *config.BaseConfig
	logger *zap.Logger

	stdout     io.Writer
	file       *os.File
	compressor io.WriteCloser
	writer     *bufio.Writer
	encoder    encoder

	filePath  string
	algorithm compression.Algorithm

	// streams whose SCHEMA has been written
	schemas map[string]bool

	mu     sync.Mutex
	closed bool

	schemasWritten int64
	recordsWritten int64
	statesWritten  int64
}

// NewSingerDestination creates a destination writing to standard output
// unless the config carries an output path.
func NewSingerDestination(cfg *config.BaseConfig) (core.Destination, error) {
	return &SingerDestination{
		config:  cfg,
		stdout:  os.Stdout,
		schemas: make(map[string]bool),
	}, nil
}

// SetOutput replaces standard output as the target when no path is configured.
// It must be called before Initialize.
func (d *SingerDestination) SetOutput(w io.Writer) {
	d.stdout = w
}

// Initialize opens the output
func (d *SingerDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		cfg = config.NewBaseConfig(ConnectorName, string(core.ConnectorTypeDestination))
	}
	d.config = cfg
	d.logger = logger.Get().With(zap.String("connector", ConnectorName))

	bufferSize := cfg.Performance.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}

	var out io.Writer = d.stdout
	if path := cfg.Security.Credential(config.KeyPath, ""); path != "" {
		if err := d.openFile(path); err != nil {
			return err
		}
		out = d.compressor
	}

	d.writer = bufio.NewWriterSize(out, bufferSize)
	d.encoder = jsonpool.GetEncoder(d.writer)

	if d.filePath != "" {
		d.logger.Info("writing messages to file",
			zap.String("path", d.filePath),
			zap.String("compression", string(d.algorithm)))
	}
	return nil
}

// openFile creates path and wraps it with the compression implied by its
// extension, or by the advanced config when the extension implies none.
func (d *SingerDestination) openFile(path string) error {
	alg := compression.AlgorithmFromPath(path)
	if alg == compression.None && d.config.Advanced.IsCompressionEnabled() {
		parsed, err := compression.ParseAlgorithm(d.config.Advanced.CompressionAlgorithm)
		if err != nil {
			return err
		}
		alg = parsed
		if ext := compression.Extension(alg); ext != "" && !strings.HasSuffix(path, ext) {
			path += ext
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}

	w, err := compression.NewWriter(file, alg, compression.LevelFromInt(d.config.Advanced.CompressionLevel))
	if err != nil {
		file.Close()
		return err
	}

	d.file = file
	d.compressor = w
	d.filePath = path
	d.algorithm = alg
	return nil
}

// Write consumes the stream until its messages are exhausted. An error from
// the source is returned after the messages received before it were written.
func (d *SingerDestination) Write(ctx context.Context, stream *core.RecordStream) error {
	messages := stream.Messages
	errs := stream.Errors

	for messages != nil || errs != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if err := d.WriteMessage(msg); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				d.drain(messages)
				_ = d.Flush()
				return err
			}

		case <-ctx.Done():
			_ = d.Flush()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "write cancelled")
		}
	}
	return d.Flush()
}

// drain writes the messages already queued when the source failed
func (d *SingerDestination) drain(messages <-chan *core.Message) {
	for messages != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := d.WriteMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// WriteMessage encodes one message. STATE messages are flushed immediately
// so the orchestrator never sees a bookmark ahead of the records before it.
func (d *SingerDestination) WriteMessage(msg *core.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder == nil || d.closed {
		return errors.New(errors.ErrorTypeInternal, "singer destination is not open")
	}

	wire := wireMessage{Type: msg.Type, Stream: msg.Stream}
	switch msg.Type {
	case core.MessageTypeSchema:
		if msg.Schema == nil {
			return errors.Newf(errors.ErrorTypeData, "schema message for stream %s has no schema", msg.Stream)
		}
		wire.Schema = msg.Schema.JSONSchema()
		wire.KeyProperties = msg.Schema.PrimaryKeys
		if wire.KeyProperties == nil {
			wire.KeyProperties = []string{}
		}
		d.schemas[msg.Stream] = true
	case core.MessageTypeRecord:
		if !d.schemas[msg.Stream] {
			return errors.Newf(errors.ErrorTypeData, "record for stream %s written before its schema", msg.Stream).
				WithDetail("stream", msg.Stream)
		}
		record := msg.Record
		if record == nil {
			record = core.Record{}
		}
		wire.Record = record
		if !msg.TimeExtracted.IsZero() {
			wire.TimeExtracted = msg.TimeExtracted.UTC().Format(time.RFC3339Nano)
		}
	case core.MessageTypeState:
		wire.Stream = ""
		state := msg.State
		if state == nil {
			state = core.State{}
		}
		wire.Value = state
	default:
		return errors.Newf(errors.ErrorTypeData, "unknown message type %q", msg.Type)
	}

	if err := d.encoder.Encode(wire); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write message")
	}
	metrics.MessagesWritten.WithLabelValues(string(msg.Type)).Inc()

	switch msg.Type {
	case core.MessageTypeSchema:
		atomic.AddInt64(&d.schemasWritten, 1)
	case core.MessageTypeRecord:
		atomic.AddInt64(&d.recordsWritten, 1)
	case core.MessageTypeState:
		atomic.AddInt64(&d.statesWritten, 1)
		if err := d.writer.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush state")
		}
	}
	return nil
}

// Flush writes buffered messages to the output
func (d *SingerDestination) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil || d.closed {
		return nil
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	return nil
}

// Close flushes and closes the output. Standard output is left open.
func (d *SingerDestination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	if d.writer != nil {
		if err := d.writer.Flush(); err != nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
		}
	}
	if d.compressor != nil {
		if err := d.compressor.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed output")
		}
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file")
		}
	}
	return firstErr
}

// Health reports whether the output is open
func (d *SingerDestination) Health(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.encoder == nil {
		return errors.New(errors.ErrorTypeInternal, "output not opened")
	}
	if d.closed {
		return errors.New(errors.ErrorTypeInternal, "output closed")
	}
	return nil
}

// Metrics returns message counters
func (d *SingerDestination) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"type":            ConnectorName,
		"schemas_written": atomic.LoadInt64(&d.schemasWritten),
		"records_written": atomic.LoadInt64(&d.recordsWritten),
		"states_written":  atomic.LoadInt64(&d.statesWritten),
	}
	if d.filePath != "" {
		m["path"] = d.filePath
		m["compression"] = string(d.algorithm)
	}
	return m
}
