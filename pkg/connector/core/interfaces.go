package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/tap-monday/pkg/config"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// State is the opaque bookmark document exchanged with the orchestrator
type State map[string]interface{}

// Bookmarks returns the per-stream bookmark map, creating it when absent.
// A bookmarks value that is not an object is left in place and a detached
// map is returned, so writes through it are not kept; see SetBookmark.
func (s State) Bookmarks() map[string]interface{} {
	switch b := s["bookmarks"].(type) {
	case map[string]interface{}:
		return b
	case nil:
		m := make(map[string]interface{})
		s["bookmarks"] = m
		return m
	default:
		return make(map[string]interface{})
	}
}

// SetBookmark stores value under stream. It reports false and leaves the
// state unchanged when bookmarks holds a value that is not an object.
func (s State) SetBookmark(stream string, value interface{}) bool {
	if b := s["bookmarks"]; b != nil {
		if _, ok := b.(map[string]interface{}); !ok {
			return false
		}
	}
	s.Bookmarks()[stream] = value
	return true
}

// Clone returns a deep copy of the state's nested maps
func (s State) Clone() State {
	return State(cloneMap(s))
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = cloneMap(vv)
		case State:
			out[k] = cloneMap(vv)
		default:
			out[k] = v
		}
	}
	return out
}

// Record is a single output row keyed by schema field name
type Record map[string]interface{}

// MessageType identifies the kind of a Message
type MessageType string

const (
	MessageTypeSchema MessageType = "SCHEMA"
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
)

// Message is one element of the record stream. Schema is set for SCHEMA
// messages, Record for RECORD messages and State for STATE messages.
type Message struct {
	Type          MessageType
	Stream        string
	Schema        *Schema
	Record        Record
	State         State
	TimeExtracted time.Time
}

// RecordStream represents a stream of messages produced by a source.
// Messages is closed when the source is done; at most one error is sent on Errors.
type RecordStream struct {
	Messages <-chan *Message
	Errors   <-chan error
}

// Source is the interface that all source connectors must implement
type Source interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Catalog, error)
	Read(ctx context.Context) (*RecordStream, error)
	Close(ctx context.Context) error

	// Stream selection
	SetCatalog(catalog *Catalog) error

	// State management
	GetState() State
	SetState(state State) error

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Destination is the interface that all destination connectors must implement
type Destination interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Write(ctx context.Context, stream *RecordStream) error
	Close(ctx context.Context) error

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface for all connectors
type Connector interface {
	// Metadata
	Name() string
	Type() ConnectorType
	Version() string

	// Lifecycle
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Close(ctx context.Context) error

	// Health and monitoring
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}
