// Package monday implements the Monday.com source connector. It pages
// through the GraphQL API one stream at a time and produces SCHEMA, RECORD
// and STATE messages in API order.
package monday

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-monday/pkg/clients"
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/base"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	"github.com/ajitpratap0/tap-monday/pkg/logger"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
	"github.com/ajitpratap0/tap-monday/pkg/observability"
)

const (
	// ConnectorName is the registry name of the source
	ConnectorName = "monday"
	// ConnectorVersion is reported in metrics and --about
	ConnectorVersion = "1.0.0"
)

// EmitFunc receives each message produced by Sync
type EmitFunc func(msg *core.Message) error

// MondaySource reads boards, items and related resources from Monday.com
type MondaySource struct {
	*base.BaseConnector

	client    *clients.GraphQLClient
	tracer    *observability.ConnectorTracer
	streams   []*StreamDef
	pageSizes map[string]int

	catalogMu sync.RWMutex
	catalog   *core.Catalog

	reporterOnce sync.Once
}

// NewMondaySource creates an uninitialized source. Configuration is checked
// by Initialize.
func NewMondaySource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return &MondaySource{
		BaseConnector: base.NewBaseConnector(ConnectorName, core.ConnectorTypeSource, ConnectorVersion),
		tracer:        observability.NewConnectorTracer(string(core.ConnectorTypeSource), ConnectorName),
		streams:       Streams(),
		pageSizes:     make(map[string]int),
	}, nil
}

// Initialize validates the connector options and builds the API client.
// No request is made.
func (s *MondaySource) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}

	token := cfg.Security.Credential(config.KeyAuthToken, "")
	if token == "" {
		return errors.New(errors.ErrorTypeConfig, "auth_token is required")
	}

	for _, def := range s.streams {
		size, err := def.PageSize(cfg)
		if err != nil {
			return err
		}
		s.pageSizes[def.Name] = size
	}

	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		httpCfg.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		httpCfg.IdleConnTimeout = cfg.Timeouts.Idle
	}

	client, err := clients.NewGraphQLClient(&clients.GraphQLConfig{
		URL:         cfg.Security.Credential(config.KeyAPIURL, config.DefaultAPIURL),
		Token:       token,
		APIVersion:  cfg.Security.Credential(config.KeyAPIVersion, config.DefaultAPIVersion),
		UserAgent:   cfg.Security.Credential(config.KeyUserAgent, ""),
		HTTP:        httpCfg,
		RateLimiter: s.GetRateLimiter(),
	}, s.GetLogger())
	if err != nil {
		return err
	}
	s.client = client

	s.GetLogger().Info("monday source initialized",
		zap.Int("board_limit", s.pageSizes[StreamBoards]),
		zap.Int("item_limit", s.pageSizes[StreamItems]),
		zap.Int("workspace_limit", s.pageSizes[StreamWorkspaces]))
	return nil
}

// Discover returns a catalog with every stream selected. It does not call the API.
func (s *MondaySource) Discover(ctx context.Context) (*core.Catalog, error) {
	catalog := &core.Catalog{Streams: make([]core.CatalogEntry, 0, len(s.streams))}
	for _, def := range s.streams {
		catalog.Streams = append(catalog.Streams, core.NewCatalogEntry(def.Schema, true))
	}
	return catalog, nil
}

// SetCatalog restricts the sync to the catalog's selected streams. A nil
// catalog selects every stream.
func (s *MondaySource) SetCatalog(catalog *core.Catalog) error {
	if catalog != nil {
		for _, entry := range catalog.Streams {
			if _, ok := StreamByName(entry.TapStreamID); !ok {
				s.GetLogger().Warn("ignoring unknown stream in catalog", zap.String("stream", entry.TapStreamID))
			}
		}
	}
	s.catalogMu.Lock()
	s.catalog = catalog
	s.catalogMu.Unlock()
	return nil
}

func (s *MondaySource) selectedStreams() []*StreamDef {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	var selected []*StreamDef
	for _, def := range s.streams {
		if s.catalog.IsSelected(def.Name) {
			selected = append(selected, def)
		}
	}
	return selected
}

// Read runs Sync on a producer goroutine. Messages is unbuffered so a page
// is only requested once the previous page's records were taken.
func (s *MondaySource) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}

	messages := make(chan *core.Message)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		err := s.Sync(ctx, func(msg *core.Message) error {
			select {
			case messages <- msg:
				return nil
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return &core.RecordStream{Messages: messages, Errors: errs}, nil
}

// Sync visits the selected streams in order and hands every message to emit.
// Each stream starts with its SCHEMA message and ends with a STATE message
// carrying the updated bookmarks. The first error stops the sync.
func (s *MondaySource) Sync(ctx context.Context, emit EmitFunc) error {
	if s.client == nil {
		return errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	s.reporterOnce.Do(func() {
		if pr := s.GetProgressReporter(); pr != nil {
			pr.Start()
		}
	})

	var boardIDs []string
	haveBoardIDs := false

	for _, def := range s.selectedStreams() {
		if def.Parent == StreamBoards && !haveBoardIDs {
			ids, err := s.fetchBoardIDs(logger.ContextWithStream(ctx, StreamBoards))
			if err != nil {
				s.recordStreamError(StreamBoards, err)
				return err
			}
			boardIDs, haveBoardIDs = ids, true
		}

		var ids []string
		err := s.tracer.Trace(logger.ContextWithStream(ctx, def.Name), "sync_stream", func(ctx context.Context) error {
			var err error
			ids, err = s.syncStream(ctx, def, boardIDs, emit)
			return err
		}, attribute.String("stream", def.Name))
		if err != nil {
			s.recordStreamError(def.Name, err)
			return err
		}
		if def.Name == StreamBoards {
			boardIDs, haveBoardIDs = ids, true
		}
	}
	return nil
}

// syncStream emits one stream and returns the ids of its records
func (s *MondaySource) syncStream(ctx context.Context, def *StreamDef, parentIDs []string, emit EmitFunc) ([]string, error) {
	log := logger.WithContext(ctx, s.GetLogger())
	log.Info("stream started")
	start := time.Now()

	if err := emit(&core.Message{Type: core.MessageTypeSchema, Stream: def.Name, Schema: def.Schema}); err != nil {
		return nil, err
	}

	parents := []string{""}
	if def.Parent != "" {
		parents = parentIDs
	}

	var ids []string
	var count int64
	pages := 0
	for _, parentID := range parents {
		for record, err := range s.records(ctx, def, parentID, &pages) {
			if err != nil {
				return nil, err
			}
			msg := &core.Message{
				Type:          core.MessageTypeRecord,
				Stream:        def.Name,
				Record:        record,
				TimeExtracted: time.Now().UTC(),
			}
			if err := emit(msg); err != nil {
				return nil, err
			}
			count++
			if id, ok := record["id"].(string); ok {
				ids = append(ids, id)
			}
			if pr := s.GetProgressReporter(); pr != nil {
				pr.IncrementProcessed(1)
			}
		}
	}

	kept := true
	s.UpdateState(func(state core.State) {
		kept = state.SetBookmark(def.Name, map[string]interface{}{"page": pages})
	})
	if !kept {
		log.Warn("state bookmarks is not an object, leaving it unchanged", zap.Int("pages", pages))
	}
	if err := emit(&core.Message{Type: core.MessageTypeState, State: s.GetState()}); err != nil {
		return nil, err
	}

	if mc := s.GetMetricsCollector(); mc != nil {
		mc.Add("records_"+def.Name, count)
		mc.Add("pages_"+def.Name, int64(pages))
	}
	log.Info("stream completed",
		zap.Int64("records", count),
		zap.Int("pages", pages),
		zap.Duration("duration", time.Since(start)))
	return ids, nil
}

// records yields the mapped records of def, scoped to parentID for child
// streams. pages is incremented for every successful request.
func (s *MondaySource) records(ctx context.Context, def *StreamDef, parentID string, pages *int) iter.Seq2[core.Record, error] {
	fetch := s.pageFunc(def, def.Query, parentID, pages)
	var rows iter.Seq2[Row, error]
	if def.Paginated {
		rows = Paginate(ctx, fetch, s.pageSizes[def.Name])
	} else {
		rows = Single(ctx, fetch)
	}

	return func(yield func(core.Record, error) bool) {
		for row, err := range rows {
			if err != nil {
				yield(nil, err)
				return
			}
			if def.Prepare != nil {
				row = def.Prepare(row, parentID)
			}
			record, err := MapRow(def.Schema, row)
			if err != nil {
				yield(nil, errors.WrapStream(err, def.Name, "failed to map record"))
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// pageFunc binds a stream's query to the client. Page indexes are 0-based
// and sent to the API as index+1.
func (s *MondaySource) pageFunc(def *StreamDef, query, parentID string, pages *int) PageFunc {
	return func(ctx context.Context, page int) ([]Row, error) {
		variables := make(map[string]interface{}, 3)
		if def.Paginated {
			variables["page"] = page + 1
			variables["limit"] = s.pageSizes[def.Name]
		}
		if parentID != "" {
			variables["board_id"] = parentID
		}

		var resp clients.GraphQLResponse
		if err := s.client.Query(ctx, def.Name, query, variables, &resp); err != nil {
			return nil, errors.WrapStream(err, def.Name, fmt.Sprintf("fetch page %d failed", page+1))
		}
		*pages++
		metrics.PagesFetched.WithLabelValues(def.Name).Inc()

		rows, err := def.Extract(resp.Data)
		if err != nil {
			return nil, errors.WrapStream(err, def.Name, fmt.Sprintf("unexpected response for page %d", page+1))
		}
		return rows, nil
	}
}

// fetchBoardIDs pages through board ids when the boards stream itself is not selected
func (s *MondaySource) fetchBoardIDs(ctx context.Context) ([]string, error) {
	def, _ := StreamByName(StreamBoards)
	pages := 0
	fetch := s.pageFunc(def, boardIDsQuery, "", &pages)

	var ids []string
	for row, err := range Paginate(ctx, fetch, s.pageSizes[StreamBoards]) {
		if err != nil {
			return nil, err
		}
		id, err := toString(row["id"])
		if err != nil || id == "" {
			return nil, errors.WrapStream(errors.New(errors.ErrorTypeData, "board without id"), StreamBoards, "failed to collect board ids")
		}
		ids = append(ids, id)
	}
	s.GetLogger().Debug("collected board ids", zap.Int("boards", len(ids)), zap.Int("pages", pages))
	return ids, nil
}

func (s *MondaySource) recordStreamError(stream string, err error) {
	metrics.StreamErrors.WithLabelValues(stream, string(errors.TypeOf(err))).Inc()
	s.GetLogger().Error("stream failed", zap.String("stream", stream), zap.Error(err))
}

// Health reports whether the source is initialized and open
func (s *MondaySource) Health(ctx context.Context) error {
	if err := s.BaseConnector.Health(ctx); err != nil {
		return err
	}
	if s.client == nil {
		return errors.New(errors.ErrorTypeConfig, "api client is not initialized")
	}
	return nil
}

// Metrics returns connector and client metrics
func (s *MondaySource) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()
	m["streams"] = len(s.selectedStreams())
	if s.client != nil {
		m["client"] = s.client.Stats()
	}
	return m
}

// Close releases the API client
func (s *MondaySource) Close(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return s.BaseConnector.Close(ctx)
}
