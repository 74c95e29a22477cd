package core

// Catalog lists the streams a source can produce and which of them are selected
type Catalog struct {
	Streams []CatalogEntry `json:"streams" yaml:"streams"`
}

// CatalogEntry describes one stream
type CatalogEntry struct {
	TapStreamID   string                 `json:"tap_stream_id" yaml:"tap_stream_id"`
	Stream        string                 `json:"stream" yaml:"stream"`
	KeyProperties []string               `json:"key_properties" yaml:"key_properties"`
	Schema        map[string]interface{} `json:"schema" yaml:"schema"`
	Metadata      []CatalogMetadata      `json:"metadata" yaml:"metadata"`
}

// CatalogMetadata attaches metadata to the stream (empty breadcrumb) or to a
// property (breadcrumb ["properties", name]).
type CatalogMetadata struct {
	Breadcrumb []string               `json:"breadcrumb" yaml:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata" yaml:"metadata"`
}

// NewCatalogEntry builds the entry for schema. selected marks the stream for sync.
func NewCatalogEntry(schema *Schema, selected bool) CatalogEntry {
	streamMeta := map[string]interface{}{
		"selected":                  selected,
		"inclusion":                 "available",
		"table-key-properties":      schema.PrimaryKeys,
		"forced-replication-method": "FULL_TABLE",
	}
	metadata := []CatalogMetadata{{Breadcrumb: []string{}, Metadata: streamMeta}}

	primary := make(map[string]bool, len(schema.PrimaryKeys))
	for _, k := range schema.PrimaryKeys {
		primary[k] = true
	}
	for _, f := range schema.Fields {
		inclusion := "available"
		if primary[f.Name] {
			inclusion = "automatic"
		}
		metadata = append(metadata, CatalogMetadata{
			Breadcrumb: []string{"properties", f.Name},
			Metadata:   map[string]interface{}{"inclusion": inclusion},
		})
	}

	return CatalogEntry{
		TapStreamID:   schema.Name,
		Stream:        schema.Name,
		KeyProperties: schema.PrimaryKeys,
		Schema:        schema.JSONSchema(),
		Metadata:      metadata,
	}
}

// IsSelected reports whether the stream-level metadata carries selected: true
func (e *CatalogEntry) IsSelected() bool {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 0 {
			continue
		}
		selected, ok := m.Metadata["selected"].(bool)
		return ok && selected
	}
	return false
}

// Entry returns the entry for a stream id
func (c *Catalog) Entry(streamID string) (*CatalogEntry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == streamID {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// IsSelected reports whether a stream is selected. A nil catalog selects every stream.
func (c *Catalog) IsSelected(streamID string) bool {
	if c == nil {
		return true
	}
	e, ok := c.Entry(streamID)
	return ok && e.IsSelected()
}

// SelectedStreams returns the ids of selected streams in catalog order
func (c *Catalog) SelectedStreams() []string {
	var ids []string
	for i := range c.Streams {
		if c.Streams[i].IsSelected() {
			ids = append(ids, c.Streams[i].TapStreamID)
		}
	}
	return ids
}
