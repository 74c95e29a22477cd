package monday

import (
	"strconv"

	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
)

// Stream names
const (
	StreamWorkspaces = "workspaces"
	StreamBoards     = "boards"
	StreamColumns    = "columns"
	StreamGroups     = "groups"
	StreamBoardViews = "board_views"
	StreamItems      = "items"
)

// StreamDef describes how one resource type is fetched and shaped.
type StreamDef struct {
	Name   string
	Schema *core.Schema

	// Parent names the stream whose ids drive this one; empty for top-level streams
	Parent string

	// Paginated streams are fetched with Paginate, the rest with Single
	Paginated       bool
	PageSizeKey     string
	DefaultPageSize int

	Query string

	// Extract pulls the row list out of the response data
	Extract func(data map[string]interface{}) ([]Row, error)

	// Prepare adjusts a raw row before mapping, e.g. attaching the parent id
	Prepare func(row Row, parentID string) Row
}

// PrimaryKeys returns the stream's key properties
func (d *StreamDef) PrimaryKeys() []string {
	return d.Schema.PrimaryKeys
}

// PageSize reads the stream's page size from the connector credentials
func (d *StreamDef) PageSize(cfg *config.BaseConfig) (int, error) {
	if !d.Paginated {
		return 0, nil
	}
	raw := ""
	if cfg != nil {
		raw = cfg.Security.Credential(d.PageSizeKey, "")
	}
	if raw == "" {
		return d.DefaultPageSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, d.PageSizeKey+" must be an integer").
			WithDetail("option", d.PageSizeKey)
	}
	if err := config.ValidatePageSize(d.PageSizeKey, size); err != nil {
		return 0, err
	}
	return size, nil
}

// Streams returns the stream definitions in sync order. Parents precede
// their children.
func Streams() []*StreamDef {
	return []*StreamDef{
		{
			Name:            StreamWorkspaces,
			Schema:          workspacesSchema(),
			Paginated:       true,
			PageSizeKey:     config.KeyWorkspaceLimit,
			DefaultPageSize: config.DefaultWorkspaceLimit,
			Query:           workspacesQuery,
			Extract:         extractTopLevel("workspaces"),
		},
		{
			Name:            StreamBoards,
			Schema:          boardsSchema(),
			Paginated:       true,
			PageSizeKey:     config.KeyBoardLimit,
			DefaultPageSize: config.DefaultBoardLimit,
			Query:           boardsQuery,
			Extract:         extractTopLevel("boards"),
		},
		{
			Name:    StreamColumns,
			Schema:  columnsSchema(),
			Parent:  StreamBoards,
			Query:   columnsQuery,
			Extract: extractBoardChild("columns"),
			Prepare: withBoardID,
		},
		{
			Name:    StreamGroups,
			Schema:  groupsSchema(),
			Parent:  StreamBoards,
			Query:   groupsQuery,
			Extract: extractBoardChild("groups"),
			Prepare: withBoardID,
		},
		{
			Name:    StreamBoardViews,
			Schema:  boardViewsSchema(),
			Parent:  StreamBoards,
			Query:   boardViewsQuery,
			Extract: extractBoardChild("views"),
			Prepare: withBoardID,
		},
		{
			Name:            StreamItems,
			Schema:          itemsSchema(),
			Parent:          StreamBoards,
			Paginated:       true,
			PageSizeKey:     config.KeyItemLimit,
			DefaultPageSize: config.DefaultItemLimit,
			Query:           itemsQuery,
			Extract:         extractBoardChild("items"),
			Prepare:         prepareItem,
		},
	}
}

// StreamByName looks up a stream definition
func StreamByName(name string) (*StreamDef, bool) {
	for _, d := range Streams() {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

func workspacesSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamWorkspaces,
		Description: "Monday workspaces",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "name", Type: core.FieldTypeString},
			{Name: "kind", Type: core.FieldTypeString, Nullable: true},
			{Name: "description", Type: core.FieldTypeString, Nullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
}

func boardsSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamBoards,
		Description: "Monday boards",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "name", Type: core.FieldTypeString},
			{Name: "description", Type: core.FieldTypeString, Nullable: true},
			{Name: "state", Type: core.FieldTypeString, Nullable: true},
			{Name: "updated_at", Type: core.FieldTypeTimestamp, Nullable: true},
			{Name: "workspace_id", Type: core.FieldTypeString, Nullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
}

func columnsSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamColumns,
		Description: "Columns of each board",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "board_id", Type: core.FieldTypeString, Primary: true},
			{Name: "title", Type: core.FieldTypeString},
			{Name: "type", Type: core.FieldTypeString},
		},
		PrimaryKeys: []string{"board_id", "id"},
	}
}

func groupsSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamGroups,
		Description: "Groups of each board",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "board_id", Type: core.FieldTypeString, Primary: true},
			{Name: "title", Type: core.FieldTypeString},
			{Name: "color", Type: core.FieldTypeString, Nullable: true},
			{Name: "position", Type: core.FieldTypeFloat, Nullable: true},
		},
		PrimaryKeys: []string{"board_id", "id"},
	}
}

func boardViewsSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamBoardViews,
		Description: "Views of each board",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "board_id", Type: core.FieldTypeString},
			{Name: "name", Type: core.FieldTypeString},
			{Name: "type", Type: core.FieldTypeString, Nullable: true},
			{Name: "settings_str", Type: core.FieldTypeString, Nullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
}

func itemsSchema() *core.Schema {
	return &core.Schema{
		Name:        StreamItems,
		Description: "Items of each board",
		Fields: []core.Field{
			{Name: "id", Type: core.FieldTypeString, Primary: true},
			{Name: "name", Type: core.FieldTypeString},
			{Name: "board_id", Type: core.FieldTypeString},
			{Name: "group_id", Type: core.FieldTypeString, Nullable: true},
			{Name: "state", Type: core.FieldTypeString, Nullable: true},
			{Name: "created_at", Type: core.FieldTypeTimestamp, Nullable: true},
			{Name: "updated_at", Type: core.FieldTypeTimestamp, Nullable: true},
			{Name: "column_values", Type: core.FieldTypeJSON, Nullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
}

// extractTopLevel reads data[key] as a list of objects
func extractTopLevel(key string) func(map[string]interface{}) ([]Row, error) {
	return func(data map[string]interface{}) ([]Row, error) {
		return rowList(data, key)
	}
}

// extractBoardChild reads data.boards[0][key]. A board that no longer
// exists comes back as an empty boards list and yields no rows.
func extractBoardChild(key string) func(map[string]interface{}) ([]Row, error) {
	return func(data map[string]interface{}) ([]Row, error) {
		boards, err := rowList(data, "boards")
		if err != nil {
			return nil, err
		}
		if len(boards) == 0 {
			return nil, nil
		}
		return rowList(boards[0], key)
	}
}

// rowList reads obj[key] as a list of objects. An absent key or a null
// value does not match the query's shape and is a data error; only an
// empty list is an empty page.
func rowList(obj map[string]interface{}, key string) ([]Row, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "response has no %s field", key).
			WithDetail("field", key)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "expected %s to be a list, got %T", key, raw).
			WithDetail("field", key)
	}
	rows := make([]Row, 0, len(list))
	for i, elem := range list {
		row, ok := elem.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "%s[%d]: expected object, got %T", key, i, elem)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func copyRow(row Row) Row {
	out := make(Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	return out
}

func withBoardID(row Row, boardID string) Row {
	out := copyRow(row)
	out["board_id"] = boardID
	return out
}

// prepareItem attaches the board id and lifts group.id into group_id
func prepareItem(row Row, boardID string) Row {
	out := withBoardID(row, boardID)
	if group, ok := row["group"].(map[string]interface{}); ok {
		out["group_id"] = group["id"]
	}
	delete(out, "group")
	return out
}
