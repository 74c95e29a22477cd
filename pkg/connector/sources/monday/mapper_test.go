package monday

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
)

func TestMapRowProjectsOntoSchema(t *testing.T) {
	row := Row{
		"id":           jsonpool.Number("3456789012"),
		"name":         "Roadmap",
		"state":        "active",
		"updated_at":   "2024-03-01T10:15:00Z",
		"workspace_id": jsonpool.Number("42"),
		"owner":        "not in the schema",
	}

	record, err := MapRow(boardsSchema(), row)
	require.NoError(t, err)

	assert.ElementsMatch(t, boardsSchema().FieldNames(), keys(record))
	assert.Equal(t, "3456789012", record["id"])
	assert.Equal(t, "42", record["workspace_id"])
	assert.Nil(t, record["description"])
	assert.NotContains(t, record, "owner")
}

func TestMapRowErrors(t *testing.T) {
	tests := []struct {
		name  string
		row   Row
		field string
	}{
		{"missing required name", Row{"id": "1"}, "name"},
		{"null required id", Row{"id": nil, "name": "x"}, "id"},
		{"object where string expected", Row{"id": "1", "name": map[string]interface{}{}}, "name"},
		{"malformed timestamp", Row{"id": "1", "name": "x", "updated_at": "yesterday"}, "updated_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapRow(boardsSchema(), tt.row)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestMapRowConvertsScalars(t *testing.T) {
	schema := &core.Schema{
		Name: "scalars",
		Fields: []core.Field{
			{Name: "count", Type: core.FieldTypeInt, Nullable: true},
			{Name: "ratio", Type: core.FieldTypeFloat, Nullable: true},
			{Name: "done", Type: core.FieldTypeBool, Nullable: true},
		},
	}

	tests := []struct {
		name string
		row  Row
		want core.Record
	}{
		{
			name: "json numbers",
			row:  Row{"count": jsonpool.Number("12"), "ratio": jsonpool.Number("0.5"), "done": true},
			want: core.Record{"count": int64(12), "ratio": 0.5, "done": true},
		},
		{
			name: "numeric strings",
			row:  Row{"count": "7", "ratio": "65536.0", "done": "false"},
			want: core.Record{"count": int64(7), "ratio": 65536.0, "done": false},
		},
		{
			name: "all absent",
			row:  Row{},
			want: core.Record{"count": nil, "ratio": nil, "done": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := MapRow(schema, tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, record)
		})
	}

	_, err := MapRow(schema, Row{"count": jsonpool.Number("1.5")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestMapRowFlattensColumnValues(t *testing.T) {
	row := Row{
		"id":       "11",
		"name":     "Ship it",
		"board_id": "1",
		"column_values": []interface{}{
			map[string]interface{}{"id": "status", "text": "Done", "value": `{"index":1}`},
			map[string]interface{}{"id": "date4", "text": nil, "value": `{"date":"2024-01-02"}`},
			map[string]interface{}{"id": "empty", "text": "", "value": nil},
			map[string]interface{}{"id": "person", "text": nil, "value": nil},
		},
	}

	record, err := MapRow(itemsSchema(), row)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"status": "Done",
		"date4":  `{"date":"2024-01-02"}`,
		"empty":  "",
		"person": nil,
	}, record["column_values"])

	row["column_values"] = []interface{}{"not an object"}
	_, err = MapRow(itemsSchema(), row)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestPrepareItem(t *testing.T) {
	raw := Row{"id": "5", "name": "Task", "group": map[string]interface{}{"id": "topics"}}

	prepared := prepareItem(raw, "900")
	assert.Equal(t, "900", prepared["board_id"])
	assert.Equal(t, "topics", prepared["group_id"])
	assert.NotContains(t, prepared, "group")
	assert.Contains(t, raw, "group", "the raw row is left untouched")
}

func keys(record core.Record) []string {
	out := make([]string, 0, len(record))
	for k := range record {
		out = append(out, k)
	}
	return out
}
