package singer

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-monday/pkg/compression"
	"github.com/ajitpratap0/tap-monday/pkg/config"
	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
)

var boardsSchema = &core.Schema{
	Name: "boards",
	Fields: []core.Field{
		{Name: "id", Type: core.FieldTypeString, Primary: true},
		{Name: "name", Type: core.FieldTypeString},
		{Name: "state", Type: core.FieldTypeString, Nullable: true},
	},
	PrimaryKeys: []string{"id"},
}

func sampleMessages() []*core.Message {
	extracted := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*core.Message{
		{Type: core.MessageTypeSchema, Stream: "boards", Schema: boardsSchema},
		{Type: core.MessageTypeRecord, Stream: "boards", Record: core.Record{"id": "1", "name": "<Roadmap>", "state": nil}, TimeExtracted: extracted},
		{Type: core.MessageTypeRecord, Stream: "boards", Record: core.Record{"id": "2", "name": "Bugs", "state": "active"}, TimeExtracted: extracted},
		{Type: core.MessageTypeState, State: core.State{"bookmarks": map[string]interface{}{"boards": map[string]interface{}{"page": 1}}}},
	}
}

func streamOf(msgs []*core.Message, err error) *core.RecordStream {
	messages := make(chan *core.Message, len(msgs))
	errs := make(chan error, 1)
	for _, m := range msgs {
		messages <- m
	}
	if err != nil {
		errs <- err
	}
	close(errs)
	close(messages)
	return &core.RecordStream{Messages: messages, Errors: errs}
}

func newStdoutDestination(t *testing.T, buf *bytes.Buffer) *SingerDestination {
	t.Helper()
	dest, err := NewSingerDestination(nil)
	require.NoError(t, err)
	d := dest.(*SingerDestination)
	d.SetOutput(buf)
	require.NoError(t, d.Initialize(context.Background(), nil))
	return d
}

func TestWriteProducesSingerLines(t *testing.T) {
	var buf bytes.Buffer
	d := newStdoutDestination(t, &buf)

	require.NoError(t, d.Write(context.Background(), streamOf(sampleMessages(), nil)))
	require.NoError(t, d.Close(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t,
		`{"type":"RECORD","stream":"boards","record":{"id":"1","name":"<Roadmap>","state":null},"time_extracted":"2024-03-01T10:00:00Z"}`,
		lines[1])
	assert.Equal(t, `{"type":"STATE","value":{"bookmarks":{"boards":{"page":1}}}}`, lines[3])

	var schema map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal([]byte(lines[0]), &schema))
	assert.Equal(t, "SCHEMA", schema["type"])
	assert.Equal(t, "boards", schema["stream"])
	assert.Equal(t, []interface{}{"id"}, schema["key_properties"])
	props := schema["schema"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Len(t, props, 3)

	m := d.Metrics()
	assert.Equal(t, int64(2), m["records_written"])
	assert.Equal(t, int64(1), m["states_written"])
}

func TestWriteReturnsSourceErrorAfterMessages(t *testing.T) {
	var buf bytes.Buffer
	d := newStdoutDestination(t, &buf)
	defer d.Close(context.Background())

	failure := errors.WrapStream(errors.New(errors.ErrorTypeAuthentication, "api returned status 401"), "boards", "fetch page 1 failed")
	err := d.Write(context.Background(), streamOf(sampleMessages()[:2], failure))
	require.Error(t, err)
	assert.Equal(t, "boards", errors.StreamOf(err))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"), "messages before the error are flushed")
}

func TestWriteRejectsRecordBeforeSchema(t *testing.T) {
	var buf bytes.Buffer
	d := newStdoutDestination(t, &buf)
	defer d.Close(context.Background())

	err := d.WriteMessage(&core.Message{Type: core.MessageTypeRecord, Stream: "items", Record: core.Record{"id": "1"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestWriteCompressedFile(t *testing.T) {
	tests := []struct {
		name string
		file string
		alg  compression.Algorithm
	}{
		{"gzip", "out.jsonl.gz", compression.Gzip},
		{"zstd", "out.jsonl.zst", compression.Zstd},
		{"lz4", "out.jsonl.lz4", compression.LZ4},
		{"plain", "out.jsonl", compression.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tt.file)
			cfg := config.NewBaseConfig(ConnectorName, "destination")
			cfg.Security.Credentials[config.KeyPath] = path

			dest, err := NewSingerDestination(cfg)
			require.NoError(t, err)
			require.NoError(t, dest.Initialize(context.Background(), cfg))
			require.NoError(t, dest.Write(context.Background(), streamOf(sampleMessages(), nil)))
			require.NoError(t, dest.Close(context.Background()))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			r, err := compression.NewReader(f, tt.alg)
			require.NoError(t, err)
			defer r.Close()

			scanner := bufio.NewScanner(r)
			var types []string
			for scanner.Scan() {
				var msg map[string]interface{}
				require.NoError(t, jsonpool.Unmarshal(scanner.Bytes(), &msg))
				types = append(types, msg["type"].(string))
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, []string{"SCHEMA", "RECORD", "RECORD", "STATE"}, types)
		})
	}
}

func TestCompressionFromAdvancedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	cfg := config.NewBaseConfig(ConnectorName, "destination")
	cfg.Security.Credentials[config.KeyPath] = path
	cfg.Advanced.EnableCompression = true
	cfg.Advanced.CompressionAlgorithm = "snappy"

	dest, err := NewSingerDestination(cfg)
	require.NoError(t, err)
	require.NoError(t, dest.Initialize(context.Background(), cfg))
	require.NoError(t, dest.Close(context.Background()))

	_, err = os.Stat(path + ".sz")
	assert.NoError(t, err)
	assert.Equal(t, path+".sz", dest.Metrics()["path"])
}

func TestCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	d := newStdoutDestination(t, &buf)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	assert.Error(t, d.Health(context.Background()))
	assert.Error(t, d.WriteMessage(sampleMessages()[0]))
}
