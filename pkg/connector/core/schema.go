package core

// Schema represents the fixed output schema of a stream
type Schema struct {
	Name        string
	Description string
	Fields      []Field
	PrimaryKeys []string
}

// Field represents a field in the schema
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Nullable    bool
	Primary     bool
}

// FieldType represents the semantic type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	// FieldTypeJSON is an object whose values are strings or null
	FieldTypeJSON FieldType = "json"
)

// FieldNames returns the declared field names in order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the schema as a JSON Schema object
func (s *Schema) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		properties[f.Name] = f.jsonSchema()
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}
	out := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (f Field) jsonSchema() map[string]interface{} {
	var base string
	prop := map[string]interface{}{}
	switch f.Type {
	case FieldTypeInt:
		base = "integer"
	case FieldTypeFloat:
		base = "number"
	case FieldTypeBool:
		base = "boolean"
	case FieldTypeTimestamp:
		base = "string"
		prop["format"] = "date-time"
	case FieldTypeJSON:
		base = "object"
		prop["additionalProperties"] = map[string]interface{}{
			"type": []string{"null", "string"},
		}
	default:
		base = "string"
	}
	if f.Nullable {
		prop["type"] = []string{"null", base}
	} else {
		prop["type"] = []string{base}
	}
	if f.Description != "" {
		prop["description"] = f.Description
	}
	return prop
}
