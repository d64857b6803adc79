package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
)

// FieldType is the declared primitive/object type of a schema field
// (spec.md §4.3 "type descriptor").
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
	TypeAny    FieldType = "any"
)

// SemanticTag annotates a field with cross-cutting behavior the schema
// alone doesn't express (spec.md §4.3 "semantic tag").
type SemanticTag string

const (
	TagReferenceable SemanticTag = "referenceable"
	TagSensitive     SemanticTag = "sensitive"
)

// FieldSpec describes one state field's shape and behavior.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	MaxSize  int // serialized byte cap; 0 means unbounded
	Tags     []SemanticTag
}

// HasTag reports whether the field carries a given semantic tag.
func (f FieldSpec) HasTag(tag SemanticTag) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Schema enumerates the declared shape of a State at a given version
// (spec.md §4.3).
type Schema struct {
	Version string
	Fields  []FieldSpec

	index  map[string]FieldSpec
	schema *jsonschema.Schema
}

// Compile builds the field index and compiles a JSON Schema document
// from the field list, following the teacher's compile-then-validate
// pattern (registry/service.go validatePayloadJSONAgainstSchema).
func (s *Schema) Compile() error {
	s.index = make(map[string]FieldSpec, len(s.Fields))
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		s.index[f.Name] = f
		if t, ok := jsonSchemaType(f.Type); ok {
			properties[f.Name] = map[string]any{"type": t}
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	c := jsonschema.NewCompiler()
	resourceID := "state-schema-" + s.Version + ".json"
	if err := c.AddResource(resourceID, doc); err != nil {
		return orcherr.Wrap(orcherr.SchemaValidationFail, "add schema resource", err)
	}
	compiled, err := c.Compile(resourceID)
	if err != nil {
		return orcherr.Wrap(orcherr.SchemaValidationFail, "compile state schema", err)
	}
	s.schema = compiled
	return nil
}

func jsonSchemaType(t FieldType) (string, bool) {
	switch t {
	case TypeString:
		return "string", true
	case TypeNumber:
		return "number", true
	case TypeBool:
		return "boolean", true
	case TypeObject:
		return "object", true
	case TypeArray:
		return "array", true
	default:
		return "", false
	}
}

// Field returns the spec for a named field.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	f, ok := s.index[name]
	return f, ok
}

// ValidationResult is the output of Validate (spec.md §4.3).
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate checks st against the schema: jsonschema-level type checks,
// plus size-cap enforcement jsonschema doesn't express natively (spec.md
// §4.3, §8 invariant 11).
func (s *Schema) Validate(st State) ValidationResult {
	result := ValidationResult{Valid: true}

	payload, err := json.Marshal(map[string]any(st))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to marshal state: %v", err))
		return result
	}
	var instance any
	if err := json.Unmarshal(payload, &instance); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to decode state: %v", err))
		return result
	}

	if s.schema != nil {
		if err := s.schema.Validate(instance); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, translateSchemaError(err))
		}
	}

	for _, f := range s.Fields {
		if f.MaxSize <= 0 {
			continue
		}
		v, ok := st[f.Name]
		if !ok || v == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if len(raw) > f.MaxSize {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("field %s exceeds max size %d", f.Name, f.MaxSize))
		}
	}

	if st.Version() != s.Version {
		result.Warnings = append(result.Warnings, fmt.Sprintf("state version %q does not match schema version %q", st.Version(), s.Version))
	}

	return result
}

// translateSchemaError renders a jsonschema validation error into the
// spec's wording ("missing required field", "invalid type"), descending
// into the most specific cause jsonschema reports.
func translateSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	msg := ve.Error()
	switch {
	case strings.Contains(msg, "required"):
		return "missing required field: " + msg
	case strings.Contains(msg, "type"):
		return "invalid type: " + msg
	default:
		return msg
	}
}
