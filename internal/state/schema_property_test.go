package state

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestValidateAcceptsAnyCorrelationIDProperty verifies spec.md §8
// invariant 11 from the positive side: any string value for a required
// string field validates, regardless of its content.
func TestValidateAcceptsAnyCorrelationIDProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	schema := &Schema{
		Version: "2.0.0",
		Fields: []FieldSpec{
			{Name: "correlation_id", Type: TypeString, Required: true},
		},
	}
	if err := schema.Compile(); err != nil {
		t.Fatal(err)
	}

	properties.Property("any string correlation_id validates", prop.ForAll(
		func(id string) bool {
			result := schema.Validate(State{SchemaVersionKey: "2.0.0", "correlation_id": id})
			return result.Valid
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestValidateRejectsOversizeFieldProperty verifies spec.md §8 invariant
// 11: a field whose serialized size exceeds its MaxSize always produces
// an "exceeds max size" error, for any message count beyond the cap.
func TestValidateRejectsOversizeFieldProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	schema := &Schema{
		Version: "2.0.0",
		Fields: []FieldSpec{
			{Name: "correlation_id", Type: TypeString, Required: true},
			{Name: "messages", Type: TypeArray, MaxSize: 16},
		},
	}
	if err := schema.Compile(); err != nil {
		t.Fatal(err)
	}

	properties.Property("too many messages exceeds max size", prop.ForAll(
		func(count int) bool {
			messages := make([]any, count)
			for i := range messages {
				messages[i] = "a message long enough to blow the byte cap"
			}
			result := schema.Validate(State{
				SchemaVersionKey: "2.0.0",
				"correlation_id": "thread-1",
				"messages":       messages,
			})
			if result.Valid {
				return false
			}
			for _, e := range result.Errors {
				if strings.Contains(e, "exceeds max size") {
					return true
				}
			}
			return false
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
