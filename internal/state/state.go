// Package state implements the State Schema, Validator, and Migrator
// (spec.md §4.3): a versioned, validated mapping from named fields to
// values that flows through the Plan Executor and Checkpointer. Schema
// validation is grounded on the teacher's registry/service.go
// validatePayloadJSONAgainstSchema (compile-then-validate via
// santhosh-tekuri/jsonschema/v6).
package state

// State is the mapping from named fields to values that flows through a
// plan execution (spec.md §3 "State"). Orchestration fields
// (next_agent, execution_plan, workflow_stage, reasoning_history,
// correlation_id) and domain fields (route_data, weather, bunker
// analyses, vessel list, noon reports, messages, errors/status per
// agent) share this one mapping, distinguished only by the schema.
type State map[string]any

// SchemaVersionKey is the reserved field every checkpointed state must
// carry (spec.md §3 invariant iii, §6 "_schema_version").
const SchemaVersionKey = "_schema_version"

// Orchestration field names (spec.md §3).
const (
	FieldNextAgent        = "next_agent"
	FieldExecutionPlan    = "execution_plan"
	FieldWorkflowStage    = "workflow_stage"
	FieldReasoningHistory = "reasoning_history"
	FieldCorrelationID    = "correlation_id"
	FieldNeedsClarification = "needs_clarification"
)

// Version returns the state's declared schema version, or "" if absent.
func (s State) Version() string {
	v, _ := s[SchemaVersionKey].(string)
	return v
}

// Clone returns a shallow copy of s: a new top-level map, but field
// values are not deep-copied. This matches the executor's snapshot
// semantics (spec.md §5 "concurrent stages receive a read-only snapshot
// of the state at group start") since stage handles are expected to
// treat their input state as read-only and return a partial update
// rather than mutate it in place.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies a partial update over s in place, returning the list of
// field names present in update that are not declared in allowedFields
// (spec.md §4.9 "any field it writes that it does not declare as
// produced yields a warning"). When allowedFields is nil, every field is
// permitted and the returned list is always empty.
func (s State) Merge(update map[string]any, allowedFields []string) []string {
	var undeclared []string
	allowed := make(map[string]struct{}, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = struct{}{}
	}
	for k, v := range update {
		if allowedFields != nil {
			if _, ok := allowed[k]; !ok {
				undeclared = append(undeclared, k)
			}
		}
		s[k] = v
	}
	return undeclared
}

// Has reports whether a field is present and non-nil.
func (s State) Has(field string) bool {
	v, ok := s[field]
	return ok && v != nil
}
