// Package safety implements the Plan Executor's declarative safety
// validators (spec.md §4.10): a small predicate set each able to request a
// soft recovery (reroute to a required agent) or a hard failure. The Plan
// Executor checks the set after each successful stage has been merged,
// passing the id of the agent that just ran; it stops the run on a hard
// failure and does not apply soft reroutes. Grounded on the teacher's
// agents/runtime/policy/policy.go Engine.Decide invariant-checking shape,
// narrowed to a declarative list instead of a DSL-compiled policy graph.
package safety

import "github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"

// Severity classifies how a failed check should be handled.
type Severity string

const (
	// SeveritySoft makes GetSafeNextAgent return RequiredAgentID instead
	// of a stop (spec.md §4.10 "soft recovery").
	SeveritySoft Severity = "soft"
	// SeverityHard means the executor must stop the run (spec.md §4.10
	// "hard failure").
	SeverityHard Severity = "hard"
)

// Outcome is one validator's verdict against the current state and the
// agent id the executor passed in (the agent that just ran).
type Outcome struct {
	Name            string
	Valid           bool
	RequiredAgentID string
	Reason          string
	Severity        Severity
}

// Validator is one declarative safety rule.
type Validator struct {
	Name        string
	AppliesWhen func(nextAgentID string) bool
	Check       func(st state.State) Outcome
}

// Set is the ordered collection of safety validators the Plan Executor
// consults after each successful stage.
type Set struct {
	Validators []Validator
}

// ValidateAll runs every validator that applies to nextAgentID, returning
// only the failing outcomes in declared order.
func (s *Set) ValidateAll(st state.State, nextAgentID string) []Outcome {
	if s == nil {
		return nil
	}
	var failures []Outcome
	for _, v := range s.Validators {
		if v.AppliesWhen != nil && !v.AppliesWhen(nextAgentID) {
			continue
		}
		if v.Check == nil {
			continue
		}
		out := v.Check(st)
		out.Name = v.Name
		if !out.Valid {
			failures = append(failures, out)
		}
	}
	return failures
}

// GetSafeNextAgent applies the first soft-recovery failure's rerouting
// and reports whether any hard failure fired (spec.md §4.10
// "get_safe_next_agent"). When no failure fired, it returns nextAgentID
// unchanged.
func GetSafeNextAgent(failures []Outcome, nextAgentID string) (agentID string, hardStop bool, reason string) {
	for _, f := range failures {
		if f.Severity == SeverityHard {
			return "", true, f.Reason
		}
	}
	for _, f := range failures {
		if f.Severity == SeveritySoft && f.RequiredAgentID != "" {
			return f.RequiredAgentID, false, f.Reason
		}
	}
	return nextAgentID, false, ""
}
