// Package planner implements the Plan Generator and Plan Validator
// (spec.md §4.7-4.8): single-LLM-call classification, workflow
// instantiation, dependency computation, parallel grouping, cost
// estimation, and structural/semantic validation. Grounded on the
// teacher's features/model/anthropic Complete shape for the
// classification call and agents/runtime/policy/policy.go's
// Decision/Input shape for the plan's routing-decision record.
package planner

import (
	"time"
)

// Confidence buckets the classifier's confidence in a query type guess.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ExtractedEntities holds the structured fields the classifier pulls out
// of a free-form query (spec.md §4.7).
type ExtractedEntities struct {
	Origin        string   `json:"origin,omitempty"`
	Destination   string   `json:"destination,omitempty"`
	VesselName    string   `json:"vessel_name,omitempty"`
	FuelTypes     []string `json:"fuel_types,omitempty"`
	FuelQuantity  float64  `json:"fuel_quantity,omitempty"`
	DepartureDate string   `json:"departure_date,omitempty"`
}

// Classification is the Plan Generator's single structured-output LLM
// call result, or the regex fallback's equivalent (spec.md §4.7).
type Classification struct {
	QueryType          string
	Confidence         Confidence
	NumericConfidence  float64
	Reasoning          string
	SecondaryIntents   []string
	ExtractedEntities  ExtractedEntities
	ProposedWorkflowID string
}

// GenerationOptions parameterize GeneratePlan (spec.md §4.7).
type GenerationOptions struct {
	ForceRegenerate         bool
	IncludeOptionalAgents   bool
	EnableParallelExecution bool
	MaxStages               int
	ExcludeAgents           []string
	ContextOverrides        map[string]any
}

// Condition is one state-field predicate used by SkipWhen/ContinueWhen
// (spec.md §8 scenario S4 "skip_when.state_checks.route_data={exists:
// true}").
type Condition struct {
	Field  string
	Exists *bool
	Equals any
}

// Predicate is a small conjunction of Conditions evaluated against state.
type Predicate struct {
	StateChecks []Condition
}

// Matches reports whether every condition in p holds against values.
func (p *Predicate) Matches(values map[string]any) bool {
	if p == nil {
		return false
	}
	for _, c := range p.StateChecks {
		v, present := values[c.Field]
		if c.Exists != nil {
			if *c.Exists != (present && v != nil) {
				return false
			}
			continue
		}
		if c.Equals != nil && v != c.Equals {
			return false
		}
	}
	return true
}

// Stage is an instantiated plan stage (spec.md §3 "Plan Stage").
type Stage struct {
	StageID       string
	AgentID       string
	Required      bool
	ParallelGroup string
	SkipWhen      *Predicate
	ContinueWhen  *Predicate
	DependsOn     []string
	Provides      []string
	Requires      []string
	ToolsNeeded   []string
	EstDuration   time.Duration
	EstCost       float64
}

// Validation is the Plan Validator's result (spec.md §4.8).
type Validation struct {
	IsValid       bool
	MissingInputs []string
	InvalidAgents []string
	InvalidTools  []string
	Warnings      []string
}

// Estimates summarizes the plan's projected cost and duration (spec.md
// §4.7 "Estimate").
type Estimates struct {
	TotalAgents int
	LLMCalls    int
	APICalls    int
	EstCostUSD  float64
	EstDuration time.Duration
}

// PlanContext carries per-execution runtime parameters (spec.md §3
// "context").
type PlanContext struct {
	Timeout       time.Duration
	Priority      string
	CorrelationID string
}

// Plan is the immutable Execution Plan produced by the Plan Generator
// (spec.md §3 "Execution Plan"). Once returned, a Plan's Stages are
// never mutated by the executor (spec.md §3 "Ownership").
type Plan struct {
	PlanID          string
	QueryType       string
	WorkflowID      string
	WorkflowVersion string
	Classification  Classification
	Stages          []Stage
	Validation      Validation
	Estimates       Estimates
	RequiredState   []string
	ExpectedOutputs []string
	Context         PlanContext
	ParallelGroups  []string
}
