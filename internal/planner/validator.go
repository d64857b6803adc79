package planner

import (
	"sort"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/toolregistry"
)

// Validator is the Plan Validator (spec.md §4.8): every agent_id is
// registered (agents carry no enabled flag, so none is checked), every
// needed tool exists, depends_on is acyclic, every
// stage's requires is satisfied by the initial state or an upstream
// stage's provides, and expected_outputs is covered by the union of all
// provides.
type Validator struct {
	Agents *agentregistry.Registry
	Tools  *toolregistry.Registry
}

// Validate checks plan's stages against the registries and the initial
// state, returning a Validation report. The plan is still returned by
// GeneratePlan regardless of the outcome (spec.md §4.7).
func (v *Validator) Validate(plan *Plan, initial state.State) Validation {
	result := Validation{IsValid: true}

	seen := make(map[string]struct{}, len(plan.Stages))
	for _, s := range plan.Stages {
		seen[s.StageID] = struct{}{}
	}

	if cycle := findDependsOnCycle(plan.Stages); cycle != nil {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "dependency cycle detected among stages: "+joinStrings(cycle))
	}

	available := make(map[string]struct{}, len(initial))
	for k := range initial {
		available[k] = struct{}{}
	}

	for _, s := range plan.Stages {
		if v.Agents != nil && !v.Agents.Has(s.AgentID) {
			result.InvalidAgents = append(result.InvalidAgents, s.AgentID)
			result.IsValid = false
		}
		for _, toolID := range s.ToolsNeeded {
			if v.Tools != nil && !v.Tools.Has(toolID) {
				result.InvalidTools = append(result.InvalidTools, toolID)
				result.IsValid = false
			}
		}
		for _, dep := range s.DependsOn {
			if _, ok := seen[dep]; !ok {
				result.Warnings = append(result.Warnings, "stage "+s.StageID+" depends_on unknown stage "+dep)
				result.IsValid = false
			}
		}
		for _, req := range s.Requires {
			if _, ok := available[req]; !ok {
				result.MissingInputs = append(result.MissingInputs, req)
				result.IsValid = false
			}
		}
		for _, p := range s.Provides {
			available[p] = struct{}{}
		}
	}

	for _, out := range plan.ExpectedOutputs {
		if _, ok := available[out]; !ok {
			result.Warnings = append(result.Warnings, "expected output "+out+" is not produced by any stage")
		}
	}

	sort.Strings(result.MissingInputs)
	sort.Strings(result.InvalidAgents)
	sort.Strings(result.InvalidTools)
	return result
}

// findDependsOnCycle runs a DFS over the stage depends_on graph, mirroring
// agentregistry's white/gray/black coloring so a cyclic plan is reported
// the same way a cyclic agent registration is (spec.md §8 invariant 1).
func findDependsOnCycle(stages []Stage) []string {
	byID := make(map[string]Stage, len(stages))
	for _, s := range stages {
		byID[s.StageID] = s
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(stages))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		deps := append([]string(nil), byID[id].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				cycle = append(append([]string(nil), path...), dep)
				return true
			}
		}
		color[id] = black
		path = path[:len(path)-1]
		return false
	}

	ids := make([]string, 0, len(stages))
	for _, s := range stages {
		ids = append(ids, s.StageID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += " -> "
		}
		out += s
	}
	return out
}
