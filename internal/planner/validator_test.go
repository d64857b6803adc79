package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

func TestValidatorFlagsInvalidAgentAndTool(t *testing.T) {
	agents, tools, _ := bunkerFixtures(t)
	v := &Validator{Agents: agents, Tools: tools}

	plan := &Plan{
		Stages: []Stage{
			{StageID: "s1", AgentID: "unknown_agent", ToolsNeeded: []string{"unknown_tool"}},
		},
	}
	result := v.Validate(plan, state.State{})
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidAgents, "unknown_agent")
	assert.Contains(t, result.InvalidTools, "unknown_tool")
}

func TestValidatorFlagsMissingInputs(t *testing.T) {
	agents, tools, _ := bunkerFixtures(t)
	v := &Validator{Agents: agents, Tools: tools}

	plan := &Plan{
		Stages: []Stage{
			{StageID: "bunker", AgentID: "bunker_agent", Requires: []string{"route_data"}},
		},
	}
	result := v.Validate(plan, state.State{})
	assert.False(t, result.IsValid)
	assert.Contains(t, result.MissingInputs, "route_data")
}

func TestValidatorAcceptsRequiresSatisfiedByUpstreamProvides(t *testing.T) {
	agents, tools, _ := bunkerFixtures(t)
	v := &Validator{Agents: agents, Tools: tools}

	plan := &Plan{
		Stages: []Stage{
			{StageID: "route", AgentID: "route_agent", Provides: []string{"route_data"}},
			{StageID: "bunker", AgentID: "bunker_agent", Requires: []string{"route_data"}, DependsOn: []string{"route"}},
		},
	}
	result := v.Validate(plan, state.State{})
	assert.True(t, result.IsValid, "warnings: %v", result.Warnings)
	assert.Empty(t, result.MissingInputs)
}

func TestValidatorDetectsDependsOnCycle(t *testing.T) {
	agents, tools, _ := bunkerFixtures(t)
	v := &Validator{Agents: agents, Tools: tools}

	plan := &Plan{
		Stages: []Stage{
			{StageID: "a", AgentID: "route_agent", DependsOn: []string{"b"}},
			{StageID: "b", AgentID: "bunker_agent", DependsOn: []string{"a"}},
		},
	}
	result := v.Validate(plan, state.State{})
	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Warnings)
}

func TestValidatorWarnsOnUncoveredExpectedOutput(t *testing.T) {
	agents, tools, _ := bunkerFixtures(t)
	v := &Validator{Agents: agents, Tools: tools}

	plan := &Plan{
		Stages:          []Stage{{StageID: "route", AgentID: "route_agent", Provides: []string{"route_data"}}},
		ExpectedOutputs: []string{"bunker_analysis"},
	}
	result := v.Validate(plan, state.State{})
	assert.NotEmpty(t, result.Warnings)
}
