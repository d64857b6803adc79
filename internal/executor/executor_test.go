package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/planner"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

func okHandle(fields map[string]any) agentregistry.Handle {
	return func(agentregistry.HandleContext) (agentregistry.StateUpdate, error) {
		return agentregistry.StateUpdate(fields), nil
	}
}

func alwaysFailHandle(ctx agentregistry.HandleContext) (agentregistry.StateUpdate, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func newAgents(t *testing.T) *agentregistry.Registry {
	t.Helper()
	r := agentregistry.New(nil, nil)
	r.StateFieldKnown = func(string) bool { return true }

	require.NoError(t, r.Register(agentregistry.Definition{
		ID: "route_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"route_data"}},
		Hints:    agentregistry.ExecutionHints{MaxExecutionTime: time.Second},
		Impl:     okHandle(map[string]any{"route_data": map[string]any{"distance_nm": 100.0}}),
	}))
	require.NoError(t, r.Register(agentregistry.Definition{
		ID: "bunker_agent", Type: agentregistry.TypeSpecialist,
		Consumes:    agentregistry.Consumes{Required: []string{"route_data"}},
		Produces:    agentregistry.Produces{StateFields: []string{"bunker_analysis"}},
		DeclaresLLM: true,
		Hints:       agentregistry.ExecutionHints{MaxExecutionTime: time.Second},
		Impl:        okHandle(map[string]any{"bunker_analysis": "ok"}),
	}))
	return r
}

func simplePlan() *planner.Plan {
	return &planner.Plan{
		PlanID: "p1",
		Stages: []planner.Stage{
			{StageID: "route", AgentID: "route_agent", Required: true, Provides: []string{"route_data"}},
			{StageID: "bunker", AgentID: "bunker_agent", Required: true, Requires: []string{"route_data"},
				Provides: []string{"bunker_analysis"}, DependsOn: []string{"route"}},
		},
	}
}

func TestExecutorRunsStagesInDependencyOrder(t *testing.T) {
	agents := newAgents(t)
	ex := New(Options{Agents: agents})

	res, err := ex.Execute(context.Background(), simplePlan(), "thread-1", state.State{})
	require.NoError(t, err)
	require.Len(t, res.Stages, 2)
	assert.Equal(t, StageSuccess, res.Stages[0].Status)
	assert.Equal(t, "route", res.Stages[0].StageID)
	assert.Equal(t, StageSuccess, res.Stages[1].Status)
	assert.Equal(t, "bunker", res.Stages[1].StageID)
	assert.Equal(t, "ok", res.FinalState["bunker_analysis"])
	assert.Equal(t, 1, res.Cost.LLMCalls)
	assert.False(t, res.Stopped)
}

func TestExecutorSkipsStageWhenSkipWhenMatches(t *testing.T) {
	agents := newAgents(t)
	ex := New(Options{Agents: agents})

	plan := simplePlan()
	exists := true
	plan.Stages[0].SkipWhen = &planner.Predicate{StateChecks: []planner.Condition{{Field: "route_data", Exists: &exists}}}

	initial := state.State{"route_data": map[string]any{"distance_nm": 50.0}}
	res, err := ex.Execute(context.Background(), plan, "thread-1", initial)
	require.NoError(t, err)
	assert.Equal(t, StageSkipped, res.Stages[0].Status)
}

func TestExecutorStopsOnRequiredStageFailure(t *testing.T) {
	agents := newAgents(t)
	failing, _ := agents.Get("route_agent")
	failing.Impl = alwaysFailHandle
	ex := New(Options{Agents: agents})

	res, err := ex.Execute(context.Background(), simplePlan(), "thread-1", state.State{})
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.False(t, res.Success)
	assert.Equal(t, StageFailed, res.Stages[0].Status)
	assert.Len(t, res.Stages, 1, "bunker stage should never run after required route stage fails")
	assert.Contains(t, res.FinalState["errors"].(map[string]any), "route_agent")
}

func TestExecutorContinueOnErrorRunsIndependentStagesButMarksFailure(t *testing.T) {
	agents := newAgents(t)
	failing, _ := agents.Get("route_agent")
	failing.Impl = alwaysFailHandle
	require.NoError(t, agents.Register(agentregistry.Definition{
		ID: "weather_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"weather_data"}},
		Hints:    agentregistry.ExecutionHints{MaxExecutionTime: time.Second},
		Impl:     okHandle(map[string]any{"weather_data": "clear"}),
	}))
	ex := New(Options{Agents: agents, ContinueOnError: true})

	plan := simplePlan()
	plan.Stages = append(plan.Stages, planner.Stage{StageID: "weather", AgentID: "weather_agent", Required: false})

	res, err := ex.Execute(context.Background(), plan, "thread-1", state.State{})
	require.NoError(t, err)
	assert.False(t, res.Stopped)
	assert.False(t, res.Success)

	byID := map[string]StageResult{}
	for _, s := range res.Stages {
		byID[s.StageID] = s
	}
	assert.Equal(t, StageFailed, byID["route"].Status)
	assert.Equal(t, StageSkipped, byID["bunker"].Status, "dependent of failed required stage is cascade-skipped")
	assert.Equal(t, StageSuccess, byID["weather"].Status, "independent stage still runs when continue_on_error is set")
}

func TestExecutorContinuesAfterOptionalStageFailure(t *testing.T) {
	agents := newAgents(t)
	require.NoError(t, agents.Register(agentregistry.Definition{
		ID: "optional_agent", Type: agentregistry.TypeSpecialist,
		Hints: agentregistry.ExecutionHints{MaxExecutionTime: time.Second},
		Impl:  alwaysFailHandle,
	}))
	ex := New(Options{Agents: agents})

	plan := simplePlan()
	plan.Stages = append([]planner.Stage{{StageID: "optional", AgentID: "optional_agent", Required: false}}, plan.Stages...)

	res, err := ex.Execute(context.Background(), plan, "thread-1", state.State{})
	require.NoError(t, err)
	assert.False(t, res.Stopped)
	assert.Len(t, res.Stages, 3)
}

func TestExecutorStopsAfterNeedsClarificationSentinel(t *testing.T) {
	agents := newAgents(t)
	route, _ := agents.Get("route_agent")
	route.Impl = func(agentregistry.HandleContext) (agentregistry.StateUpdate, error) {
		return agentregistry.StateUpdate{
			"route_data":          map[string]any{"distance_nm": 1.0},
			state.FieldNeedsClarification: true,
		}, nil
	}
	ex := New(Options{Agents: agents})

	res, err := ex.Execute(context.Background(), simplePlan(), "thread-1", state.State{})
	require.NoError(t, err)
	assert.True(t, res.NeedsClarification)
	assert.Len(t, res.Stages, 1, "bunker stage should not run once clarification is needed")
}
