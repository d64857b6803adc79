package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/checkpoint"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/planner"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/toolregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/workflowreg"
)

type fakeClassifier struct {
	out planner.Classification
}

func (f fakeClassifier) Classify(context.Context, string, []string, []string, []string) (planner.Classification, error) {
	return f.out, nil
}

func bunkerSchemaFields() []state.FieldSpec {
	return []state.FieldSpec{
		{Name: "route_data", Type: state.TypeObject},
		{Name: "extracted_entities", Type: state.TypeObject},
		{Name: "vessel_info", Type: state.TypeObject},
		{Name: "bunker_analysis", Type: state.TypeObject},
		{Name: "analysis", Type: state.TypeObject},
		{Name: "errors", Type: state.TypeObject},
	}
}

func okHandle(fields map[string]any) agentregistry.Handle {
	return func(agentregistry.HandleContext) (agentregistry.StateUpdate, error) {
		return agentregistry.StateUpdate(fields), nil
	}
}

func newBunkerPlanningOrchestrator(t *testing.T, classification planner.Classification) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	o, err := New(cfg, Deps{
		Classifier:   fakeClassifier{out: classification},
		SchemaFields: bunkerSchemaFields(),
	})
	require.NoError(t, err)

	require.NoError(t, o.RegisterAgent(agentregistry.Definition{
		ID: "route_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"route_data"}},
		Impl:     okHandle(map[string]any{"route_data": map[string]any{"distance_nm": 8400.0}}),
	}))
	require.NoError(t, o.RegisterAgent(agentregistry.Definition{
		ID: "entity_extractor_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"extracted_entities"}},
		Impl:     okHandle(map[string]any{"extracted_entities": map[string]any{"fuel_type": "VLSFO"}}),
	}))
	require.NoError(t, o.RegisterAgent(agentregistry.Definition{
		ID: "vessel_info_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"vessel_info"}},
		Impl:     okHandle(map[string]any{"vessel_info": map[string]any{"speed_kn": 14.0}}),
	}))
	require.NoError(t, o.RegisterAgent(agentregistry.Definition{
		ID: "bunker_agent", Type: agentregistry.TypeSpecialist,
		Consumes: agentregistry.Consumes{Required: []string{"route_data"}},
		Produces: agentregistry.Produces{StateFields: []string{"bunker_analysis"}},
		Impl: okHandle(map[string]any{"bunker_analysis": map[string]any{
			"best_option": map[string]any{"port": "Singapore", "price_usd_mt": 610.0},
		}}),
	}))
	require.NoError(t, o.RegisterAgent(agentregistry.Definition{
		ID: "finalize_agent", Type: agentregistry.TypeFinalizer,
		Consumes: agentregistry.Consumes{Required: []string{"bunker_analysis"}},
		Produces: agentregistry.Produces{StateFields: []string{"analysis"}},
		Impl: okHandle(map[string]any{"analysis": map[string]any{
			"recommendations": []any{"bunker at Singapore"},
		}}),
	}))

	require.NoError(t, o.RegisterWorkflow(workflowreg.Workflow{
		ID: "bunker_planning_v1", QueryType: "bunker_planning", Version: "1",
		Stages: []workflowreg.StageTemplate{
			{StageID: "route", AgentID: "route_agent", Required: true},
			{StageID: "entity_extractor", AgentID: "entity_extractor_agent", Required: true},
			{StageID: "vessel_info", AgentID: "vessel_info_agent", Required: true},
			{StageID: "bunker", AgentID: "bunker_agent", Required: true},
			{StageID: "finalize", AgentID: "finalize_agent", Required: true},
		},
	}))
	require.NoError(t, o.RegisterWorkflow(workflowreg.Workflow{
		ID: "route_only_v1", QueryType: "route_only", Version: "1",
		Stages: []workflowreg.StageTemplate{
			{StageID: "route", AgentID: "route_agent", Required: true},
			{StageID: "finalize", AgentID: "finalize_agent", Required: true},
		},
	}))
	return o
}

func TestScenarioS1BunkerPlanningTwoVessels(t *testing.T) {
	o := newBunkerPlanningOrchestrator(t, planner.Classification{
		QueryType: "bunker_planning", Confidence: planner.ConfidenceHigh,
		NumericConfidence: 0.85, ProposedWorkflowID: "bunker_planning_v1",
	})
	ctx := context.Background()

	plan, err := o.GeneratePlan(ctx, "Find cheapest bunker ports from Singapore to Rotterdam for VLSFO, 1000 MT, vessel speed 14 kn, daily burn 35 MT.", state.State{}, planner.GenerationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bunker_planning_v1", plan.WorkflowID)
	assert.GreaterOrEqual(t, plan.Classification.NumericConfidence, 0.8)

	var bunkerStage *planner.Stage
	for i := range plan.Stages {
		if plan.Stages[i].StageID == "bunker" {
			bunkerStage = &plan.Stages[i]
		}
	}
	require.NotNil(t, bunkerStage)
	assert.Equal(t, []string{"route"}, bunkerStage.DependsOn)

	res, err := o.ExecutePlan(ctx, plan, "thread-s1", state.State{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Stopped)
	assert.Equal(t, 0, res.Cost.LLMCalls)

	routeData := res.FinalState["route_data"].(map[string]any)
	assert.Greater(t, routeData["distance_nm"].(float64), 0.0)
	bunkerAnalysis := res.FinalState["bunker_analysis"].(map[string]any)
	assert.NotNil(t, bunkerAnalysis["best_option"])
	analysis := res.FinalState["analysis"].(map[string]any)
	assert.GreaterOrEqual(t, len(analysis["recommendations"].([]any)), 1)
}

func TestScenarioS2RouteOnly(t *testing.T) {
	o := newBunkerPlanningOrchestrator(t, planner.Classification{
		QueryType: "route_only", Confidence: planner.ConfidenceHigh,
		NumericConfidence: 0.9, ProposedWorkflowID: "route_only_v1",
	})
	ctx := context.Background()

	plan, err := o.GeneratePlan(ctx, "Calculate distance between Tokyo and Shanghai.", state.State{}, planner.GenerationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "route_only_v1", plan.WorkflowID)

	for _, s := range plan.Stages {
		assert.NotEqual(t, "bunker_agent", s.AgentID)
	}
}

func TestScenarioS4SkipWhenRouteAlreadyPresent(t *testing.T) {
	o := newBunkerPlanningOrchestrator(t, planner.Classification{
		QueryType: "bunker_planning", Confidence: planner.ConfidenceHigh,
		NumericConfidence: 0.85, ProposedWorkflowID: "bunker_planning_v1",
	})
	ctx := context.Background()

	plan, err := o.GeneratePlan(ctx, "bunker plan", state.State{}, planner.GenerationOptions{})
	require.NoError(t, err)
	for i := range plan.Stages {
		if plan.Stages[i].StageID == "bunker" {
			exists := true
			plan.Stages[i].SkipWhen = &planner.Predicate{StateChecks: []planner.Condition{{Field: "route_data", Exists: &exists}}}
		}
	}

	initial := state.State{"route_data": map[string]any{"distance_nm": 500.0}}
	res, err := o.ExecutePlan(ctx, plan, "thread-s4", initial)
	require.NoError(t, err)

	found := false
	for _, sr := range res.Stages {
		if sr.StageID == "bunker" {
			found = true
			assert.Equal(t, "skipped", string(sr.Status))
		}
	}
	assert.True(t, found)
}

func TestCheckpointRoundTripAcrossFreshCheckpointer(t *testing.T) {
	ctx := context.Background()
	backend := checkpoint.NewInmemBackend()

	cfg := DefaultConfig()
	o1, err := New(cfg, Deps{CheckpointBackend: backend, SchemaFields: bunkerSchemaFields()})
	require.NoError(t, err)

	st := state.State{"route_data": map[string]any{"distance_nm": 1234.0}}
	require.NoError(t, o1.Checkpointer().Put(ctx, "thread-s5", st))

	o2, err := New(cfg, Deps{CheckpointBackend: backend, SchemaFields: bunkerSchemaFields()})
	require.NoError(t, err)

	loaded, found, err := o2.Checkpointer().Get(ctx, "thread-s5")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st["route_data"], loaded["route_data"])
}

func TestFindToolsAndAgentsFilterByCriteria(t *testing.T) {
	o := newBunkerPlanningOrchestrator(t, planner.Classification{QueryType: "bunker_planning"})
	require.NoError(t, o.RegisterTool(toolregistry.Definition{
		ID: "routing_api", Name: "Routing API", Category: toolregistry.CategoryRouting,
		Reliability: 0.9,
		Impl: func(context.Context, map[string]any) (toolregistry.Result, error) {
			return toolregistry.Result{Success: true}, nil
		},
	}))

	tools := o.FindTools(toolregistry.Criteria{Category: toolregistry.CategoryRouting})
	assert.Len(t, tools, 1)

	agents := o.FindAgents(agentregistry.Criteria{Type: agentregistry.TypeFinalizer})
	require.Len(t, agents, 1)
	assert.Equal(t, "finalize_agent", agents[0].ID)
}
