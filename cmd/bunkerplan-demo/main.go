package main

import (
	"context"
	"fmt"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orchestrator"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/planner"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/workflowreg"
)

// stubClassifier answers every query as a bunker-planning request. A real
// deployment wires orchestrator.Deps.Classifier to planner.LLMClassifier
// against an anthropic/openai/bedrock model.Client instead.
type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string, []string, []string, []string) (planner.Classification, error) {
	return planner.Classification{
		QueryType:          "bunker_planning",
		Confidence:         planner.ConfidenceHigh,
		NumericConfidence:  0.9,
		ProposedWorkflowID: "bunker_planning_v1",
	}, nil
}

func okHandle(fields map[string]any) agentregistry.Handle {
	return func(agentregistry.HandleContext) (agentregistry.StateUpdate, error) {
		return agentregistry.StateUpdate(fields), nil
	}
}

func main() {
	ctx := context.Background()

	cfg := orchestrator.DefaultConfig()
	o, err := orchestrator.New(cfg, orchestrator.Deps{
		Classifier: stubClassifier{},
		SchemaFields: []state.FieldSpec{
			{Name: "route_data", Type: state.TypeObject},
			{Name: "bunker_analysis", Type: state.TypeObject},
			{Name: "analysis", Type: state.TypeObject},
			{Name: "errors", Type: state.TypeObject},
		},
		CoreSynthesisFields: []string{"route_data", "bunker_analysis"},
	})
	if err != nil {
		panic(err)
	}

	if err := o.RegisterAgent(agentregistry.Definition{
		ID: "route_agent", Type: agentregistry.TypeSpecialist,
		Produces: agentregistry.Produces{StateFields: []string{"route_data"}},
		Impl:     okHandle(map[string]any{"route_data": map[string]any{"distance_nm": 8400.0}}),
	}); err != nil {
		panic(err)
	}
	if err := o.RegisterAgent(agentregistry.Definition{
		ID: "bunker_agent", Type: agentregistry.TypeSpecialist,
		Consumes: agentregistry.Consumes{Required: []string{"route_data"}},
		Produces: agentregistry.Produces{StateFields: []string{"bunker_analysis"}},
		Impl: okHandle(map[string]any{"bunker_analysis": map[string]any{
			"best_option": map[string]any{"port": "Singapore", "price_usd_mt": 610.0},
		}}),
	}); err != nil {
		panic(err)
	}
	if err := o.RegisterAgent(agentregistry.Definition{
		ID: "finalize_agent", Type: agentregistry.TypeFinalizer,
		Consumes: agentregistry.Consumes{Required: []string{"bunker_analysis"}},
		Produces: agentregistry.Produces{StateFields: []string{"analysis"}},
		Impl: okHandle(map[string]any{"analysis": map[string]any{
			"recommendations": []any{"bunker at Singapore"},
		}}),
	}); err != nil {
		panic(err)
	}

	if err := o.RegisterWorkflow(workflowreg.Workflow{
		ID: "bunker_planning_v1", QueryType: "bunker_planning", Version: "1",
		Stages: []workflowreg.StageTemplate{
			{StageID: "route", AgentID: "route_agent", Required: true},
			{StageID: "bunker", AgentID: "bunker_agent", Required: true},
			{StageID: "finalize", AgentID: "finalize_agent", Required: true},
		},
	}); err != nil {
		panic(err)
	}

	query := "Find cheapest bunker ports from Singapore to Rotterdam for VLSFO, 1000 MT."
	plan, err := o.GeneratePlan(ctx, query, state.State{}, planner.GenerationOptions{})
	if err != nil {
		panic(err)
	}
	fmt.Println("plan:", plan.PlanID, "workflow:", plan.WorkflowID, "stages:", len(plan.Stages))

	result, err := o.ExecutePlan(ctx, plan, "demo-thread", state.State{})
	if err != nil {
		panic(err)
	}
	fmt.Println("execution success:", result.Success, "llm_calls:", result.Cost.LLMCalls)

	report := o.Synthesize(ctx, result.FinalState)
	fmt.Println("reasoning:", report.Reasoning)
	for _, step := range report.NextSteps {
		fmt.Println("next step:", step)
	}
}
