package planner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/toolregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/workflowreg"
)

// Generator is the Plan Generator (spec.md §4.7).
type Generator struct {
	Agents    *agentregistry.Registry
	Tools     *toolregistry.Registry
	Workflows *workflowreg.Registry
	Primary   Classifier
	Fallback  Classifier
	Validator *Validator
}

// NewGenerator wires a Generator over the three registries, an LLM
// classifier, and the regex fallback.
func NewGenerator(agents *agentregistry.Registry, tools *toolregistry.Registry, workflows *workflowreg.Registry, primary Classifier) *Generator {
	return &Generator{
		Agents:    agents,
		Tools:     tools,
		Workflows: workflows,
		Primary:   primary,
		Fallback:  RegexClassifier{},
		Validator: &Validator{Agents: agents, Tools: tools},
	}
}

// GeneratePlan runs the full classify -> select -> instantiate ->
// compute-dependencies -> group -> estimate -> validate pipeline (spec.md
// §4.7). The plan is returned regardless of validation outcome; callers
// decide whether to execute it.
func (g *Generator) GeneratePlan(ctx context.Context, query string, st state.State, opts GenerationOptions) (*Plan, error) {
	classification := g.classify(ctx, query)

	wf := g.selectWorkflow(classification)
	plan := &Plan{
		PlanID:         uuid.NewString(),
		QueryType:      classification.QueryType,
		Classification: classification,
		Context:        PlanContext{CorrelationID: uuid.NewString()},
	}
	if wf != nil {
		plan.WorkflowID = wf.ID
		plan.WorkflowVersion = wf.Version
	}

	stages := g.instantiateStages(wf, opts, st)
	g.computeDependencies(stages, st)
	g.groupParallel(stages, opts)
	plan.Stages = stages
	plan.ParallelGroups = collectGroups(stages)
	plan.Estimates = g.estimate(stages)
	plan.ExpectedOutputs = unionProvides(stages)

	if g.Validator != nil {
		plan.Validation = g.Validator.Validate(plan, st)
	}
	return plan, nil
}

func (g *Generator) classify(ctx context.Context, query string) Classification {
	var knownQueryTypes []string
	var knownWorkflowIDs []string
	if g.Workflows != nil {
		knownQueryTypes = g.Workflows.QueryTypes()
		for _, wf := range g.Workflows.ListAll() {
			knownWorkflowIDs = append(knownWorkflowIDs, wf.ID)
		}
	}
	var capabilities []string
	if g.Agents != nil {
		capabilities = g.Agents.Capabilities()
	}

	if g.Primary != nil {
		c, err := g.Primary.Classify(ctx, query, knownQueryTypes, knownWorkflowIDs, capabilities)
		if err == nil {
			return c
		}
	}
	if g.Fallback != nil {
		c, _ := g.Fallback.Classify(ctx, query, knownQueryTypes, knownWorkflowIDs, capabilities)
		return c
	}
	return Classification{QueryType: "unknown", Confidence: ConfidenceLow}
}

func (g *Generator) selectWorkflow(c Classification) *workflowreg.Workflow {
	if c.ProposedWorkflowID != "" {
		if wf, ok := g.Workflows.Get(c.ProposedWorkflowID); ok {
			return wf
		}
	}
	wf, ok := g.Workflows.ByQueryType(c.QueryType)
	if !ok {
		return nil
	}
	return wf
}

func (g *Generator) instantiateStages(wf *workflowreg.Workflow, opts GenerationOptions, st state.State) []Stage {
	if wf == nil {
		return nil
	}
	excluded := toSet(opts.ExcludeAgents)

	var stages []Stage
	for _, tmpl := range wf.Stages {
		if _, skip := excluded[tmpl.AgentID]; skip {
			continue
		}
		if !tmpl.Required && !opts.IncludeOptionalAgents {
			continue
		}
		agent, ok := g.Agents.Get(tmpl.AgentID)
		if !ok {
			stages = append(stages, Stage{
				StageID:  tmpl.StageID,
				AgentID:  tmpl.AgentID,
				Required: tmpl.Required,
			})
			continue
		}
		s := Stage{
			StageID:       tmpl.StageID,
			AgentID:       tmpl.AgentID,
			Required:      tmpl.Required,
			ParallelGroup: tmpl.ParallelGroup,
			Requires:      append([]string(nil), agent.Consumes.Required...),
			Provides:      append([]string(nil), agent.Produces.StateFields...),
			ToolsNeeded:   append([]string(nil), agent.Tools.Required...),
			EstDuration:   agent.Hints.MaxExecutionTime,
		}
		if tmpl.SkipWhen != "" {
			s.SkipWhen = parseStateCheckExpr(tmpl.SkipWhen)
		}
		if tmpl.ContinueWhen != "" {
			s.ContinueWhen = parseStateCheckExpr(tmpl.ContinueWhen)
		}
		stages = append(stages, s)
		if opts.MaxStages > 0 && len(stages) >= opts.MaxStages {
			break
		}
	}
	return stages
}

// parseStateCheckExpr is a minimal placeholder parser for a workflow
// YAML's skip_when/continue_when string shorthand (e.g.
// "route_data:exists"). Richer expressions are expected to be built
// directly as Predicate values by callers that construct workflows in
// Go rather than YAML.
func parseStateCheckExpr(expr string) *Predicate {
	field := expr
	exists := true
	for i := 0; i < len(expr); i++ {
		if expr[i] == ':' {
			field = expr[:i]
			break
		}
	}
	return &Predicate{StateChecks: []Condition{{Field: field, Exists: &exists}}}
}

func (g *Generator) computeDependencies(stages []Stage, st state.State) {
	for i := range stages {
		var deps []string
		for j := 0; j < i; j++ {
			if intersects(stages[j].Provides, stages[i].Requires) {
				deps = append(deps, stages[j].StageID)
			}
		}
		// Reduce (but keep) the stage if its requires are already
		// satisfied by the initial state (spec.md §4.7 step 4).
		if allSatisfied(stages[i].Requires, st) {
			deps = nil
		}
		stages[i].DependsOn = deps
	}
}

func allSatisfied(requires []string, st state.State) bool {
	for _, r := range requires {
		if !st.Has(r) {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// groupParallel assigns the same parallel_group to a contiguous run of
// stages whose depends_on sets do not reference each other (spec.md
// §4.7 step 5).
func (g *Generator) groupParallel(stages []Stage, opts GenerationOptions) {
	if !opts.EnableParallelExecution {
		return
	}
	groupNum := 0
	i := 0
	for i < len(stages) {
		if stages[i].ParallelGroup != "" {
			i++
			continue
		}
		agent, ok := g.Agents.Get(stages[i].AgentID)
		if !ok || !agent.Hints.CanRunInParallel {
			i++
			continue
		}
		ids := map[string]struct{}{stages[i].StageID: {}}
		j := i + 1
		for j < len(stages) {
			a2, ok2 := g.Agents.Get(stages[j].AgentID)
			if !ok2 || !a2.Hints.CanRunInParallel {
				break
			}
			if referencesAny(stages[j].DependsOn, ids) {
				break
			}
			ids[stages[j].StageID] = struct{}{}
			j++
		}
		if j-i > 1 {
			groupID := groupName(groupNum)
			for k := i; k < j; k++ {
				stages[k].ParallelGroup = groupID
			}
			groupNum++
		}
		i = j
	}
}

func referencesAny(deps []string, ids map[string]struct{}) bool {
	for _, d := range deps {
		if _, ok := ids[d]; ok {
			return true
		}
	}
	return false
}

func groupName(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "group_" + string(letters[n%len(letters)])
}

func collectGroups(stages []Stage) []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, s := range stages {
		if s.ParallelGroup == "" {
			continue
		}
		if _, ok := seen[s.ParallelGroup]; ok {
			continue
		}
		seen[s.ParallelGroup] = struct{}{}
		groups = append(groups, s.ParallelGroup)
	}
	return groups
}

// estimate sums per-stage durations (max within a parallel group), counts
// LLM calls from agent metadata, and counts API calls from tool cost
// classes (spec.md §4.7 step 6). It does not estimate a cost: EstCostUSD
// stays zero.
func (g *Generator) estimate(stages []Stage) Estimates {
	est := Estimates{TotalAgents: len(stages)}
	groupMax := make(map[string]time.Duration)

	for _, s := range stages {
		if s.ParallelGroup != "" {
			if s.EstDuration > groupMax[s.ParallelGroup] {
				groupMax[s.ParallelGroup] = s.EstDuration
			}
		} else {
			est.EstDuration += s.EstDuration
		}

		agent, ok := g.Agents.Get(s.AgentID)
		if ok && agent.DeclaresLLM {
			est.LLMCalls++
		}
		for _, toolID := range s.ToolsNeeded {
			tool, ok := g.Tools.Get(toolID)
			if !ok {
				continue
			}
			if tool.CostClass == toolregistry.CostAPICall || tool.CostClass == toolregistry.CostExpensive {
				est.APICalls++
			}
		}
	}
	for _, d := range groupMax {
		est.EstDuration += d
	}
	return est
}

func unionProvides(stages []Stage) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range stages {
		for _, p := range s.Provides {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func toSet(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}
