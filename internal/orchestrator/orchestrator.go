// Package orchestrator is the bunker-planning engine's public facade
// (spec.md §6 external interfaces): it wires the Tool/Agent/Workflow
// registries, the State Schema, the Reference Store and Compressor, the
// Checkpointer, the Plan Generator/Validator, the Plan Executor, and the
// Synthesis Engine into one entry point, the way the teacher's
// runtime.go wires its Runtime over the Agent/Tool/Workflow registries
// and a model Client.
package orchestrator

import (
	"context"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/checkpoint"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/compress"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/executor"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/executor/safety"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/model"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/planner"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/refstore"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/synthesis"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/toolregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/workflowreg"
)

// Orchestrator is the engine's single entry point: registry access,
// plan generation, plan execution, and result synthesis (spec.md §6,
// SPEC_FULL.md §7).
type Orchestrator struct {
	cfg Config

	tools        *toolregistry.Registry
	agents       *agentregistry.Registry
	workflows    *workflowreg.Registry
	schema       *state.Schema
	migrator     *state.Migrator
	refs         *refstore.Store
	compressor   *compress.Compressor
	checkpointer *checkpoint.Checkpointer
	generator    *planner.Generator
	executor     *executor.Executor
	synth        *synthesis.Engine

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// Deps carries the pieces a caller must supply because they hold live
// network handles or policy the orchestrator cannot default on its own:
// the classification/reasoning model client, the checkpoint backend, the
// reference-store backend, the declared state schema, and any safety
// validators.
type Deps struct {
	Classifier          planner.Classifier
	ModelClient         model.Client
	ModelName           string
	CheckpointBackend   checkpoint.Backend
	ReferenceBackend    refstore.Backend
	SchemaFields        []state.FieldSpec
	Safety              *safety.Set
	CoreSynthesisFields []string
	Logger              telemetry.Logger
	Metrics             telemetry.Metrics
}

// New wires an Orchestrator from cfg and deps. The registries start
// empty; callers populate them with RegisterTool/RegisterAgent/
// RegisterWorkflow before generating plans.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}

	schema := &state.Schema{Version: cfg.SchemaVersion, Fields: deps.SchemaFields}
	if err := schema.Compile(); err != nil {
		return nil, err
	}
	migrator := state.NewMigrator(cfg.SchemaVersion)

	tools := toolregistry.New(logger, metrics)
	agents := agentregistry.New(logger, metrics)
	agents.StateFieldKnown = func(field string) bool {
		_, ok := schema.Field(field)
		return ok
	}
	agents.ToolExists = tools.Has
	workflows := workflowreg.New()

	refBackend := deps.ReferenceBackend
	if refBackend == nil {
		refBackend = refstore.NewInmemBackend()
	}
	refs := refstore.New(refBackend, cfg.ReferenceTTL, metrics)
	compressor := compress.New(refs, schema, cfg.InlineSizeThresholdBytes)

	cpBackend := deps.CheckpointBackend
	if cpBackend == nil {
		cpBackend = checkpoint.NewInmemBackend()
	}
	cp := checkpoint.New(checkpoint.Options{
		Backend:               cpBackend,
		Schema:                schema,
		Migrator:              migrator,
		Compressor:            compressor,
		TTL:                   cfg.CheckpointTTL,
		MaxRetries:            cfg.MaxCheckpointAttempts,
		RetryBase:             cfg.RetryBackoff,
		RefreshTTLOnRead:      cfg.RefreshCheckpointOnRead,
		DeltaSavingsThreshold: cfg.DeltaSavingsThresholdPercent,
		Logger:                logger,
		Metrics:               metrics,
	})

	gen := planner.NewGenerator(agents, tools, workflows, deps.Classifier)

	exec := executor.New(executor.Options{
		Agents:           agents,
		Checkpointer:     cp,
		Safety:           deps.Safety,
		CircuitWindow:    cfg.CircuitBreakerWindow,
		CircuitThreshold: cfg.CircuitBreakerThreshold,
		ContinueOnError:  cfg.ContinueOnError,
		Logger:           logger,
		Metrics:          metrics,
	})

	synthEngine := &synthesis.Engine{
		Rules:      synthesis.DefaultRules(),
		Client:     deps.ModelClient,
		Model:      deps.ModelName,
		CoreFields: deps.CoreSynthesisFields,
	}

	return &Orchestrator{
		cfg:          cfg,
		tools:        tools,
		agents:       agents,
		workflows:    workflows,
		schema:       schema,
		migrator:     migrator,
		refs:         refs,
		compressor:   compressor,
		checkpointer: cp,
		generator:    gen,
		executor:     exec,
		synth:        synthEngine,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// RegisterTool adds a tool definition to the Tool Registry.
func (o *Orchestrator) RegisterTool(def toolregistry.Definition) error {
	return o.tools.Register(def)
}

// RegisterAgent adds an agent definition to the Agent Registry.
func (o *Orchestrator) RegisterAgent(def agentregistry.Definition) error {
	return o.agents.Register(def)
}

// RegisterWorkflow adds a workflow template to the Workflow Registry.
func (o *Orchestrator) RegisterWorkflow(wf workflowreg.Workflow) error {
	return o.workflows.Register(wf)
}

// LoadWorkflowsYAML registers every workflow declared in a YAML document
// (spec.md §4.2 "declarative workflow templates").
func (o *Orchestrator) LoadWorkflowsYAML(data []byte) error {
	return o.workflows.LoadYAML(data)
}

// FindTools filters the Tool Registry by criteria.
func (o *Orchestrator) FindTools(c toolregistry.Criteria) []*toolregistry.Definition {
	return o.tools.Find(c)
}

// FindAgents filters the Agent Registry by criteria.
func (o *Orchestrator) FindAgents(c agentregistry.Criteria) []*agentregistry.Definition {
	return o.agents.Find(c)
}

// Checkpointer exposes the engine's Checkpointer directly, for callers
// that need Get/Put/Health outside the GeneratePlan/ExecutePlan flow
// (e.g. resuming a thread).
func (o *Orchestrator) Checkpointer() *checkpoint.Checkpointer {
	return o.checkpointer
}

// GeneratePlan classifies query, selects and instantiates a workflow
// against the Agent Registry, computes dependencies and parallel groups,
// estimates cost, and validates the result (spec.md §4.7).
func (o *Orchestrator) GeneratePlan(ctx context.Context, query string, st state.State, opts planner.GenerationOptions) (*planner.Plan, error) {
	plan, err := o.generator.GeneratePlan(ctx, query, st, opts)
	if err != nil {
		return nil, err
	}
	if plan.Context.Timeout <= 0 {
		plan.Context.Timeout = o.cfg.PlanTimeout
	}
	return plan, nil
}

// ExecutePlan runs plan's stages against the Agent Registry, checkpointing
// after every stage group (spec.md §4.9).
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *planner.Plan, threadID string, initial state.State) (*executor.Result, error) {
	return o.executor.Execute(ctx, plan, threadID, initial)
}

// Synthesize projects a final execution state into the operator-facing
// Synthesis Report (spec.md §4.11).
func (o *Orchestrator) Synthesize(ctx context.Context, st state.State) synthesis.Report {
	return o.synth.Synthesize(ctx, st)
}

// CompressionReport aggregates compression effectiveness across every
// checkpoint the Checkpointer has written, grounded on the original
// implementation's metrics-snapshot operation (SPEC_FULL.md §5
// "metrics snapshot/compression-effectiveness report").
func (o *Orchestrator) CompressionReport(_ context.Context) telemetry.CompressionReport {
	return o.checkpointer.CompressionSnapshot()
}

// Health reports the Checkpointer backend's operational status for
// probeThreadID (spec.md §6 "A health endpoint exposes...").
func (o *Orchestrator) Health(ctx context.Context, probeThreadID string) checkpoint.HealthReport {
	return o.checkpointer.Health(ctx, probeThreadID)
}
