// Package agentregistry implements the Agent Registry (spec.md §4.1): a
// catalog of agent definitions with capability/intent indexing and a
// dependency graph that must remain acyclic at every registration. Shaped
// on the teacher's agents/runtime/runtime.go AgentRegistration plus
// registry/registry.go's capability indexing.
package agentregistry

import (
	"sync/atomic"
	"time"
)

// Type classifies an agent's role in a workflow (spec.md §3).
type Type string

const (
	TypeSupervisor  Type = "supervisor"
	TypeSpecialist  Type = "specialist"
	TypeCoordinator Type = "coordinator"
	TypeFinalizer   Type = "finalizer"
)

// Backoff selects the retry backoff strategy for an agent's RetryPolicy.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy bounds how the Plan Executor retries a failing agent
// invocation (spec.md §3 "execution hints").
type RetryPolicy struct {
	MaxRetries int
	Backoff    Backoff
}

// ExecutionHints advises the Plan Executor on how to schedule an agent.
type ExecutionHints struct {
	CanRunInParallel bool
	MaxExecutionTime time.Duration
	RetryPolicy      RetryPolicy
}

// Produces declares the state fields an agent writes.
type Produces struct {
	StateFields []string
}

// Consumes declares the state fields an agent reads, split into the
// fields it cannot run without and the ones it merely benefits from.
type Consumes struct {
	Required []string
	Optional []string
}

// ToolBinding declares the tools an agent needs, split into required and
// optional (spec.md §3 "tools.{required, optional}").
type ToolBinding struct {
	Required []string
	Optional []string
}

// DependencyHints are author-declared edges on top of the edges the
// registry infers from produces/consumes intersections (spec.md §4.1).
type DependencyHints struct {
	Upstream   []string
	Downstream []string
}

// Metrics tracks rolling invocation counters for an agent, mutated only
// via recordExecution.
type Metrics struct {
	total   int64
	success int64
	fail    int64
}

// MetricsSnapshot is an immutable point-in-time read of Metrics.
type MetricsSnapshot struct {
	Total   int64
	Success int64
	Fail    int64
}

// StateUpdate is the partial state an agent invocation returns: the
// fields it owns per its Produces declaration (spec.md §4.9 "Merge").
type StateUpdate map[string]any

// Handle is the implementation of an agent: a function from state to a
// partial state update (spec.md §3 "implementation handle").
type Handle func(ctx HandleContext) (StateUpdate, error)

// HandleContext is passed to an agent's Handle. It is defined here (not
// imported from internal/state) to keep agentregistry free of a
// dependency on the state package; internal/executor adapts the concrete
// state.State into this narrow view.
type HandleContext struct {
	Ctx   interface{ Done() <-chan struct{} }
	State map[string]any
}

// Definition describes one registered agent (spec.md §3 "Agent
// Definition").
type Definition struct {
	ID          string
	Name        string
	Type        Type
	DomainTags  []string
	Capabilities []string
	IntentTags  []string
	Produces    Produces
	Consumes    Consumes
	Tools       ToolBinding
	Dependency  DependencyHints
	Hints       ExecutionHints
	DeclaresLLM bool // drives llm_calls accounting (spec.md §4.9 "Cost accounting")
	Impl        Handle

	metrics Metrics
}

func (d *Definition) recordExecution(success bool) {
	atomic.AddInt64(&d.metrics.total, 1)
	if success {
		atomic.AddInt64(&d.metrics.success, 1)
	} else {
		atomic.AddInt64(&d.metrics.fail, 1)
	}
}

// MetricsSnapshot returns an immutable read of the agent's rolling
// metrics.
func (d *Definition) MetricsSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Total:   atomic.LoadInt64(&d.metrics.total),
		Success: atomic.LoadInt64(&d.metrics.success),
		Fail:    atomic.LoadInt64(&d.metrics.fail),
	}
}
