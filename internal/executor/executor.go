// Package executor implements the Plan Executor (spec.md §4.9): a
// topological scheduler that runs an Execution Plan's stages against
// live agents, fans parallel groups out over goroutines joined before
// the next ready set, applies skip/continue predicates and safety
// validators, retries with backoff, trips a circuit breaker on repeated
// agent failure, checkpoints after every stage group, and accounts cost
// from actual invocations rather than the plan's estimates. Grounded on
// runtime/agent/engine/inmem/engine.go's goroutine-plus-future join
// pattern and agents/runtime/policy/policy.go's retry/circuit-breaker
// budget tracking. The executor never calls an LLM directly — only
// agent Impl closures do, and only the Plan Generator and Synthesis
// Engine are expected to hold LLM clients.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/agentregistry"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/checkpoint"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/executor/safety"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/planner"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

// StageStatus is a stage's position in its state machine: pending ->
// skipped | running -> success | failed | timeout. Transitions never run
// backward (spec.md §4.9 "state machine per stage").
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageSkipped StageStatus = "skipped"
	StageRunning StageStatus = "running"
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	StageTimeout StageStatus = "timeout"
)

// StageResult records one stage's execution outcome.
type StageResult struct {
	StageID  string
	AgentID  string
	Status   StageStatus
	Update   map[string]any
	Err      error
	Duration time.Duration
	Attempts int
}

// CostAccounting totals actual invocations against the plan's estimates
// (spec.md §4.9 "cost accounting"; Open Question (a): llm_calls counts
// actual invocations, not the generator's estimate). There is no pricing
// table: ActualCostUSD is never computed and stays zero, and EstCostUSD
// copies the plan estimate, which is zero as well.
type CostAccounting struct {
	LLMCalls      int
	APICalls      int
	ActualCostUSD float64
	EstLLMCalls   int
	EstAPICalls   int
	EstCostUSD    float64
}

// Result is the Plan Executor's output for one run.
type Result struct {
	PlanID             string
	ThreadID           string
	FinalState         state.State
	Stages             []StageResult
	NeedsClarification bool
	Stopped            bool
	StopReason         string
	// Success is false whenever a required stage failed or timed out,
	// regardless of ContinueOnError (spec.md §8 invariant 6).
	Success bool
	Cost    CostAccounting
}

// Options configures an Executor.
type Options struct {
	Agents           *agentregistry.Registry
	Checkpointer     *checkpoint.Checkpointer
	Safety           *safety.Set
	CircuitWindow    time.Duration
	CircuitThreshold int
	// ContinueOnError, when true, keeps running independent stages after a
	// required-stage failure instead of aborting the plan (spec.md §6
	// configuration table "continue_on_error").
	ContinueOnError bool

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Executor runs Execution Plans against the Agent Registry.
type Executor struct {
	agents          *agentregistry.Registry
	checkpointer    *checkpoint.Checkpointer
	safety          *safety.Set
	continueOnError bool

	breakersMu       sync.Mutex
	breakers         map[string]*breaker
	circuitWindow    time.Duration
	circuitThreshold int

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// New constructs an Executor.
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Executor{
		agents:           opts.Agents,
		checkpointer:     opts.Checkpointer,
		safety:           opts.Safety,
		continueOnError:  opts.ContinueOnError,
		breakers:         make(map[string]*breaker),
		circuitWindow:    opts.CircuitWindow,
		circuitThreshold: opts.CircuitThreshold,
		logger:           logger,
		metrics:          metrics,
	}
}

func (e *Executor) breakerFor(agentID string) *breaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	b, ok := e.breakers[agentID]
	if !ok {
		b = newBreaker(e.circuitWindow, e.circuitThreshold)
		e.breakers[agentID] = b
	}
	return b
}

// Execute runs plan's stages to completion, a required-stage failure, a
// needs_clarification sentinel, or ctx cancellation — whichever comes
// first (spec.md §4.9).
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, threadID string, initial state.State) (*Result, error) {
	st := initial.Clone()
	byID := make(map[string]planner.Stage, len(plan.Stages))
	for _, s := range plan.Stages {
		byID[s.StageID] = s
	}
	status := make(map[string]StageStatus, len(plan.Stages))
	for _, s := range plan.Stages {
		status[s.StageID] = StagePending
	}

	result := &Result{PlanID: plan.PlanID, ThreadID: threadID, Success: true}
	result.Cost.EstLLMCalls = plan.Estimates.LLMCalls
	result.Cost.EstAPICalls = plan.Estimates.APICalls
	result.Cost.EstCostUSD = plan.Estimates.EstCostUSD

	deadline := time.Now().Add(plan.Context.Timeout)
	hasDeadline := plan.Context.Timeout > 0

	for {
		ready, cascaded := e.readyStages(plan.Stages, status)
		if len(ready) == 0 && len(cascaded) == 0 {
			break
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		groupResults := make([]StageResult, 0, len(ready)+len(cascaded))
		for _, s := range cascaded {
			groupResults = append(groupResults, StageResult{StageID: s.StageID, AgentID: s.AgentID, Status: StageSkipped})
		}

		for _, s := range ready {
			sID := s.StageID
			stage := s

			if stage.SkipWhen != nil && stage.SkipWhen.Matches(st) {
				status[sID] = StageSkipped
				mu.Lock()
				groupResults = append(groupResults, StageResult{StageID: sID, AgentID: stage.AgentID, Status: StageSkipped})
				mu.Unlock()
				continue
			}
			if stage.ContinueWhen != nil && !stage.ContinueWhen.Matches(st) {
				status[sID] = StageSkipped
				mu.Lock()
				groupResults = append(groupResults, StageResult{StageID: sID, AgentID: stage.AgentID, Status: StageSkipped})
				mu.Unlock()
				continue
			}

			status[sID] = StageRunning
			wg.Add(1)
			go func() {
				defer wg.Done()
				stageCtx := ctx
				var cancel context.CancelFunc
				if hasDeadline {
					remaining := time.Until(deadline)
					stageCtx, cancel = context.WithTimeout(ctx, remaining)
					defer cancel()
				}
				sr := e.runStage(stageCtx, stage, st)
				mu.Lock()
				groupResults = append(groupResults, sr)
				mu.Unlock()
			}()
		}
		wg.Wait()

		stop, stopReason := e.applyGroup(ctx, plan, byID, status, st, groupResults, result)
		result.Stages = append(result.Stages, groupResults...)

		if e.checkpointer != nil {
			if err := e.checkpointer.Put(ctx, threadID, st); err != nil {
				e.logger.Warn(ctx, "checkpoint after stage group failed", "thread_id", threadID, "error", err)
			}
		}

		if st.Has(state.FieldNeedsClarification) {
			result.NeedsClarification = true
			result.Stopped = true
			result.StopReason = "needs_clarification"
			break
		}
		if stop {
			result.Stopped = true
			result.StopReason = stopReason
			break
		}
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			result.StopReason = err.Error()
			break
		}
	}

	result.FinalState = st
	return result, nil
}

// readyStages returns the pending stages whose depends_on are all
// resolved, in plan order. A stage depending on a failed or
// timed-out upstream is itself marked skipped rather than invoked — its
// required input was never produced (spec.md §6 "subsequent stages do
// not appear in stages_completed" under the default continue_on_error
// semantics).
func (e *Executor) readyStages(stages []planner.Stage, status map[string]StageStatus) (ready []planner.Stage, cascaded []planner.Stage) {
	for _, s := range stages {
		if status[s.StageID] != StagePending {
			continue
		}
		allResolved := true
		blocked := false
		for _, dep := range s.DependsOn {
			ds, ok := status[dep]
			if !ok {
				allResolved = false
				break
			}
			switch ds {
			case StageSuccess, StageSkipped:
			case StageFailed, StageTimeout:
				blocked = true
			default:
				allResolved = false
			}
		}
		if !allResolved {
			continue
		}
		if blocked {
			status[s.StageID] = StageSkipped
			cascaded = append(cascaded, s)
			continue
		}
		ready = append(ready, s)
	}
	return ready, cascaded
}

// runStage invokes one agent with retry and circuit-breaker protection,
// respecting the agent's RetryPolicy and MaxExecutionTime hint.
func (e *Executor) runStage(ctx context.Context, stage planner.Stage, st state.State) StageResult {
	agent, ok := e.agents.Get(stage.AgentID)
	if !ok {
		return StageResult{StageID: stage.StageID, AgentID: stage.AgentID, Status: StageFailed,
			Err: orcherr.New(orcherr.NotFound, "agent "+stage.AgentID+" not registered")}
	}

	b := e.breakerFor(stage.AgentID)
	if b.isOpen(time.Now()) {
		return StageResult{StageID: stage.StageID, AgentID: stage.AgentID, Status: StageFailed,
			Err: orcherr.New(orcherr.StageFailed, "circuit open for agent "+stage.AgentID)}
	}

	maxRetries := agent.Hints.RetryPolicy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	start := time.Now()
	var lastErr error
	var update agentregistry.StateUpdate
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		if attempt > 0 {
			wait := backoffDuration(agent.Hints.RetryPolicy.Backoff, attempt)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
				goto done
			case <-timer.C:
			}
		}

		stageCtx := ctx
		var cancel context.CancelFunc
		if agent.Hints.MaxExecutionTime > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, agent.Hints.MaxExecutionTime)
		}
		u, err := agent.Impl(agentregistry.HandleContext{Ctx: stageCtx, State: st})
		if cancel != nil {
			cancel()
		}
		if err == nil {
			update = u
			lastErr = nil
			break
		}
		lastErr = err
		if stageCtx.Err() == context.DeadlineExceeded {
			lastErr = orcherr.Wrap(orcherr.StageTimeout, "agent "+stage.AgentID+" exceeded max execution time", err)
		}
	}
done:

	duration := time.Since(start)
	e.agents.RecordExecution(stage.AgentID, lastErr == nil)

	if lastErr != nil {
		b.recordFailure(time.Now())
		status := StageFailed
		if isTimeoutErr(lastErr) {
			status = StageTimeout
		}
		return StageResult{StageID: stage.StageID, AgentID: stage.AgentID, Status: status,
			Err: lastErr, Duration: duration, Attempts: attempts}
	}
	b.recordSuccess()
	return StageResult{StageID: stage.StageID, AgentID: stage.AgentID, Status: StageSuccess,
		Update: update, Duration: duration, Attempts: attempts}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, orcherr.ErrStageTimeout)
}

func backoffDuration(kind agentregistry.Backoff, attempt int) time.Duration {
	base := 100 * time.Millisecond
	switch kind {
	case agentregistry.BackoffExponential:
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	default: // linear
		return time.Duration(attempt) * base
	}
}

// applyGroup merges successful stage updates into st (flagging undeclared
// fields), applies safety validators, updates required-stage hard-stop
// semantics, and reports whether the run should stop.
func (e *Executor) applyGroup(ctx context.Context, plan *planner.Plan, byID map[string]planner.Stage, status map[string]StageStatus, st state.State, group []StageResult, result *Result) (stop bool, reason string) {
	for _, sr := range group {
		status[sr.StageID] = sr.Status
		stage := byID[sr.StageID]

		if sr.Status == StageSuccess {
			agent, _ := e.agents.Get(sr.AgentID)
			var allowed []string
			if agent != nil {
				allowed = agent.Produces.StateFields
			}
			if undeclared := st.Merge(sr.Update, allowed); len(undeclared) > 0 {
				e.logger.Warn(ctx, "agent wrote undeclared state fields", "agent_id", sr.AgentID, "fields", undeclared)
			}
			if agent != nil && agent.DeclaresLLM {
				result.Cost.LLMCalls++
			}
			result.Cost.APICalls += len(stage.ToolsNeeded)

			if e.safety != nil {
				failures := e.safety.ValidateAll(st, sr.AgentID)
				if len(failures) > 0 {
					_, hardStop, why := safety.GetSafeNextAgent(failures, sr.AgentID)
					if hardStop {
						return true, "safety validator hard failure: " + why
					}
				}
			}
			continue
		}

		if sr.Status == StageFailed || sr.Status == StageTimeout {
			recordStageError(st, sr)
			if stage.Required {
				result.Success = false
				if !e.continueOnError {
					return true, "required stage " + sr.StageID + " failed: " + errString(sr.Err)
				}
			}
		}
	}
	return false, ""
}

// recordStageError writes a failed/timed-out stage's error into the
// state's errors map, the way the Synthesis Engine's agent_error rule
// expects to find it (spec.md §7 "attached to errors[] in the execution
// result").
func recordStageError(st state.State, sr StageResult) {
	errs, ok := st["errors"].(map[string]any)
	if !ok {
		errs = make(map[string]any)
	}
	errs[sr.AgentID] = errString(sr.Err)
	st["errors"] = errs
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
