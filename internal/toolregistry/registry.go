package toolregistry

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

// Criteria filters Find results (spec.md §4.1).
type Criteria struct {
	Category         Category
	DomainTag        string
	Capability       string
	MinReliability   float64
	MaxLatency       time.Duration
	Cost             Cost
	ExcludeDeprecated bool
}

// Registry is the process-wide Tool Registry. Populated at startup, then
// immutable except for metrics (spec.md §4.1).
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Definition
	buckets map[string]*bucket

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// New constructs an empty Tool Registry.
func New(logger telemetry.Logger, metrics telemetry.Metrics) *Registry {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Registry{
		tools:   make(map[string]*Definition),
		buckets: make(map[string]*bucket),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a tool definition. Fails with DuplicateID if the id exists
// and the definition is not structurally equal; fails with
// InvalidDefinition on schema violation (spec.md §4.1).
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return orcherr.New(orcherr.InvalidDefinition, "tool id is required")
	}
	if def.Name == "" {
		return orcherr.New(orcherr.InvalidDefinition, "tool name is required")
	}
	if def.Impl == nil {
		return orcherr.New(orcherr.InvalidDefinition, "tool implementation handle is required")
	}
	if def.Reliability < 0 || def.Reliability > 1 {
		return orcherr.New(orcherr.InvalidDefinition, "tool reliability must be in [0,1]")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[def.ID]; ok {
		if !structurallyEqual(existing, &def) {
			return orcherr.New(orcherr.DuplicateID, "tool "+def.ID+" already registered with a different definition")
		}
		return nil
	}
	d := def
	r.tools[def.ID] = &d
	if def.RateLimit != nil && def.RateLimit.Calls > 0 && def.RateLimit.Window > 0 {
		r.buckets[def.ID] = newBucket(*def.RateLimit)
	}
	r.metrics.IncCounter("tool_registry.registered", 1, "tool_id", def.ID)
	return nil
}

// structurallyEqual compares two definitions ignoring their mutable
// metrics, so re-registering the same tool is idempotent.
func structurallyEqual(a, b *Definition) bool {
	ac, bc := *a, *b
	ac.metrics = Metrics{}
	bc.metrics = Metrics{}
	ac.Impl, bc.Impl = nil, nil
	return reflect.DeepEqual(ac, bc)
}

// Get retrieves a tool definition by id.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[id]
	return d, ok
}

// Has reports whether a tool id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Find filters tools by Criteria. Results are stable-ordered by id
// (spec.md §4.1).
func (r *Registry) Find(c Criteria) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, d := range r.tools {
		if c.ExcludeDeprecated && d.isDeprecated() {
			continue
		}
		if c.Category != "" && d.Category != c.Category {
			continue
		}
		if c.DomainTag != "" && !containsString(d.DomainTags, c.DomainTag) {
			continue
		}
		if c.MinReliability > 0 && d.Reliability < c.MinReliability {
			continue
		}
		if c.MaxLatency > 0 && d.MaxLatency > c.MaxLatency {
			continue
		}
		if c.Cost != "" && d.CostClass != c.Cost {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// RecordExecution atomically updates a tool's rolling metrics (spec.md
// §4.1). Invoke calls it after every tool invocation.
func (r *Registry) RecordExecution(id string, success bool, duration time.Duration) {
	r.mu.RLock()
	d, ok := r.tools[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	d.recordExecution(success, duration)
	status := "success"
	if !success {
		status = "failure"
	}
	r.metrics.IncCounter("tool_registry.invocations", 1, "tool_id", id, "status", status)
	r.metrics.RecordTimer("tool_registry.duration", duration, "tool_id", id)
}

// Acquire blocks (respecting ctx) until the tool's rate-limit token bucket
// yields a slot, or returns RateLimited if ctx expires first. Tools with no
// configured RateLimit are never throttled.
func (r *Registry) Acquire(ctx context.Context, id string) error {
	r.mu.RLock()
	b, ok := r.buckets[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := b.take(ctx); err != nil {
		return orcherr.Wrap(orcherr.RateLimited, "tool "+id+" rate limit exceeded", err)
	}
	return nil
}

// Invoke acquires the rate-limit slot (if any), calls the tool's Impl, and
// records execution metrics. The executor never inspects Result.Data
// (spec.md §6).
func (r *Registry) Invoke(ctx context.Context, id string, input map[string]any) (Result, error) {
	def, ok := r.Get(id)
	if !ok {
		return Result{}, orcherr.New(orcherr.NotFound, "tool "+id+" not registered")
	}
	if err := r.Acquire(ctx, id); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := def.Impl(ctx, input)
	duration := time.Since(start)
	success := err == nil && res.Success
	r.RecordExecution(id, success, duration)
	if err != nil {
		return Result{}, orcherr.Wrap(orcherr.ToolFailed, "tool "+id+" invocation failed", err)
	}
	return res, nil
}
