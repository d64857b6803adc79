// Package toolregistry implements the Tool Registry (spec.md §4.1): a
// process-wide, thread-safe catalog of external-capability handles with
// schemas, cost class, reliability, rate limits, and rolling metrics.
// Shaped on the teacher's agents/runtime/runtime.go ToolsetRegistration/
// ToolSpec plus registry/registry.go's capability indexing and health/rate
// limiting concerns.
package toolregistry

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type (
	// Cost classifies how expensive a tool invocation is, used by the Plan
	// Generator's cost estimates and the Plan Executor's cost accounting.
	Cost string

	// Category classifies the domain the tool operates in.
	Category string

	// ParamType is the primitive/object type of a tool parameter.
	ParamType string

	// Param describes one named input or output parameter.
	Param struct {
		Name     string
		Type     ParamType
		Required bool
	}

	// RateLimit caps invocation frequency for a tool.
	RateLimit struct {
		Calls  int
		Window time.Duration
	}

	// Metrics tracks rolling execution counters for a tool, updated only via
	// RecordExecution (atomic; the only mutable fields per spec.md §3).
	Metrics struct {
		total        int64
		success      int64
		fail         int64
		lastInvoked  int64 // unix nanos
	}

	// MetricsSnapshot is an immutable point-in-time read of Metrics.
	MetricsSnapshot struct {
		Total         int64
		Success       int64
		Fail          int64
		LastInvokedAt time.Time
	}

	// Invoke is the implementation handle for a tool: given a structured
	// input payload, it returns the tool's result envelope. The executor
	// never inspects Data; it hands it to the invoking agent (spec.md §6).
	Invoke func(ctx context.Context, input map[string]any) (Result, error)

	// Result is the tool contract's response envelope (spec.md §6).
	Result struct {
		Success bool
		Data    any
		Error   string
	}

	// Definition describes one registered tool (spec.md §3 "Tool
	// Definition").
	Definition struct {
		ID                 string
		Name               string
		Version            string
		DeprecatedBy       string // non-empty when deprecated, names the replacement id
		Category           Category
		DomainTags         []string
		Inputs             []Param
		Outputs            []Param
		CostClass          Cost
		AvgLatency         time.Duration
		MaxLatency         time.Duration
		Reliability        float64 // in [0,1]
		ExternalServices    []string
		ToolDependencies    []string
		PermittedAgentIDs  []string
		RequiresAuth       bool
		RateLimit          *RateLimit
		InputSchema        []byte // JSON schema, stored only; payloads are not validated against it
		OutputSchema       []byte
		Impl               Invoke

		metrics Metrics
	}
)

const (
	CostFree     Cost = "free"
	CostAPICall  Cost = "api_call"
	CostExpensive Cost = "expensive"
)

const (
	CategoryRouting     Category = "routing"
	CategoryWeather     Category = "weather"
	CategoryBunker      Category = "bunker"
	CategoryCompliance  Category = "compliance"
	CategoryVessel      Category = "vessel"
	CategoryCalculation Category = "calculation"
	CategoryValidation  Category = "validation"
)

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "bool"
	ParamObject ParamType = "object"
	ParamArray  ParamType = "array"
)

// recordExecution atomically updates rolling metrics for the tool. Called
// only by Registry.RecordExecution (spec.md §4.1 "mutated only by metrics
// recording").
func (d *Definition) recordExecution(success bool, _ time.Duration) {
	atomic.AddInt64(&d.metrics.total, 1)
	if success {
		atomic.AddInt64(&d.metrics.success, 1)
	} else {
		atomic.AddInt64(&d.metrics.fail, 1)
	}
	atomic.StoreInt64(&d.metrics.lastInvoked, time.Now().UnixNano())
}

// MetricsSnapshot returns an immutable read of the tool's rolling metrics.
func (d *Definition) MetricsSnapshot() MetricsSnapshot {
	last := atomic.LoadInt64(&d.metrics.lastInvoked)
	var lastAt time.Time
	if last != 0 {
		lastAt = time.Unix(0, last)
	}
	return MetricsSnapshot{
		Total:         atomic.LoadInt64(&d.metrics.total),
		Success:       atomic.LoadInt64(&d.metrics.success),
		Fail:          atomic.LoadInt64(&d.metrics.fail),
		LastInvokedAt: lastAt,
	}
}

// isDeprecated reports whether the tool declares a replacement.
func (d *Definition) isDeprecated() bool { return d.DeprecatedBy != "" }

// bucket wraps golang.org/x/time/rate.Limiter as the per-tool token bucket
// spec.md §5 "Rate limits" calls for: capacity == burst == Calls, refilling
// at Calls/Window tokens per second.
type bucket struct {
	limiter *rate.Limiter
}

func newBucket(limit RateLimit) *bucket {
	r := rate.Limit(float64(limit.Calls) / limit.Window.Seconds())
	return &bucket{limiter: rate.NewLimiter(r, limit.Calls)}
}

// take blocks (respecting ctx) until the bucket yields a token, or returns
// ctx.Err() if the context is done first (surfaced by the caller as
// orcherr.RateLimited).
func (b *bucket) take(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}
