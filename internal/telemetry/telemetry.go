// Package telemetry defines the logging, metrics, and tracing contracts used
// throughout the orchestration engine. Every component accepts these
// interfaces rather than reaching for a global logger, so callers can swap
// in no-op implementations for tests or Clue/OTEL-backed implementations in
// production.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the engine.
// Implementations typically delegate to Clue but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter/timer/gauge helpers for engine instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so engine code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// ToolTelemetry captures observability metadata collected during a single
// tool invocation (cost class, latency, LLM token usage when applicable).
type ToolTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// TokensUsed tracks total tokens consumed, when the tool is LLM-backed.
	TokensUsed int
	// Model identifies the model used, when the tool is LLM-backed.
	Model string
	// Extra holds tool-specific metadata not captured by the common fields.
	Extra map[string]any
}

// CompressionReport aggregates compression effectiveness across all
// checkpoints written for a thread. Fields mirror spec.md's Metrics row
// ("compression-effectiveness report").
type CompressionReport struct {
	OriginalBytes      int64
	CompressedBytes    int64
	SavedBytes         int64
	SavedPercent       float64
	ReferencesCreated  int64
	ReferencesDeduped  int64
	CheckpointsWritten int64
}
