package orchestrator

import (
	"os"
	"strconv"
	"time"
)

// Config covers every row of the engine's external configuration table
// (spec.md §6): checkpoint backend selection, TTL, refresh-on-read, retry
// budget, plan timeout, continue_on_error, and the compression
// thresholds. Mirrors the teacher's Options-struct-per-component
// convention (runtime.Options, anthropic.Options, registry.Config) by
// collapsing them into the one struct the facade accepts.
type Config struct {
	// CheckpointBackendURL, CheckpointDatabase and CheckpointCollection
	// are filled by ConfigFromEnv, but New does not read them: the
	// checkpoint backend is Deps.CheckpointBackend, and the in-memory
	// backend when that is nil.
	CheckpointBackendURL string
	CheckpointDatabase   string
	CheckpointCollection string

	// CheckpointTTL defaults to 60 minutes.
	CheckpointTTL time.Duration
	// RefreshCheckpointOnRead defaults to true.
	RefreshCheckpointOnRead bool
	// MaxCheckpointAttempts defaults to 3.
	MaxCheckpointAttempts int
	// RetryBackoff defaults to 100ms, applied linearly.
	RetryBackoff time.Duration

	// PlanTimeout is the per-plan default; GeneratePlan sets it on plans
	// whose Context.Timeout is unset. planner.GenerationOptions.
	// ContextOverrides is not read, so there is no per-call override.
	PlanTimeout time.Duration

	// ContinueOnError controls whether a required-stage failure aborts
	// the plan or is recorded and the plan continues (spec.md §6).
	ContinueOnError bool

	// InlineSizeThresholdBytes is the referenceable-field compression
	// threshold; fields serializing larger than this are pushed to the
	// Reference Store.
	InlineSizeThresholdBytes int
	// DeltaSavingsThresholdPercent is the minimum savings percentage
	// required to prefer a delta checkpoint over a full one.
	DeltaSavingsThresholdPercent float64

	// ReferenceTTL bounds how long the Reference Store retains a value.
	ReferenceTTL time.Duration

	// CircuitBreakerWindow/Threshold configure the executor's
	// per-agent circuit breaker.
	CircuitBreakerWindow    time.Duration
	CircuitBreakerThreshold int

	SchemaVersion string
}

// DefaultConfig returns a Config with every documented default applied
// (spec.md §6 configuration table).
func DefaultConfig() Config {
	return Config{
		CheckpointTTL:                60 * time.Minute,
		RefreshCheckpointOnRead:      true,
		MaxCheckpointAttempts:        3,
		RetryBackoff:                 100 * time.Millisecond,
		PlanTimeout:                  5 * time.Minute,
		ContinueOnError:              false,
		InlineSizeThresholdBytes:     4096,
		DeltaSavingsThresholdPercent: 30,
		ReferenceTTL:                 24 * time.Hour,
		CircuitBreakerWindow:         time.Minute,
		CircuitBreakerThreshold:      3,
		SchemaVersion:                "v1",
	}
}

// ConfigFromEnv overlays environment variables onto DefaultConfig, the
// way the teacher's registry.Config documents env-driven defaults per
// field.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("ORCH_CHECKPOINT_BACKEND_URL"); v != "" {
		cfg.CheckpointBackendURL = v
	}
	if v := os.Getenv("ORCH_CHECKPOINT_DATABASE"); v != "" {
		cfg.CheckpointDatabase = v
	}
	if v := os.Getenv("ORCH_CHECKPOINT_COLLECTION"); v != "" {
		cfg.CheckpointCollection = v
	}
	if v, ok := envDuration("ORCH_CHECKPOINT_TTL_MINUTES", time.Minute); ok {
		cfg.CheckpointTTL = v
	}
	if v, ok := envBool("ORCH_CHECKPOINT_REFRESH_ON_READ"); ok {
		cfg.RefreshCheckpointOnRead = v
	}
	if v, ok := envInt("ORCH_MAX_CHECKPOINT_ATTEMPTS"); ok {
		cfg.MaxCheckpointAttempts = v
	}
	if v, ok := envDuration("ORCH_RETRY_BACKOFF_MS", time.Millisecond); ok {
		cfg.RetryBackoff = v
	}
	if v, ok := envDuration("ORCH_PLAN_TIMEOUT_MS", time.Millisecond); ok {
		cfg.PlanTimeout = v
	}
	if v, ok := envBool("ORCH_CONTINUE_ON_ERROR"); ok {
		cfg.ContinueOnError = v
	}
	if v, ok := envInt("ORCH_INLINE_SIZE_THRESHOLD_BYTES"); ok {
		cfg.InlineSizeThresholdBytes = v
	}
	if v, ok := envFloat("ORCH_DELTA_SAVINGS_THRESHOLD_PERCENT"); ok {
		cfg.DeltaSavingsThresholdPercent = v
	}
	return cfg
}

func envDuration(key string, unit time.Duration) (time.Duration, bool) {
	v, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * unit, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}
