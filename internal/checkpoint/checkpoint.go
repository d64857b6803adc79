// Package checkpoint implements the Checkpointer (spec.md §4.6): thread-
// scoped save/load of state with retry, TTL, compression, and metrics,
// over a pluggable backend (in-memory or durable KV). Grounded on the
// teacher's features/run/mongo + features/memory/mongo thin Store
// wrapper pattern for the durable backend, and
// runtime/agent/engine/inmem/engine.go's in-memory map for the fallback.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/compress"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

// Checkpoint is the persisted unit the Checkpointer reads and writes
// (spec.md §3 "Checkpoint").
type Checkpoint struct {
	ThreadID      string         `json:"thread_id"`
	ChannelValues state.State    `json:"channel_values"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	SchemaVersion string         `json:"_schema_version"`
	IsDelta       bool           `json:"_is_delta,omitempty"`
	Delta         *compress.Delta `json:"_delta,omitempty"`
	SizeBytes     int            `json:"size_bytes"`
	SavedAt       time.Time      `json:"saved_at"`
}

// Backend is the durable or in-memory substrate a Checkpointer writes
// through to, keyed by thread id (spec.md §6 "Keys are namespaced by
// thread id").
type Backend interface {
	Put(ctx context.Context, threadID string, doc []byte, ttl time.Duration) error
	Get(ctx context.Context, threadID string) ([]byte, bool, error)
	Ping(ctx context.Context) error
	Kind() string
}

// HealthReport is returned by Checkpointer.Health (spec.md §6 "A health
// endpoint exposes...").
type HealthReport struct {
	BackendKind      string
	PingLatency      time.Duration
	LastCheckpointAt time.Time
	ReadTestOK       bool
	FailureCount     int64
	RetryAfter       time.Duration // non-zero when degraded
}

func encodeCheckpoint(c Checkpoint) ([]byte, error) {
	return json.Marshal(c)
}

func decodeCheckpoint(raw []byte) (Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(raw, &c); err != nil {
		return Checkpoint{}, err
	}
	return c, nil
}
