// Package refstore implements the Reference Store (spec.md §4.4): a
// content-addressed object store for large sub-values, with TTL and
// dedup-by-hash. Grounded on the teacher's registry/store/replicated
// content-addressed sharing and features/stream/pulse/clients/pulse's
// Redis-backed, TTL'd value pattern.
package refstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

// referencePrefix marks a string as a reference rather than an inline
// value (spec.md §4.4 "create_reference(id) -> ref:<id>").
const referencePrefix = "ref:"

// Backend is the durable or in-memory key/value substrate a Store writes
// through to. Implementations: RedisBackend, InmemBackend.
type Backend interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Store is the process-wide Reference Store.
type Store struct {
	backend Backend
	ttl     time.Duration
	metrics telemetry.Metrics
}

// New constructs a Store over the given backend with a default TTL
// applied to every write.
func New(backend Backend, ttl time.Duration, metrics telemetry.Metrics) *Store {
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Store{backend: backend, ttl: ttl, metrics: metrics}
}

// Store serializes value and writes it under a content-addressed key
// derived from kind+hash(value). Storing an equal value twice reuses the
// existing reference id (spec.md §8 invariant 9 "reference dedup";
// ref_count is logical only — no physical refcounting is performed).
func (s *Store) Store(ctx context.Context, kind string, value any, _ map[string]string) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", orcherr.Wrap(orcherr.CompressionFailed, "serialize reference value", err)
	}
	id := hashKey(kind, raw)

	if _, found, err := s.backend.Get(ctx, id); err == nil && found {
		s.metrics.IncCounter("refstore.dedup_hit", 1, "kind", kind)
		return id, nil
	}

	if err := s.backend.Put(ctx, id, raw, s.ttl); err != nil {
		return "", orcherr.Wrap(orcherr.CompressionFailed, "write reference", err)
	}
	s.metrics.IncCounter("refstore.stored", 1, "kind", kind)
	return id, nil
}

// Retrieve resolves a reference id to its stored value. Returns
// found=false for an expired or absent reference; the caller must
// handle that case (spec.md §4.4).
func (s *Store) Retrieve(ctx context.Context, id string) (any, bool, error) {
	raw, found, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, false, orcherr.Wrap(orcherr.DecompressionFailed, "read reference "+id, err)
	}
	if !found {
		return nil, false, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, orcherr.Wrap(orcherr.DecompressionFailed, "decode reference "+id, err)
	}
	return value, true, nil
}

// CreateReference renders a reference id as the "ref:<id>" string that
// replaces a compressed field in-place.
func CreateReference(id string) string {
	return referencePrefix + id
}

// IsReference reports whether s is a reference string.
func IsReference(s string) bool {
	return strings.HasPrefix(s, referencePrefix)
}

// ExtractReferenceID returns the id embedded in a reference string.
func ExtractReferenceID(s string) (string, bool) {
	if !IsReference(s) {
		return "", false
	}
	return strings.TrimPrefix(s, referencePrefix), true
}

func hashKey(kind string, raw []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}
