package checkpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/compress"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

// Options configures a Checkpointer.
type Options struct {
	Backend               Backend
	Schema                *state.Schema
	Migrator              *state.Migrator
	Compressor            *compress.Compressor
	TTL                   time.Duration // default 60 minutes per spec.md §3
	MaxRetries            int
	RetryBase             time.Duration // linear backoff unit
	RefreshTTLOnRead      bool
	DeltaSavingsThreshold float64 // percent; 0 disables delta checkpoints

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Checkpointer is the single wrapper contract combining validation,
// compression, delta, retry, TTL, and metrics (spec.md §4.6; Open
// Question (c) — compression is part of the one wrapper's contract, not
// a second co-existing variant).
type Checkpointer struct {
	backend        Backend
	schema         *state.Schema
	migrator       *state.Migrator
	compressor     *compress.Compressor
	ttl            time.Duration
	maxRetries     int
	retryBase      time.Duration
	refreshTTL     bool
	deltaThreshold float64

	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu             sync.Mutex
	lastFull       map[string]state.State // thread_id -> last non-delta compressed state (delta base)
	lastCheckpoint map[string]time.Time

	failureCount int64

	statsMu            sync.Mutex
	originalBytes      int64
	compressedBytes    int64
	referencesCreated  int64
	checkpointsWritten int64
}

// New constructs a Checkpointer. TTL defaults to 60 minutes and
// MaxRetries to 3 when unset, matching spec.md §3/§7 defaults.
func New(opts Options) *Checkpointer {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Checkpointer{
		backend:        opts.Backend,
		schema:         opts.Schema,
		migrator:       opts.Migrator,
		compressor:     opts.Compressor,
		ttl:            ttl,
		maxRetries:     maxRetries,
		retryBase:      retryBase,
		refreshTTL:     opts.RefreshTTLOnRead,
		deltaThreshold: opts.DeltaSavingsThreshold,
		logger:         logger,
		metrics:        metrics,
		lastFull:       make(map[string]state.State),
		lastCheckpoint: make(map[string]time.Time),
	}
}

// Put validates, compresses, optionally deltas, stamps the schema
// version, serializes, and writes st for threadID — retrying up to
// MaxRetries with linear backoff on failure (spec.md §4.6 "Prepare").
func (c *Checkpointer) Put(ctx context.Context, threadID string, st state.State) error {
	prepared := st.Clone()
	if c.schema != nil {
		result := c.schema.Validate(prepared)
		if !result.Valid {
			c.logger.Warn(ctx, "checkpoint state failed schema validation, storing anyway", "thread_id", threadID, "errors", result.Errors)
		}
	}
	prepared[state.SchemaVersionKey] = c.currentVersion()

	compressed := prepared
	if c.compressor != nil {
		out, stats, err := c.compressor.Compress(ctx, prepared)
		if err != nil {
			// Local recovery: compression failures are logged and the raw
			// state is stored uncompressed (spec.md §7).
			c.logger.Warn(ctx, "compression failed, storing uncompressed state", "thread_id", threadID, "error", err)
		} else {
			compressed = out
			c.statsMu.Lock()
			c.originalBytes += int64(stats.OriginalSize)
			c.compressedBytes += int64(stats.CompressedSize)
			c.referencesCreated += int64(stats.ReferencesCreated)
			c.statsMu.Unlock()
		}
	}

	cp := Checkpoint{
		ThreadID:      threadID,
		ChannelValues: compressed,
		SchemaVersion: c.currentVersion(),
		SavedAt:       time.Now().UTC(),
	}

	c.mu.Lock()
	base, hasBase := c.lastFull[threadID]
	c.mu.Unlock()

	if hasBase && c.deltaThreshold > 0 {
		delta := compress.ComputeDelta(base, compressed)
		if delta.SavingsPercent >= c.deltaThreshold {
			cp.IsDelta = true
			cp.Delta = &delta
			cp.ChannelValues = nil
		}
	}

	raw, err := encodeCheckpoint(cp)
	if err != nil {
		return orcherr.Wrap(orcherr.CheckpointPutFailed, "serialize checkpoint for thread "+threadID, err)
	}
	cp.SizeBytes = len(raw)

	if err := c.putWithRetry(ctx, threadID, raw); err != nil {
		atomic.AddInt64(&c.failureCount, 1)
		c.metrics.IncCounter("checkpoint.put_failed", 1, "thread_id", threadID)
		return orcherr.Wrap(orcherr.CheckpointPutFailed, "write checkpoint for thread "+threadID, err)
	}

	if !cp.IsDelta {
		c.mu.Lock()
		c.lastFull[threadID] = compressed
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.lastCheckpoint[threadID] = cp.SavedAt
	c.mu.Unlock()

	c.statsMu.Lock()
	c.checkpointsWritten++
	c.statsMu.Unlock()

	c.metrics.IncCounter("checkpoint.put_ok", 1, "thread_id", threadID)
	c.metrics.RecordGauge("checkpoint.size_bytes", float64(cp.SizeBytes), "thread_id", threadID)
	return nil
}

// CompressionSnapshot aggregates compression effectiveness across every
// checkpoint this Checkpointer has written (SPEC_FULL.md §5 "metrics
// snapshot/compression-effectiveness report"). Reference dedup hits are
// tracked inside the Reference Store's own metrics rather than surfaced
// back through Compress, so ReferencesDeduped is always zero here.
func (c *Checkpointer) CompressionSnapshot() telemetry.CompressionReport {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	saved := c.originalBytes - c.compressedBytes
	var savedPercent float64
	if c.originalBytes > 0 {
		savedPercent = float64(saved) / float64(c.originalBytes) * 100
	}
	return telemetry.CompressionReport{
		OriginalBytes:      c.originalBytes,
		CompressedBytes:    c.compressedBytes,
		SavedBytes:         saved,
		SavedPercent:       savedPercent,
		ReferencesCreated:  c.referencesCreated,
		CheckpointsWritten: c.checkpointsWritten,
	}
}

func (c *Checkpointer) putWithRetry(ctx context.Context, threadID string, raw []byte) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.retryBase // linear backoff
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := c.backend.Put(ctx, threadID, raw, c.ttl); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Get reads, decompresses (resolving any delta against the most recent
// base), migrates, and validates the checkpoint for threadID (spec.md
// §4.6 "Decompress", §7 "Decompression failures during get return the
// state with reference strings intact").
func (c *Checkpointer) Get(ctx context.Context, threadID string) (state.State, bool, error) {
	raw, found, err := c.backend.Get(ctx, threadID)
	if err != nil {
		return nil, false, orcherr.Wrap(orcherr.CheckpointReadFailed, "read checkpoint for thread "+threadID, err)
	}
	if !found {
		return nil, false, nil
	}
	cp, err := decodeCheckpoint(raw)
	if err != nil {
		return nil, false, orcherr.Wrap(orcherr.CheckpointReadFailed, "decode checkpoint for thread "+threadID, err)
	}

	compressed := cp.ChannelValues
	if cp.IsDelta {
		c.mu.Lock()
		base, hasBase := c.lastFull[threadID]
		c.mu.Unlock()
		if !hasBase {
			return nil, false, orcherr.New(orcherr.CheckpointReadFailed, "delta checkpoint for thread "+threadID+" has no base checkpoint")
		}
		if cp.Delta != nil {
			compressed = compress.ApplyDelta(base, *cp.Delta)
		}
	}

	st := compressed
	if c.compressor != nil {
		out, missing, derr := c.compressor.Decompress(ctx, compressed)
		if derr != nil {
			c.logger.Warn(ctx, "decompression failed, returning state with reference strings intact", "thread_id", threadID, "error", derr)
		} else {
			st = out
			if len(missing) > 0 {
				c.logger.Warn(ctx, "checkpoint references could not be resolved", "thread_id", threadID, "fields", missing)
			}
		}
	}

	if c.migrator != nil {
		result, merr := c.migrator.AutoMigrate(st, c.schema)
		if merr != nil {
			c.logger.Warn(ctx, "checkpoint migration failed", "thread_id", threadID, "error", merr)
		} else {
			st = result.MigratedState
		}
	}

	if c.refreshTTL {
		if raw2, rerr := encodeCheckpoint(cp); rerr == nil {
			_ = c.backend.Put(ctx, threadID, raw2, c.ttl)
		}
	}

	return st, true, nil
}

func (c *Checkpointer) currentVersion() string {
	if c.migrator == nil {
		return ""
	}
	return c.migrator.Current()
}

// Health reports backend status for operational checks (spec.md §6 "A
// health endpoint exposes: backend kind, ping latency, last checkpoint
// timestamp, a small read test, aggregated metrics, and a retry-after
// hint when degraded").
func (c *Checkpointer) Health(ctx context.Context, probeThreadID string) HealthReport {
	report := HealthReport{BackendKind: c.backend.Kind()}

	start := time.Now()
	pingErr := c.backend.Ping(ctx)
	report.PingLatency = time.Since(start)

	c.mu.Lock()
	report.LastCheckpointAt = c.lastCheckpoint[probeThreadID]
	c.mu.Unlock()

	_, found, readErr := c.backend.Get(ctx, probeThreadID)
	report.ReadTestOK = readErr == nil && (found || probeThreadID == "")
	report.FailureCount = atomic.LoadInt64(&c.failureCount)

	if pingErr != nil || readErr != nil || report.FailureCount > 0 {
		report.RetryAfter = c.retryBase * time.Duration(c.maxRetries)
	}
	return report
}
