// Package compress implements the State Compressor and Delta (spec.md
// §4.5): threshold-based replacement of large referenceable fields with
// Reference Store pointers, and minimal patches between two compressed
// states. No teacher package compresses workflow state this way (the
// teacher streams events instead); this is original Go over
// encoding/json for size measurement and a map-diff for the delta.
package compress

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/refstore"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

// Stats reports the effect of one Compress call (spec.md §4.5).
type Stats struct {
	OriginalSize      int
	CompressedSize    int
	SavedBytes        int
	ReferencesCreated int
	FieldsReferenced  []string
}

// Compressor replaces referenceable state fields above a size threshold
// with reference strings, backed by a refstore.Store.
type Compressor struct {
	store     *refstore.Store
	schema    *state.Schema
	threshold int
}

// New constructs a Compressor. threshold is the inline size cap in bytes:
// a referenceable field whose serialized size exceeds it is compressed.
func New(store *refstore.Store, schema *state.Schema, threshold int) *Compressor {
	return &Compressor{store: store, schema: schema, threshold: threshold}
}

// Compress walks st's top-level fields; for each tagged referenceable
// whose serialized size exceeds the inline threshold, it is written to
// the Reference Store and replaced in place by its reference string
// (spec.md §4.5).
func (c *Compressor) Compress(ctx context.Context, st state.State) (state.State, Stats, error) {
	out := st.Clone()
	stats := Stats{}

	originalRaw, err := json.Marshal(map[string]any(st))
	if err != nil {
		return nil, Stats{}, orcherr.Wrap(orcherr.CompressionFailed, "measure original state size", err)
	}
	stats.OriginalSize = len(originalRaw)

	var fieldNames []string
	for name := range st {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	for _, name := range fieldNames {
		spec, ok := c.fieldSpec(name)
		if !ok || !spec.HasTag(state.TagReferenceable) {
			continue
		}
		value := st[name]
		if value == nil {
			continue
		}
		if s, isString := value.(string); isString && refstore.IsReference(s) {
			continue // already compressed
		}
		raw, err := json.Marshal(value)
		if err != nil {
			continue
		}
		if len(raw) <= c.threshold {
			continue
		}
		id, err := c.store.Store(ctx, name, value, nil)
		if err != nil {
			// Local recovery: compression failures are logged by the
			// caller and the raw state is kept uncompressed (spec.md §7).
			continue
		}
		out[name] = refstore.CreateReference(id)
		stats.ReferencesCreated++
		stats.FieldsReferenced = append(stats.FieldsReferenced, name)
	}

	compressedRaw, err := json.Marshal(map[string]any(out))
	if err != nil {
		return nil, Stats{}, orcherr.Wrap(orcherr.CompressionFailed, "measure compressed state size", err)
	}
	stats.CompressedSize = len(compressedRaw)
	stats.SavedBytes = stats.OriginalSize - stats.CompressedSize

	return out, stats, nil
}

// Decompress walks st's fields and resolves any "ref:<id>" string back to
// its stored value. Missing references are reported in the returned
// slice but do not abort: the field is left as the reference string, and
// the caller decides policy (spec.md §4.5).
func (c *Compressor) Decompress(ctx context.Context, st state.State) (state.State, []string, error) {
	out := st.Clone()
	var missing []string

	for name, value := range st {
		s, ok := value.(string)
		if !ok || !refstore.IsReference(s) {
			continue
		}
		id, _ := refstore.ExtractReferenceID(s)
		resolved, found, err := c.store.Retrieve(ctx, id)
		if err != nil {
			return nil, nil, orcherr.Wrap(orcherr.DecompressionFailed, "resolve reference for field "+name, err)
		}
		if !found {
			missing = append(missing, name)
			continue
		}
		out[name] = resolved
	}
	sort.Strings(missing)
	return out, missing, nil
}

func (c *Compressor) fieldSpec(name string) (state.FieldSpec, bool) {
	if c.schema == nil {
		return state.FieldSpec{}, false
	}
	return c.schema.Field(name)
}
