package compress

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/refstore"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

func newTestCompressor(threshold int) *Compressor {
	schema := &state.Schema{
		Version: "v1",
		Fields: []state.FieldSpec{
			{Name: "route_data", Type: state.TypeObject, Tags: []state.SemanticTag{state.TagReferenceable}},
		},
	}
	if err := schema.Compile(); err != nil {
		panic(err)
	}
	store := refstore.New(refstore.NewInmemBackend(), 0, telemetry.NoopMetrics{})
	return New(store, schema, threshold)
}

// TestCompressDecompressRoundTripsProperty verifies spec.md §8 invariant
// 8: decompress(compress(s).compressed) == s when no reference is
// evicted before Decompress runs (the in-memory backend here never
// expires entries).
func TestCompressDecompressRoundTripsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decompress undoes compress for a referenceable field", prop.ForAll(
		func(port string, distanceNM int) bool {
			c := newTestCompressor(8) // tiny threshold forces compression
			ctx := context.Background()

			st := state.State{
				"route_data": map[string]any{"port": port, "distance_nm": float64(distanceNM)},
			}

			compressed, _, err := c.Compress(ctx, st)
			if err != nil {
				return false
			}
			decompressed, missing, err := c.Decompress(ctx, compressed)
			if err != nil || len(missing) != 0 {
				return false
			}

			got, ok := decompressed["route_data"].(map[string]any)
			if !ok {
				return false
			}
			return got["port"] == port
		},
		gen.AlphaString(),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

// TestCompressLeavesSmallFieldsInlineProperty verifies fields under the
// inline threshold are never replaced by a reference string.
func TestCompressLeavesSmallFieldsInlineProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("small referenceable fields stay inline", prop.ForAll(
		func(port string) bool {
			c := newTestCompressor(1 << 20) // threshold far above any test payload
			ctx := context.Background()

			st := state.State{"route_data": map[string]any{"port": port}}
			compressed, stats, err := c.Compress(ctx, st)
			if err != nil {
				return false
			}
			if stats.ReferencesCreated != 0 {
				return false
			}
			_, isRef := compressed["route_data"].(string)
			return !isRef
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
