package toolregistry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
)

func fixedTool(id string) Definition {
	return Definition{
		ID:          id,
		Name:        id,
		Category:    CategoryWeather,
		CostClass:   CostAPICall,
		Reliability: 0.9,
		MaxLatency:  time.Second,
		Impl: func(ctx context.Context, input map[string]any) (Result, error) {
			return Result{Success: true, Data: input}, nil
		},
	}
}

func TestRegisterGetHas(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(fixedTool("weather.fetch")))

	assert.True(t, r.Has("weather.fetch"))
	d, ok := r.Get("weather.fetch")
	require.True(t, ok)
	assert.Equal(t, "weather.fetch", d.ID)
}

func TestRegisterDuplicateSameDefinitionIsIdempotent(t *testing.T) {
	r := New(nil, nil)
	def := fixedTool("weather.fetch")
	require.NoError(t, r.Register(def))
	require.NoError(t, r.Register(def))
}

func TestRegisterDuplicateDifferentDefinitionFails(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(fixedTool("weather.fetch")))

	other := fixedTool("weather.fetch")
	other.Reliability = 0.5
	err := r.Register(other)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcherr.ErrDuplicateID)
}

func TestRegisterMissingIDFails(t *testing.T) {
	r := New(nil, nil)
	def := fixedTool("")
	err := r.Register(def)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcherr.ErrInvalidDefinition)
}

func TestFindFiltersByCategoryAndOrdersByID(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(fixedTool("weather.b")))
	require.NoError(t, r.Register(fixedTool("weather.a")))
	bunker := fixedTool("bunker.price")
	bunker.Category = CategoryBunker
	require.NoError(t, r.Register(bunker))

	got := r.Find(Criteria{Category: CategoryWeather})
	require.Len(t, got, 2)
	assert.Equal(t, "weather.a", got[0].ID)
	assert.Equal(t, "weather.b", got[1].ID)
}

func TestFindExcludesDeprecated(t *testing.T) {
	r := New(nil, nil)
	dep := fixedTool("weather.old")
	dep.DeprecatedBy = "weather.new"
	require.NoError(t, r.Register(dep))
	require.NoError(t, r.Register(fixedTool("weather.new")))

	got := r.Find(Criteria{Category: CategoryWeather, ExcludeDeprecated: true})
	require.Len(t, got, 1)
	assert.Equal(t, "weather.new", got[0].ID)
}

func TestInvokeRecordsMetrics(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Register(fixedTool("weather.fetch")))

	res, err := r.Invoke(context.Background(), "weather.fetch", map[string]any{"port": "rotterdam"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	def, _ := r.Get("weather.fetch")
	snap := def.MetricsSnapshot()
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Success)
	assert.False(t, snap.LastInvokedAt.IsZero())
}

func TestInvokeUnknownToolReturnsNotFound(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcherr.ErrNotFound)
}

func TestRateLimitQueuesThenFailsOnContextDeadline(t *testing.T) {
	r := New(nil, nil)
	def := fixedTool("weather.limited")
	def.RateLimit = &RateLimit{Calls: 1, Window: time.Hour}
	require.NoError(t, r.Register(def))

	ctx := context.Background()
	_, err := r.Invoke(ctx, "weather.limited", nil)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = r.Invoke(shortCtx, "weather.limited", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcherr.ErrRateLimited)
}
