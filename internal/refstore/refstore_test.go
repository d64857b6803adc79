package refstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	s := New(NewInmemBackend(), time.Hour, nil)
	id, err := s.Store(context.Background(), "route_data", map[string]any{"distance_nm": 4200.5}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, found, err := s.Retrieve(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4200.5, m["distance_nm"])
}

func TestStoreDedupesEqualValues(t *testing.T) {
	s := New(NewInmemBackend(), time.Hour, nil)
	first, err := s.Store(context.Background(), "weather", []string{"a", "b"}, nil)
	require.NoError(t, err)
	second, err := s.Store(context.Background(), "weather", []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStoreDifferentKindsYieldDifferentIDs(t *testing.T) {
	s := New(NewInmemBackend(), time.Hour, nil)
	a, err := s.Store(context.Background(), "kind_a", "same", nil)
	require.NoError(t, err)
	b, err := s.Store(context.Background(), "kind_b", "same", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRetrieveMissingReturnsNotFound(t *testing.T) {
	s := New(NewInmemBackend(), time.Hour, nil)
	_, found, err := s.Retrieve(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRetrieveExpiredReturnsNotFound(t *testing.T) {
	s := New(NewInmemBackend(), 10*time.Millisecond, nil)
	id, err := s.Store(context.Background(), "weather", "ephemeral", nil)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	_, found, err := s.Retrieve(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateReferenceAndIsReference(t *testing.T) {
	ref := CreateReference("abc123")
	assert.Equal(t, "ref:abc123", ref)
	assert.True(t, IsReference(ref))
	assert.False(t, IsReference("abc123"))

	id, ok := ExtractReferenceID(ref)
	require.True(t, ok)
	assert.Equal(t, "abc123", id)

	_, ok = ExtractReferenceID("not-a-reference")
	assert.False(t, ok)
}
