package state

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func newTwoStepMigrator(t *testing.T) *Migrator {
	t.Helper()
	m := NewMigrator("v2")
	m.Register("v1", "v2", func(s State) State {
		out := s.Clone()
		if legacy, ok := out["legacy_distance"]; ok {
			out["route_data"] = map[string]any{"distance_nm": legacy}
			delete(out, "legacy_distance")
		}
		return out
	})
	return m
}

// TestAutoMigrateIsIdempotentProperty verifies spec.md §8 invariant 10:
// migrating an already-current state is a no-op, and re-running
// AutoMigrate on an already-migrated state reproduces the same result.
func TestAutoMigrateIsIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("auto_migrate twice equals auto_migrate once", prop.ForAll(
		func(distance int) bool {
			m := newTwoStepMigrator(t)
			st := State{"legacy_distance": float64(distance), SchemaVersionKey: "v1"}

			once, err := m.AutoMigrate(st, nil)
			if err != nil {
				return false
			}
			twice, err := m.AutoMigrate(once.MigratedState, nil)
			if err != nil {
				return false
			}

			return twice.FromVersion == twice.ToVersion &&
				twice.ToVersion == "v2" &&
				once.MigratedState.Version() == twice.MigratedState.Version()
		},
		gen.IntRange(0, 100000),
	))

	properties.Property("auto_migrate on a current-version state changes nothing but the stamp", prop.ForAll(
		func(distance int) bool {
			m := newTwoStepMigrator(t)
			st := State{"route_data": map[string]any{"distance_nm": float64(distance)}, SchemaVersionKey: "v2"}

			result, err := m.AutoMigrate(st, nil)
			if err != nil {
				return false
			}
			return result.FromVersion == "v2" && result.ToVersion == "v2" && len(result.Changes) == 0
		},
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

func TestNewTwoStepMigratorAppliesRegisteredStep(t *testing.T) {
	m := newTwoStepMigrator(t)
	st := State{"legacy_distance": 42.0, SchemaVersionKey: "v1"}
	result, err := m.AutoMigrate(st, nil)
	require.NoError(t, err)
	require.Equal(t, "v2", result.ToVersion)
	require.Len(t, result.Changes, 1)
}
