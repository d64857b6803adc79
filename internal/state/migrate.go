package state

import (
	"fmt"
	"sort"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
)

// MigrateFunc transforms a state from one schema version to the next.
type MigrateFunc func(State) State

// step is one registered (from, to) migration.
type step struct {
	from, to string
	fn       MigrateFunc
}

// Migrator holds a registry of version-to-version migration functions and
// a detector for a state's current version when no explicit
// _schema_version field is present (spec.md §4.3).
type Migrator struct {
	current string
	steps   []step

	// DetectVersion inspects a state lacking _schema_version and returns
	// its best-guess version via sentinel-field presence (spec.md §4.3
	// "(ii) presence of sentinel fields"). Returns "" if undetectable.
	DetectVersion func(State) string
}

// NewMigrator constructs a Migrator whose current (latest) schema version
// is currentVersion.
func NewMigrator(currentVersion string) *Migrator {
	return &Migrator{current: currentVersion}
}

// Register adds a (from -> to) migration step.
func (m *Migrator) Register(from, to string, fn MigrateFunc) {
	m.steps = append(m.steps, step{from: from, to: to, fn: fn})
}

func (m *Migrator) stepFrom(version string) (step, bool) {
	for _, s := range m.steps {
		if s.from == version {
			return s, true
		}
	}
	return step{}, false
}

// MigrationResult is the output of AutoMigrate (spec.md §4.3).
type MigrationResult struct {
	MigratedState State
	FromVersion   string
	ToVersion     string
	Changes       []string
	Validation    *ValidationResult
}

// AutoMigrate detects the input state's version, applies registered
// migrations in sequence up to the current version, and returns the
// result. A state already at the current version is a no-op (spec.md
// §4.3, §8 invariant 10).
func (m *Migrator) AutoMigrate(st State, schema *Schema) (MigrationResult, error) {
	from := st.Version()
	if from == "" && m.DetectVersion != nil {
		from = m.DetectVersion(st)
	}
	if from == "" {
		return MigrationResult{}, orcherr.New(orcherr.MigrationFailed, "unable to detect state schema version")
	}

	result := MigrationResult{MigratedState: st.Clone(), FromVersion: from, ToVersion: from}
	if from == m.current {
		result.MigratedState[SchemaVersionKey] = m.current
		if schema != nil {
			v := schema.Validate(result.MigratedState)
			result.Validation = &v
		}
		return result, nil
	}

	cur := from
	migrated := st.Clone()
	seen := make(map[string]struct{})
	for cur != m.current {
		if _, looped := seen[cur]; looped {
			return MigrationResult{}, orcherr.New(orcherr.MigrationFailed, fmt.Sprintf("migration cycle detected at version %s", cur))
		}
		seen[cur] = struct{}{}

		s, ok := m.stepFrom(cur)
		if !ok {
			return MigrationResult{}, orcherr.New(orcherr.MigrationFailed, fmt.Sprintf("no migration registered from version %s", cur))
		}
		migrated = s.fn(migrated)
		migrated[SchemaVersionKey] = s.to
		result.Changes = append(result.Changes, fmt.Sprintf("%s -> %s", s.from, s.to))
		cur = s.to
	}

	migrated[SchemaVersionKey] = m.current
	result.MigratedState = migrated
	result.ToVersion = m.current
	if schema != nil {
		v := schema.Validate(migrated)
		result.Validation = &v
	}
	return result, nil
}

// Current returns the migrator's target schema version.
func (m *Migrator) Current() string { return m.current }

// KnownVersions returns the sorted set of versions the migrator can step
// from or to, useful for diagnostics and tests.
func (m *Migrator) KnownVersions() []string {
	set := map[string]struct{}{m.current: {}}
	for _, s := range m.steps {
		set[s.from] = struct{}{}
		set[s.to] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
