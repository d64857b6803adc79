package agentregistry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/telemetry"
)

// Criteria filters Find results.
type Criteria struct {
	Intent     string
	Capability string
	DomainTag  string
	Type       Type
}

// Registry is the process-wide Agent Registry. Holds the capability/intent
// index plus the agent dependency graph, and rejects any registration that
// would introduce a cycle (spec.md §4.1, §8 invariant 1).
type Registry struct {
	mu    sync.RWMutex
	agents map[string]*Definition
	edges  map[string]map[string]struct{} // upstream -> set of downstream

	// StateFieldKnown reports whether a state field is declared by the
	// state schema. Wired by the orchestrator facade at startup so this
	// package stays free of a dependency on internal/state.
	StateFieldKnown func(field string) bool
	// ToolExists reports whether a tool id is registered in the Tool
	// Registry. Wired the same way.
	ToolExists func(id string) bool

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// New constructs an empty Agent Registry.
func New(logger telemetry.Logger, metrics telemetry.Metrics) *Registry {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Registry{
		agents:  make(map[string]*Definition),
		edges:   make(map[string]map[string]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds an agent definition. Validates declared-field/tool
// invariants, extends the dependency graph with declared and inferred
// edges, and rejects the registration (without mutating state) if doing
// so would introduce a cycle (spec.md §4.1, scenario S6).
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return orcherr.New(orcherr.InvalidDefinition, "agent id is required")
	}
	if def.Impl == nil {
		return orcherr.New(orcherr.InvalidDefinition, "agent implementation handle is required")
	}
	if r.StateFieldKnown != nil {
		for _, f := range def.Produces.StateFields {
			if !r.StateFieldKnown(f) {
				return orcherr.New(orcherr.InvalidDefinition, "agent "+def.ID+" produces undeclared state field "+f)
			}
		}
	}
	if r.ToolExists != nil {
		for _, t := range def.Tools.Required {
			if !r.ToolExists(t) {
				return orcherr.New(orcherr.InvalidDefinition, "agent "+def.ID+" requires unknown tool "+t)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.agents[def.ID]; ok {
		if !structurallyEqual(existing, &def) {
			return orcherr.New(orcherr.DuplicateID, "agent "+def.ID+" already registered with a different definition")
		}
		return nil
	}

	newEdges := r.candidateEdges(&def)
	trial := cloneEdges(r.edges)
	for from, tos := range newEdges {
		if trial[from] == nil {
			trial[from] = make(map[string]struct{})
		}
		for to := range tos {
			trial[from][to] = struct{}{}
		}
	}
	if cyc := detectCyclesIn(trial); len(cyc) > 0 {
		return orcherr.New(orcherr.InvalidDefinition, fmt.Sprintf("agent %s introduces a dependency cycle: %v", def.ID, cyc))
	}

	d := def
	r.agents[def.ID] = &d
	r.edges = trial
	r.metrics.IncCounter("agent_registry.registered", 1, "agent_id", def.ID)
	return nil
}

func structurallyEqual(a, b *Definition) bool {
	ac, bc := *a, *b
	ac.metrics, bc.metrics = Metrics{}, Metrics{}
	ac.Impl, bc.Impl = nil, nil
	return reflect.DeepEqual(ac, bc)
}

// candidateEdges computes the edges def introduces: declared hints plus
// inferred edges from consumes.required ∩ other agents' produces.state_fields
// (spec.md §4.1 "build_dependency_graph").
func (r *Registry) candidateEdges(def *Definition) map[string]map[string]struct{} {
	edges := make(map[string]map[string]struct{})
	addEdge := func(from, to string) {
		if edges[from] == nil {
			edges[from] = make(map[string]struct{})
		}
		edges[from][to] = struct{}{}
	}
	for _, up := range def.Dependency.Upstream {
		addEdge(up, def.ID)
	}
	for _, down := range def.Dependency.Downstream {
		addEdge(def.ID, down)
	}
	for _, other := range r.agents {
		if other.ID == def.ID {
			continue
		}
		if intersects(def.Consumes.Required, other.Produces.StateFields) {
			addEdge(other.ID, def.ID)
		}
		if intersects(other.Consumes.Required, def.Produces.StateFields) {
			addEdge(def.ID, other.ID)
		}
	}
	return edges
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func cloneEdges(edges map[string]map[string]struct{}) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(edges))
	for from, tos := range edges {
		cp := make(map[string]struct{}, len(tos))
		for to := range tos {
			cp[to] = struct{}{}
		}
		out[from] = cp
	}
	return out
}

// Get retrieves an agent definition by id.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[id]
	return d, ok
}

// Has reports whether an agent id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// FindByIntent returns the agents whose IntentTags contain intent, ordered
// by id. There is no intent-to-capability index: an agent is found only
// when it lists the intent itself. Unknown intents return an empty set.
func (r *Registry) FindByIntent(intent string) []*Definition {
	return r.Find(Criteria{Intent: intent})
}

// Find filters agents by Criteria. Results are stable-ordered by id.
func (r *Registry) Find(c Criteria) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, d := range r.agents {
		if c.Type != "" && d.Type != c.Type {
			continue
		}
		if c.DomainTag != "" && !containsString(d.DomainTags, c.DomainTag) {
			continue
		}
		if c.Capability != "" && !containsString(d.Capabilities, c.Capability) {
			continue
		}
		if c.Intent != "" && !containsString(d.IntentTags, c.Intent) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Capabilities returns the distinct capability tags declared across every
// registered agent, stable-ordered. Used by the Plan Generator to advise
// the classification LLM call of the known capability set (spec.md §4.7
// step 1).
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, d := range r.agents {
		for _, c := range d.Capabilities {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// RecordExecution atomically updates an agent's rolling metrics.
func (r *Registry) RecordExecution(id string, success bool) {
	r.mu.RLock()
	d, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	d.recordExecution(success)
	status := "success"
	if !success {
		status = "failure"
	}
	r.metrics.IncCounter("agent_registry.invocations", 1, "agent_id", id, "status", status)
}

// DependencyGraph returns a snapshot of the current agent dependency
// graph as adjacency lists keyed by upstream agent id.
func (r *Registry) DependencyGraph() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.edges))
	for from, tos := range r.edges {
		list := make([]string, 0, len(tos))
		for to := range tos {
			list = append(list, to)
		}
		sort.Strings(list)
		out[from] = list
	}
	return out
}

// DetectCycles reports any cycle present in the current dependency graph.
// Returns an empty slice when the graph is acyclic (spec.md §8 invariant
// 1).
func (r *Registry) DetectCycles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return detectCyclesIn(r.edges)
}

// detectCyclesIn runs a recursive DFS with a recursion-stack set, returning
// the first cycle found as an ordered list of agent ids, or nil if the
// graph is acyclic.
func detectCyclesIn(edges map[string]map[string]struct{}) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string
	var cycle []string

	nodes := make(map[string]struct{})
	for from, tos := range edges {
		nodes[from] = struct{}{}
		for to := range tos {
			nodes[to] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(nodes))
	for n := range nodes {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		path = append(path, n)
		neighbors := make([]string, 0, len(edges[n]))
		for to := range edges[n] {
			neighbors = append(neighbors, to)
		}
		sort.Strings(neighbors)
		for _, next := range neighbors {
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				idx := 0
				for i, p := range path {
					if p == next {
						idx = i
						break
					}
				}
				cycle = append(append([]string{}, path[idx:]...), next)
				return true
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return false
	}

	for _, n := range ordered {
		if color[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns agent ids in dependency order (upstream before
// downstream), breaking ties by id for determinism (spec.md §8 invariant
// 2). Returns an error if the graph contains a cycle.
func (r *Registry) TopologicalSort() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indegree := make(map[string]int)
	for id := range r.agents {
		indegree[id] = 0
	}
	for from, tos := range r.edges {
		if _, ok := indegree[from]; !ok {
			indegree[from] = 0
		}
		for to := range tos {
			indegree[to]++
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	remaining := indegree
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		downstream := make([]string, 0, len(r.edges[n]))
		for to := range r.edges[n] {
			downstream = append(downstream, to)
		}
		sort.Strings(downstream)
		for _, to := range downstream {
			remaining[to]--
			if remaining[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, orcherr.New(orcherr.InvalidDefinition, "agent dependency graph contains a cycle")
	}
	return order, nil
}
