// Package workflowreg implements the Workflow Registry (spec.md §4.2): a
// catalog of named, declarative workflow templates binding query types to
// ordered stage shapes. Grounded on the teacher's declarative
// AgentRegistration workflow shape, loaded from YAML like the teacher's
// own yaml.v3-based config.
package workflowreg

import (
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
)

// StageTemplate is one node of a workflow, prior to Plan Generator
// instantiation against live state (spec.md §3 "Workflow").
type StageTemplate struct {
	StageID       string `yaml:"stage_id"`
	AgentID       string `yaml:"agent_id"`
	Required      bool   `yaml:"required"`
	ParallelGroup string `yaml:"parallel_group,omitempty"`
	SkipWhen      string `yaml:"skip_when,omitempty"`
	ContinueWhen  string `yaml:"continue_when,omitempty"`
}

// Workflow is a named, ordered sequence of stage templates indexed by
// query type (spec.md §3, §4.2).
type Workflow struct {
	ID        string          `yaml:"id"`
	QueryType string          `yaml:"query_type"`
	Version   string          `yaml:"version"`
	Stages    []StageTemplate `yaml:"stages"`
}

// file is the root shape of a workflow YAML document: a list of named
// workflows, mirroring the teacher's top-level declarative config files.
type file struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Registry is the process-wide Workflow Registry.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	byQuery   map[string][]*Workflow
}

// New constructs an empty Workflow Registry.
func New() *Registry {
	return &Registry{
		workflows: make(map[string]*Workflow),
		byQuery:   make(map[string][]*Workflow),
	}
}

// Register adds a workflow definition, indexed by its declared query
// type.
func (r *Registry) Register(wf Workflow) error {
	if wf.ID == "" {
		return orcherr.New(orcherr.InvalidDefinition, "workflow id is required")
	}
	if wf.QueryType == "" {
		return orcherr.New(orcherr.InvalidDefinition, "workflow query_type is required")
	}
	if len(wf.Stages) == 0 {
		return orcherr.New(orcherr.InvalidDefinition, "workflow "+wf.ID+" declares no stages")
	}
	seen := make(map[string]struct{}, len(wf.Stages))
	for _, s := range wf.Stages {
		if s.StageID == "" || s.AgentID == "" {
			return orcherr.New(orcherr.InvalidDefinition, "workflow "+wf.ID+" has a stage missing stage_id/agent_id")
		}
		if _, dup := seen[s.StageID]; dup {
			return orcherr.New(orcherr.InvalidDefinition, "workflow "+wf.ID+" has duplicate stage_id "+s.StageID)
		}
		seen[s.StageID] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[wf.ID]; ok {
		return orcherr.New(orcherr.DuplicateID, "workflow "+wf.ID+" already registered")
	}
	w := wf
	r.workflows[wf.ID] = &w
	r.byQuery[wf.QueryType] = append(r.byQuery[wf.QueryType], &w)
	return nil
}

// LoadYAML registers every workflow declared in a YAML document shaped as
// `{workflows: [...]}` (spec.md §4.2 "workflows are declarative").
func (r *Registry) LoadYAML(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return orcherr.Wrap(orcherr.InvalidDefinition, "failed to parse workflow YAML", err)
	}
	for _, wf := range f.Workflows {
		if err := r.Register(wf); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a workflow by id.
func (r *Registry) Get(id string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	return w, ok
}

// ByQueryType selects the workflow whose declared query type matches
// (spec.md §4.6 "Select workflow"). When multiple workflows share a query
// type, the lowest id wins deterministically; callers needing all
// candidates should use FindAllByQueryType.
func (r *Registry) ByQueryType(queryType string) (*Workflow, bool) {
	all := r.FindAllByQueryType(queryType)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// FindAllByQueryType returns every workflow matching a query type,
// stable-ordered by id.
func (r *Registry) FindAllByQueryType(queryType string) []*Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := append([]*Workflow(nil), r.byQuery[queryType]...)
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// ListAll returns every registered workflow, stable-ordered by id. Used by
// the Plan Generator to advise the classification LLM call of the full
// workflow catalog (spec.md §4.7 step 1: "the list of known workflows with
// their declared inputs/outputs").
func (r *Registry) ListAll() []*Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// QueryTypes returns the distinct query types covered by registered
// workflows, stable-ordered.
func (r *Registry) QueryTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byQuery))
	for qt := range r.byQuery {
		out = append(out, qt)
	}
	sort.Strings(out)
	return out
}
