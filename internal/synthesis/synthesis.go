// Package synthesis implements the Synthesis Engine (spec.md §4.11):
// projects the final execution state into insights, recommendations,
// warnings, alerts, metrics, next steps, and an optional LLM-authored
// reasoning paragraph with a deterministic template fallback. Grounded
// on the teacher's agents/runtime/hooks/events.go typed event taxonomy
// (insights/warnings map onto that package's AssistantMessageEvent/
// PlannerNoteEvent shapes) and on the optional-LLM-with-template-
// fallback split the teacher's planner/model packages already use.
package synthesis

import (
	"context"
	"fmt"
	"sort"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/model"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

// Severity classifies a Warning or Alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight is a typed finding derived from a numeric threshold or state
// shape check (spec.md §4.11 "insights": `{type, priority, category,
// title, description, impact{...}, confidence}`).
type Insight struct {
	Type        string
	Priority    Severity
	Category    string
	Field       string
	Title       string
	Description string
	Value       any
	Impact      map[string]any
	Confidence  float64
}

// Recommendation is an actionable suggestion surfaced from the final
// state (spec.md §4.11 "recommendations": `{id, priority, action,
// details, rationale, impact, confidence, urgency, owner}`).
type Recommendation struct {
	ID         string
	Priority   Severity
	Action     string
	Details    string
	Rationale  string
	Impact     map[string]any
	Confidence float64
	Urgency    string
	Owner      string
}

// Alert is a Warning promoted to operator-visible severity.
type Alert struct {
	Severity Severity
	Message  string
}

// Report is the Synthesis Engine's full output (spec.md §3 "Synthesis
// Report").
type Report struct {
	Core            map[string]any
	Insights        []Insight
	Recommendations []Recommendation
	Warnings        []Alert
	Alerts          []Alert
	Metrics         map[string]float64
	Reasoning       string
	NextSteps       []string
}

// Rule is one declarative insight/recommendation extractor run over the
// final state.
type Rule struct {
	Name  string
	Apply func(st state.State) (insights []Insight, recs []Recommendation, warnings []Alert)
}

// Engine runs the configured rule set, then either calls an LLM for a
// free-form reasoning paragraph or falls back to a deterministic
// template built from the same insights (spec.md §7 recovery: "the
// Synthesis Engine's optional reasoning paragraph, on LLM failure, falls
// back to a deterministic template built from the same insights rather
// than omitting the section").
type Engine struct {
	Rules      []Rule
	Client     model.Client
	Model      string
	CoreFields []string // state fields projected verbatim into Report.Core
}

// Synthesize builds a Report from the final execution state.
func (e *Engine) Synthesize(ctx context.Context, st state.State) Report {
	report := Report{
		Core:    projectCore(st, e.CoreFields),
		Metrics: map[string]float64{},
	}

	for _, r := range e.Rules {
		if r.Apply == nil {
			continue
		}
		ins, recs, warns := r.Apply(st)
		report.Insights = append(report.Insights, ins...)
		report.Recommendations = append(report.Recommendations, recs...)
		report.Warnings = append(report.Warnings, warns...)
	}
	for _, w := range report.Warnings {
		if w.Severity == SeverityCritical {
			report.Alerts = append(report.Alerts, w)
		}
	}

	report.Metrics["insight_count"] = float64(len(report.Insights))
	report.Metrics["recommendation_count"] = float64(len(report.Recommendations))
	report.Metrics["warning_count"] = float64(len(report.Warnings))

	report.Reasoning = e.reasoning(ctx, report)
	report.NextSteps = nextSteps(report)
	return report
}

func projectCore(st state.State, fields []string) map[string]any {
	core := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := st[f]; ok {
			core[f] = v
		}
	}
	return core
}

// reasoning calls the LLM for a free-form paragraph summarizing report;
// on any failure (no client configured, call error, empty response) it
// falls back to a deterministic template so the section is never simply
// omitted.
func (e *Engine) reasoning(ctx context.Context, report Report) string {
	if e.Client != nil {
		req := &model.Request{
			Model:      e.Model,
			ModelClass: model.ModelClassDefault,
			System:     "Summarize the bunker-planning result for the operator in two to three sentences.",
			Messages:   []model.Message{{Role: model.RoleUser, Text: summarizeForPrompt(report)}},
			MaxTokens:  512,
		}
		resp, err := e.Client.Complete(ctx, req)
		if err == nil && resp.Text != "" {
			return resp.Text
		}
	}
	return templateReasoning(report)
}

func summarizeForPrompt(report Report) string {
	out := fmt.Sprintf("%d insights, %d recommendations, %d warnings.\n", len(report.Insights), len(report.Recommendations), len(report.Warnings))
	for _, i := range report.Insights {
		out += "insight: " + i.Description + "\n"
	}
	for _, r := range report.Recommendations {
		out += "recommendation: " + r.Action + " - " + r.Rationale + "\n"
	}
	return out
}

// templateReasoning builds a deterministic paragraph from the same
// insights the LLM path would have summarized.
func templateReasoning(report Report) string {
	if len(report.Insights) == 0 && len(report.Recommendations) == 0 {
		return "No notable findings were derived from the execution result."
	}
	out := ""
	if len(report.Insights) > 0 {
		out += fmt.Sprintf("%d insight(s) found: %s. ", len(report.Insights), report.Insights[0].Description)
	}
	if len(report.Recommendations) > 0 {
		out += fmt.Sprintf("Top recommendation: %s.", report.Recommendations[0].Action)
	}
	return out
}

// nextSteps derives an ordered follow-up list from warnings (highest
// severity first) and recommendations.
func nextSteps(report Report) []string {
	var steps []string
	alerts := append([]Alert(nil), report.Warnings...)
	sort.SliceStable(alerts, func(i, j int) bool { return severityRank(alerts[i].Severity) > severityRank(alerts[j].Severity) })
	for _, a := range alerts {
		steps = append(steps, "address: "+a.Message)
	}
	for _, r := range report.Recommendations {
		steps = append(steps, r.Action)
	}
	return steps
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}
