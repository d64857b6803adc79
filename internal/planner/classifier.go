package planner

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/model"
	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/orcherr"
)

// Classifier resolves a user query into a Classification. LLMClassifier
// is the primary implementation; RegexClassifier is the local-recovery
// fallback (spec.md §7 "on LLM parse failure, falls back to a
// regex-based low-confidence classification rather than aborting").
type Classifier interface {
	Classify(ctx context.Context, query string, knownQueryTypes []string, knownWorkflowIDs []string, capabilities []string) (Classification, error)
}

// classifyToolSchema is the single forced-tool JSON schema the
// classification LLM call must answer with (spec.md §4.7 "a structured
// object").
const classifyToolSchema = `{
  "type": "object",
  "properties": {
    "query_type": {"type": "string"},
    "confidence": {"type": "number"},
    "reasoning": {"type": "string"},
    "secondary_intents": {"type": "array", "items": {"type": "string"}},
    "extracted_entities": {
      "type": "object",
      "properties": {
        "origin": {"type": "string"},
        "destination": {"type": "string"},
        "vessel_name": {"type": "string"},
        "fuel_types": {"type": "array", "items": {"type": "string"}},
        "fuel_quantity": {"type": "number"},
        "departure_date": {"type": "string"}
      }
    },
    "proposed_workflow_id": {"type": "string"}
  },
  "required": ["query_type", "confidence"]
}`

// LLMClassifier issues the Plan Generator's single LLM call (spec.md
// §4.7 step 1).
type LLMClassifier struct {
	Client model.Client
	Model  string
}

type classifyToolOutput struct {
	QueryType         string            `json:"query_type"`
	Confidence        float64           `json:"confidence"`
	Reasoning         string            `json:"reasoning"`
	SecondaryIntents  []string          `json:"secondary_intents"`
	ExtractedEntities ExtractedEntities `json:"extracted_entities"`
	ProposedWorkflowID string          `json:"proposed_workflow_id"`
}

// Classify sends the query, known query types, workflows, and
// capabilities to the model with a single forced structured-output
// tool, and returns the parsed result.
func (c *LLMClassifier) Classify(ctx context.Context, query string, knownQueryTypes, knownWorkflowIDs, capabilities []string) (Classification, error) {
	prompt := strings.Join([]string{
		"User query: " + query,
		"Known query types: " + strings.Join(knownQueryTypes, ", "),
		"Known workflows: " + strings.Join(knownWorkflowIDs, ", "),
		"Known capabilities: " + strings.Join(capabilities, ", "),
	}, "\n")

	req := &model.Request{
		Model:      c.Model,
		ModelClass: model.ModelClassDefault,
		Messages:   []model.Message{{Role: model.RoleUser, Text: prompt}},
		System:     "Classify the bunker-planning query into a known query type and extract entities. Respond only via the classify tool.",
		Tool: &model.ToolDefinition{
			Name:        "classify",
			Description: "Return the query classification and extracted entities",
			Schema:      []byte(classifyToolSchema),
		},
		MaxTokens: 1024,
	}

	resp, err := c.Client.Complete(ctx, req)
	if err != nil {
		return Classification{}, orcherr.Wrap(orcherr.PlanInvalid, "classification LLM call failed", err)
	}
	if resp.ToolCall == nil {
		return Classification{}, orcherr.New(orcherr.PlanInvalid, "classification response did not include a tool call")
	}

	var out classifyToolOutput
	if err := json.Unmarshal(resp.ToolCall.Arguments, &out); err != nil {
		return Classification{}, orcherr.Wrap(orcherr.PlanInvalid, "failed to parse classification tool arguments", err)
	}

	return Classification{
		QueryType:          out.QueryType,
		Confidence:         confidenceBucket(out.Confidence),
		NumericConfidence:  out.Confidence,
		Reasoning:          out.Reasoning,
		SecondaryIntents:   out.SecondaryIntents,
		ExtractedEntities:  out.ExtractedEntities,
		ProposedWorkflowID: out.ProposedWorkflowID,
	}, nil
}

func confidenceBucket(v float64) Confidence {
	switch {
	case v >= 0.8:
		return ConfidenceHigh
	case v >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RegexClassifier is the local-recovery fallback: port-code patterns,
// IMO digit runs, and "from/to" phrases, always returning low confidence
// (spec.md §4.7 step 1, §7 recovery (v)).
type RegexClassifier struct{}

var (
	fromToPattern = regexp.MustCompile(`(?i)from\s+([a-zA-Z ]+?)\s+to\s+([a-zA-Z ]+?)(?:[.,]|$)`)
	imoPattern    = regexp.MustCompile(`\bIMO\s*(\d{7})\b`)
	portCodePattern = regexp.MustCompile(`\b[A-Z]{5}\b`)
	fuelTypePattern = regexp.MustCompile(`(?i)\b(VLSFO|HSFO|MGO|LSMGO|ULSFO)\b`)
)

// Classify applies regex heuristics directly; it never calls an LLM and
// never fails.
func (RegexClassifier) Classify(_ context.Context, query string, knownQueryTypes, _ []string, _ []string) (Classification, error) {
	entities := ExtractedEntities{}
	queryType := "unknown"

	if m := fromToPattern.FindStringSubmatch(query); len(m) == 3 {
		entities.Origin = strings.TrimSpace(m[1])
		entities.Destination = strings.TrimSpace(m[2])
		queryType = pickQueryType(knownQueryTypes, "route_only")
	}
	if m := fuelTypePattern.FindAllString(query, -1); len(m) > 0 {
		entities.FuelTypes = dedupeStrings(m)
		queryType = pickQueryType(knownQueryTypes, "bunker_planning")
	}
	if imoPattern.MatchString(query) || portCodePattern.MatchString(query) {
		if queryType == "unknown" {
			queryType = pickQueryType(knownQueryTypes, "vessel_lookup")
		}
	}

	return Classification{
		QueryType:         queryType,
		Confidence:        ConfidenceLow,
		NumericConfidence: 0.3,
		Reasoning:         "regex fallback classification",
		ExtractedEntities: entities,
	}, nil
}

func pickQueryType(known []string, preferred string) string {
	for _, k := range known {
		if k == preferred {
			return preferred
		}
	}
	if len(known) > 0 {
		return known[0]
	}
	return preferred
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		u := strings.ToUpper(s)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
