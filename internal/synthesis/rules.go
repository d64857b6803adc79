package synthesis

import (
	"fmt"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

// DefaultRules returns the bunker-planning rule set: threshold checks
// over route distance and bunker safety margin, plus the per-agent errors
// map written into state (spec.md §4.11 "insights are
// typed findings from numeric thresholds").
func DefaultRules() []Rule {
	return []Rule{
		longVoyageRule(),
		lowBunkerMarginRule(),
		agentErrorRule(),
	}
}

// longVoyageRule flags a route whose distance exceeds a threshold that
// typically requires an intermediate bunker stop.
func longVoyageRule() Rule {
	const longVoyageThresholdNM = 5000.0
	return Rule{
		Name: "long_voyage",
		Apply: func(st state.State) ([]Insight, []Recommendation, []Alert) {
			route, ok := st["route_data"].(map[string]any)
			if !ok {
				return nil, nil, nil
			}
			dist, ok := route["distance_nm"].(float64)
			if !ok || dist <= longVoyageThresholdNM {
				return nil, nil, nil
			}
			insight := Insight{
				Type:        "route_planning",
				Priority:    SeverityWarning,
				Category:    "voyage_distance",
				Field:       "route_data.distance_nm",
				Title:       "Long voyage leg",
				Description: fmt.Sprintf("route distance %.0f nm exceeds the %.0f nm single-leg threshold", dist, longVoyageThresholdNM),
				Value:       dist,
				Impact:      map[string]any{"distance_nm": dist, "threshold_nm": longVoyageThresholdNM},
				Confidence:  0.9,
			}
			rec := Recommendation{
				ID:         "waypoint_bunker_stop",
				Priority:   SeverityWarning,
				Action:     "Consider an intermediate bunker stop",
				Details:    "Voyage distance exceeds the typical single-leg range; evaluate a waypoint port for refueling.",
				Rationale:  insight.Description,
				Confidence: 0.8,
				Urgency:    "before_departure",
			}
			return []Insight{insight}, []Recommendation{rec}, nil
		},
	}
}

// lowBunkerMarginRule flags a bunker analysis whose computed safety
// margin falls below the operational floor.
func lowBunkerMarginRule() Rule {
	const minMarginPercent = 10.0
	return Rule{
		Name: "low_bunker_margin",
		Apply: func(st state.State) ([]Insight, []Recommendation, []Alert) {
			analysis, ok := st["bunker_analysis"].(map[string]any)
			if !ok {
				return nil, nil, nil
			}
			margin, ok := analysis["margin_percent"].(float64)
			if !ok || margin >= minMarginPercent {
				return nil, nil, nil
			}
			msg := fmt.Sprintf("bunker safety margin %.1f%% is below the %.1f%% floor", margin, minMarginPercent)
			insight := Insight{
				Type:        "cost_optimization",
				Priority:    SeverityCritical,
				Category:    "bunker_margin",
				Field:       "bunker_analysis.margin_percent",
				Title:       "Low bunker safety margin",
				Description: msg,
				Value:       margin,
				Impact:      map[string]any{"margin_percent": margin, "floor_percent": minMarginPercent},
				Confidence:  0.95,
			}
			alert := Alert{Severity: SeverityCritical, Message: msg}
			return []Insight{insight}, nil, []Alert{alert}
		},
	}
}

// agentErrorRule surfaces any per-agent error/status field an agent
// wrote into state as an operator-visible warning.
func agentErrorRule() Rule {
	return Rule{
		Name: "agent_error",
		Apply: func(st state.State) ([]Insight, []Recommendation, []Alert) {
			errs, ok := st["errors"].(map[string]any)
			if !ok || len(errs) == 0 {
				return nil, nil, nil
			}
			var alerts []Alert
			for agentID, msg := range errs {
				alerts = append(alerts, Alert{
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("%s reported: %v", agentID, msg),
				})
			}
			return nil, nil, alerts
		},
	}
}
