package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarunagarwal1981/fuelsenseagentic-sub008/internal/state"
)

func lowFuelValidator() Validator {
	return Validator{
		Name:        "min_fuel_margin",
		AppliesWhen: func(nextAgentID string) bool { return nextAgentID == "bunker_agent" },
		Check: func(st state.State) Outcome {
			analysis, ok := st["bunker_analysis"].(map[string]any)
			if !ok {
				return Outcome{Valid: true}
			}
			margin, _ := analysis["margin_percent"].(float64)
			if margin < 0 {
				return Outcome{Valid: false, Severity: SeverityHard, Reason: "negative bunker margin"}
			}
			return Outcome{Valid: true}
		},
	}
}

func missingRouteValidator() Validator {
	return Validator{
		Name:        "route_required_before_bunker",
		AppliesWhen: func(nextAgentID string) bool { return nextAgentID == "bunker_agent" },
		Check: func(st state.State) Outcome {
			if _, ok := st["route_data"]; ok {
				return Outcome{Valid: true}
			}
			return Outcome{Valid: false, Severity: SeveritySoft, RequiredAgentID: "route_agent", Reason: "route_data missing"}
		},
	}
}

func TestValidateAllSkipsNonApplicableValidators(t *testing.T) {
	s := &Set{Validators: []Validator{lowFuelValidator()}}
	failures := s.ValidateAll(state.State{}, "route_agent")
	assert.Empty(t, failures)
}

func TestValidateAllReturnsOnlyFailures(t *testing.T) {
	s := &Set{Validators: []Validator{lowFuelValidator(), missingRouteValidator()}}
	failures := s.ValidateAll(state.State{}, "bunker_agent")
	assert.Len(t, failures, 1)
	assert.Equal(t, "route_required_before_bunker", failures[0].Name)
}

func TestValidateAllNilSetReturnsNoFailures(t *testing.T) {
	var s *Set
	failures := s.ValidateAll(state.State{}, "bunker_agent")
	assert.Nil(t, failures)
}

func TestGetSafeNextAgentHardFailureStops(t *testing.T) {
	failures := []Outcome{{Name: "min_fuel_margin", Severity: SeverityHard, Reason: "negative bunker margin"}}
	agentID, hardStop, reason := GetSafeNextAgent(failures, "bunker_agent")
	assert.True(t, hardStop)
	assert.Empty(t, agentID)
	assert.Equal(t, "negative bunker margin", reason)
}

func TestGetSafeNextAgentSoftFailureReroutes(t *testing.T) {
	failures := []Outcome{{Name: "route_required_before_bunker", Severity: SeveritySoft, RequiredAgentID: "route_agent", Reason: "route_data missing"}}
	agentID, hardStop, reason := GetSafeNextAgent(failures, "bunker_agent")
	assert.False(t, hardStop)
	assert.Equal(t, "route_agent", agentID)
	assert.Equal(t, "route_data missing", reason)
}

func TestGetSafeNextAgentNoFailuresKeepsNextAgent(t *testing.T) {
	agentID, hardStop, reason := GetSafeNextAgent(nil, "bunker_agent")
	assert.False(t, hardStop)
	assert.Equal(t, "bunker_agent", agentID)
	assert.Empty(t, reason)
}
