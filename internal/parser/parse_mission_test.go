package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMissionPlan(t *testing.T) {
	p := newTestParser()
	in := `{
		"name": "Harbour survey",
		"mode": "waypoint",
		"compiled_waypoints": [
			{"lat_deg": 42.1, "lon_deg": -8.7, "vertical": 2.0, "control_mode": "depth", "yaw_deg": 90},
			{"lat_deg": 42.2, "lon_deg": -8.6},
			{"lon_deg": -8.5},
			{"lat_deg": 120, "lon_deg": -8.5}
		]
	}`

	plan, err := p.ParseMissionPlan(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "Harbour survey", plan.Name)
	assert.Equal(t, "waypoint", plan.Mode)
	require.Len(t, plan.Waypoints, 2)

	assert.Equal(t, 42.1, plan.Waypoints[0].Latitude)
	assert.Equal(t, 2.0, plan.Waypoints[0].Depth)
	assert.Equal(t, "depth", plan.Waypoints[0].ControlMode)
	assert.Equal(t, 90.0, plan.Waypoints[0].Yaw)

	assert.Equal(t, 0.0, plan.Waypoints[1].Depth)
	assert.Equal(t, "unknown", plan.Waypoints[1].ControlMode)
}

func TestParseMissionPlan_InvalidJSON(t *testing.T) {
	p := newTestParser()
	_, err := p.ParseMissionPlan(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestParseMissionName(t *testing.T) {
	p := newTestParser()
	name, err := p.ParseMissionName(strings.NewReader("\n  Harbour survey  \nsecond line\n"))
	require.NoError(t, err)
	assert.Equal(t, "Harbour survey", name)
}

func TestParseBehaviourStates(t *testing.T) {
	p := newTestParser()
	in := "Timestamp,Behaviour_String\n1757620986000000,Dive\nnope,Skip\n1757620990500000,Survey\n"

	states, err := p.ParseBehaviourStates(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "Dive", states[0].Behaviour)
	assert.Equal(t, time.Date(2025, 9, 11, 20, 3, 6, 0, time.UTC), states[0].Time)
	assert.Equal(t, time.Date(2025, 9, 11, 20, 3, 10, 500_000_000, time.UTC), states[1].Time)
}

func TestParseBehaviourStates_MissingColumns(t *testing.T) {
	p := newTestParser()
	_, err := p.ParseBehaviourStates(strings.NewReader("time,state\n1,Dive\n"))
	assert.ErrorIs(t, err, ErrMissingField)
}
