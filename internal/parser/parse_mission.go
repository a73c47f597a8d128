package parser

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
)

type missionFile struct {
	Name              string             `json:"name"`
	Mode              string             `json:"mode"`
	CompiledWaypoints []compiledWaypoint `json:"compiled_waypoints"`
}

type compiledWaypoint struct {
	Lat         *float64 `json:"lat_deg"`
	Lon         *float64 `json:"lon_deg"`
	Vertical    float64  `json:"vertical"`
	ControlMode string   `json:"control_mode"`
	Yaw         float64  `json:"yaw_deg"`
}

// ParseMissionPlan parses a mission.json into the planned route.
// Waypoints without a valid lat/lon are skipped.
func (p *Parser) ParseMissionPlan(r io.Reader) (core.MissionPlan, error) {
	var mf missionFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return core.MissionPlan{}, fmt.Errorf("error unmarshalling mission plan: %w", err)
	}

	plan := core.MissionPlan{
		Name:      mf.Name,
		Mode:      mf.Mode,
		Waypoints: make([]core.Waypoint, 0, len(mf.CompiledWaypoints)),
	}
	for i, wp := range mf.CompiledWaypoints {
		if wp.Lat == nil || wp.Lon == nil || !geo.ValidPosition(*wp.Lat, *wp.Lon) {
			p.logger.Debug("Skipping waypoint without valid position", "index", i)
			continue
		}
		mode := wp.ControlMode
		if mode == "" {
			mode = "unknown"
		}
		plan.Waypoints = append(plan.Waypoints, core.Waypoint{
			Latitude:    *wp.Lat,
			Longitude:   *wp.Lon,
			Depth:       wp.Vertical,
			ControlMode: mode,
			Yaw:         wp.Yaw,
		})
	}
	return plan, nil
}

// ParseMissionName reads the first non-empty line of mission_name.txt.
func (p *Parser) ParseMissionName(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			return name, nil
		}
	}
	return "", scanner.Err()
}

// ParseBehaviourStates reads behaviour_states.csv. Timestamps are
// microseconds since the Unix epoch.
func (p *Parser) ParseBehaviourStates(r io.Reader) ([]core.BehaviourState, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading behaviour header: %w", err)
	}
	tsCol, behCol := -1, -1
	for i, h := range header {
		switch util.CleanHeader(h) {
		case "Timestamp":
			tsCol = i
		case "Behaviour_String":
			behCol = i
		}
	}
	if tsCol < 0 || behCol < 0 {
		return nil, fmt.Errorf("behaviour header %v: %w", header, ErrMissingField)
	}

	var states []core.BehaviourState
	for {
		data, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return states, fmt.Errorf("error reading behaviour states: %w", err)
		}
		us, err := strconv.ParseInt(strings.TrimSpace(column(data, tsCol)), 10, 64)
		if err != nil {
			p.logger.Debug("Skipping behaviour row", "error", err)
			continue
		}
		states = append(states, core.BehaviourState{
			Time:      time.UnixMicro(us).UTC(),
			Behaviour: column(data, behCol),
		})
	}
	return states, nil
}
