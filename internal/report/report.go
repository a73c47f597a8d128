// Package report packages trajectories and statistics into the payload
// handed to renderers and sinks.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/auvmap/analyzer/internal/trajectory"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/google/uuid"
)

// ErrMissingTrajectory is returned when the payload would reference a
// session that has no trajectory.
var ErrMissingTrajectory = errors.New("missing trajectory")

// SessionData is everything computed for one session.
type SessionData struct {
	Trajectory   *trajectory.Trajectory
	MissionName  string
	Plan         *core.MissionPlan
	Behaviours   []core.BehaviourState
	Statistics   core.SelfStatistics
	PlanAccuracy *core.PlanAccuracy
}

// Input is the material for one payload.
type Input struct {
	// RunID defaults to a random UUID.
	RunID string
	// GeneratedAt defaults to the current time.
	GeneratedAt time.Time
	Reference   string
	SessionIDs  []string
	Sessions    map[string]SessionData
	Comparisons []core.ComparisonResult
	Failures    []core.SessionFailure
	Warnings    []string
}

// Assemble builds the payload for in. Every session listed or referenced
// by a comparison must have a trajectory.
func Assemble(in Input) (*core.ReportPayload, error) {
	has := func(id string) bool {
		s, ok := in.Sessions[id]
		return ok && s.Trajectory != nil
	}
	for _, id := range in.SessionIDs {
		if !has(id) {
			return nil, fmt.Errorf("session %s: %w", id, ErrMissingTrajectory)
		}
	}
	if in.Reference != "" && !has(in.Reference) {
		return nil, fmt.Errorf("reference %s: %w", in.Reference, ErrMissingTrajectory)
	}
	for _, c := range in.Comparisons {
		for _, id := range []string{c.Reference, c.Candidate} {
			if !has(id) {
				return nil, fmt.Errorf("comparison %s: session %s: %w",
					core.ComparisonKey(c.Reference, c.Candidate), id, ErrMissingTrajectory)
			}
		}
	}

	p := &core.ReportPayload{
		RunID:       in.RunID,
		GeneratedAt: in.GeneratedAt,
		Reference:   in.Reference,
		SessionIDs:  append([]string(nil), in.SessionIDs...),
		Sessions:    make(map[string]core.TrajectoryReport, len(in.SessionIDs)),
		Comparisons: make(map[string]core.ComparisonResult, len(in.Comparisons)),
		Failures:    append([]core.SessionFailure(nil), in.Failures...),
		Warnings:    append([]string(nil), in.Warnings...),
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now().UTC()
	}

	for _, id := range in.SessionIDs {
		p.Sessions[id] = trajectoryReport(id, in.Sessions[id])
	}
	for _, c := range in.Comparisons {
		p.Comparisons[core.ComparisonKey(c.Reference, c.Candidate)] = c
	}
	return p, nil
}

func trajectoryReport(id string, s SessionData) core.TrajectoryReport {
	t := s.Trajectory
	return core.TrajectoryReport{
		SessionID:          id,
		MissionName:        s.MissionName,
		ClockOrigin:        t.ClockOrigin(),
		Samples:            t.Samples(),
		CumulativeDistance: t.CumulativeDistance(),
		Speed:              t.Speeds(),
		HeadingDelta:       t.HeadingDeltas(),
		Gaps:               t.Gaps(),
		Rejected:           t.Rejected(),
		Statistics:         s.Statistics,
		Plan:               s.Plan,
		PlanAccuracy:       s.PlanAccuracy,
		Behaviours:         s.Behaviours,
	}
}
