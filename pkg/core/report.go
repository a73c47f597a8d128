// pkg/core/report.go
package core

import "time"

// Gap is a pair of consecutive samples further apart in time than the gap
// threshold. The segment between them contributes no distance.
type Gap struct {
	StartIndex int           `json:"start_index"`
	EndIndex   int           `json:"end_index"`
	Duration   time.Duration `json:"duration"`
	Distance   float64       `json:"distance"`
}

// BoundingBox is the lat/lon extent of a path.
type BoundingBox struct {
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Position {
	return Position{
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
	}
}

// Padded grows the box by fraction of its span on every side, never by less
// than minimum degrees.
func (b BoundingBox) Padded(fraction, minimum float64) BoundingBox {
	latPad := max((b.MaxLatitude-b.MinLatitude)*fraction, minimum)
	lonPad := max((b.MaxLongitude-b.MinLongitude)*fraction, minimum)
	return BoundingBox{
		MinLatitude:  b.MinLatitude - latPad,
		MinLongitude: b.MinLongitude - lonPad,
		MaxLatitude:  b.MaxLatitude + latPad,
		MaxLongitude: b.MaxLongitude + lonPad,
	}
}

// Waypoint is one compiled waypoint of a mission plan.
type Waypoint struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Depth       float64 `json:"depth"`
	ControlMode string  `json:"control_mode,omitempty"`
	Yaw         float64 `json:"yaw,omitempty"`
}

// MissionPlan is the planned route of a session.
type MissionPlan struct {
	Name      string     `json:"name,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	Waypoints []Waypoint `json:"waypoints"`
}

// BehaviourState is an entry of the vehicle behaviour timeline.
type BehaviourState struct {
	Time      time.Time `json:"time"`
	Behaviour string    `json:"behaviour"`
}

// DriftReport compares dead-reckoned samples against fixes of the same
// session.
type DriftReport struct {
	Pairs        int             `json:"pairs"`
	Unmatched    int             `json:"unmatched"`
	Statistics   ErrorStatistics `json:"statistics"`
	Series       []float64       `json:"series"`
	Elapsed      []float64       `json:"elapsed"`
	FinalDrift   *float64        `json:"final_drift,omitempty"`
	DriftRate    *float64        `json:"drift_rate,omitempty"`
	DriftRateR2  *float64        `json:"drift_rate_r2,omitempty"`
	Insufficient []string        `json:"insufficient,omitempty"`
}

// SelfStatistics describes a single trajectory with no comparison partner.
type SelfStatistics struct {
	SampleCount    int              `json:"sample_count"`
	RejectedCount  int              `json:"rejected_count"`
	TotalDistance  float64          `json:"total_distance"`
	Duration       time.Duration    `json:"duration"`
	MovingDuration time.Duration    `json:"moving_duration"`
	AverageSpeed   *float64         `json:"average_speed,omitempty"`
	MaxSpeed       *float64         `json:"max_speed,omitempty"`
	GapCount       int              `json:"gap_count"`
	Depth          *ErrorStatistics `json:"depth,omitempty"`
	Altitude       *ErrorStatistics `json:"altitude,omitempty"`
	Bounds         BoundingBox      `json:"bounds"`
	Drift          *DriftReport     `json:"drift,omitempty"`

	// PathSource is the source distance and speeds were measured on when
	// the trajectory mixes fixes and dead reckoning. Unknown means all
	// samples.
	PathSource Source `json:"path_source,omitempty"`
}

// PlanAccuracy is the error of a trajectory against its planned route.
type PlanAccuracy struct {
	PlannedDistance float64          `json:"planned_distance"`
	Matched         int              `json:"matched"`
	Unmatched       int              `json:"unmatched"`
	Statistics      ErrorStatistics  `json:"statistics"`
	DepthError      *ErrorStatistics `json:"depth_error,omitempty"`
	Errors          []float64        `json:"errors"`
	Insufficient    []string         `json:"insufficient,omitempty"`
}

// TrajectoryReport is the per-session entry of a ReportPayload.
type TrajectoryReport struct {
	SessionID          string             `json:"session_id"`
	MissionName        string             `json:"mission_name,omitempty"`
	ClockOrigin        time.Time          `json:"clock_origin"`
	Samples            []NavigationSample `json:"samples"`
	CumulativeDistance []float64          `json:"cumulative_distance"`
	Speed              []*float64         `json:"speed"`
	HeadingDelta       []*float64         `json:"heading_delta"`
	Gaps               []Gap              `json:"gaps,omitempty"`
	Rejected           []RejectedRecord   `json:"rejected,omitempty"`
	Statistics         SelfStatistics     `json:"statistics"`
	Plan               *MissionPlan       `json:"plan,omitempty"`
	PlanAccuracy       *PlanAccuracy      `json:"plan_accuracy,omitempty"`
	Behaviours         []BehaviourState   `json:"behaviours,omitempty"`
}

// ErrorKind classifies a failure recorded in a ReportPayload.
type ErrorKind string

const (
	KindSessionNotFound   ErrorKind = "session_not_found"
	KindEmptyTrajectory   ErrorKind = "empty_trajectory"
	KindMissingTrajectory ErrorKind = "missing_trajectory"
	KindInsufficientData  ErrorKind = "insufficient_data"
	KindOther             ErrorKind = "error"
)

// SessionFailure records why a session or comparison produced no result.
type SessionFailure struct {
	SessionID string    `json:"session_id"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

// ReportPayload is the renderer-facing output of one run.
type ReportPayload struct {
	RunID       string                      `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Reference   string                      `json:"reference,omitempty"`
	SessionIDs  []string                    `json:"session_ids"`
	Sessions    map[string]TrajectoryReport `json:"sessions"`
	Comparisons map[string]ComparisonResult `json:"comparisons"`
	Failures    []SessionFailure            `json:"failures,omitempty"`
	Warnings    []string                    `json:"warnings,omitempty"`
}

// ComparisonKeys returns the comparison keys in session order.
func (p *ReportPayload) ComparisonKeys() []string {
	keys := make([]string, 0, len(p.Comparisons))
	for _, id := range p.SessionIDs {
		key := ComparisonKey(p.Reference, id)
		if _, ok := p.Comparisons[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
