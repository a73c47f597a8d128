// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/model"
	"github.com/auvmap/analyzer/pkg/core"
	"gorm.io/datatypes"
)

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// toJSON marshals v for a JSON column. nil values become SQL NULL.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return datatypes.JSON(data)
}

// stringsToJSON converts a []string to datatypes.JSON for DB storage.
func stringsToJSON(s []string) datatypes.JSON {
	if len(s) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(s)
	return datatypes.JSON(data)
}

// CoreToErrorStats converts statistics to nullable columns.
func CoreToErrorStats(s core.ErrorStatistics) model.ErrorStats {
	return model.ErrorStats{
		Count:  s.Count,
		Mean:   nullFloat(s.Mean),
		Median: nullFloat(s.Median),
		P95:    nullFloat(s.P95),
		Max:    nullFloat(s.Max),
		Min:    nullFloat(s.Min),
		RMS:    nullFloat(s.RMS),
		StdDev: nullFloat(s.StdDev),
	}
}

// CoreToRun converts the run-level fields of a payload.
func CoreToRun(p *core.ReportPayload) model.Run {
	return model.Run{
		RunID:       p.RunID,
		GeneratedAt: p.GeneratedAt,
		Reference:   p.Reference,
		SessionIDs:  stringsToJSON(p.SessionIDs),
		Warnings:    stringsToJSON(p.Warnings),
	}
}

// CoreToFailure converts a session failure. runID is the Run row ID.
func CoreToFailure(runID uint, f core.SessionFailure) model.Failure {
	return model.Failure{
		RunID:     runID,
		SessionID: f.SessionID,
		Kind:      string(f.Kind),
		Message:   f.Message,
	}
}

// CoreToSessionRecord converts the summary of a trajectory report.
func CoreToSessionRecord(runID uint, tr core.TrajectoryReport) (model.SessionRecord, error) {
	positions := make([]core.Position, len(tr.Samples))
	for i, s := range tr.Samples {
		positions[i] = s.Position()
	}
	path, err := geo.LineString(positions)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("session %s path: %w", tr.SessionID, err)
	}
	rec := model.SessionRecord{
		RunID:           runID,
		SessionID:       tr.SessionID,
		MissionName:     tr.MissionName,
		ClockOrigin:     nullTime(tr.ClockOrigin),
		SampleCount:     tr.Statistics.SampleCount,
		RejectedCount:   tr.Statistics.RejectedCount,
		GapCount:        tr.Statistics.GapCount,
		TotalDistance:   tr.Statistics.TotalDistance,
		DurationSeconds: tr.Statistics.Duration.Seconds(),
		AverageSpeed:    nullFloat(tr.Statistics.AverageSpeed),
		MaxSpeed:        nullFloat(tr.Statistics.MaxSpeed),
		Path:            path,
		Statistics:      toJSON(tr.Statistics),
	}
	if tr.PlanAccuracy != nil {
		rec.PlanAccuracy = toJSON(tr.PlanAccuracy)
	}
	return rec, nil
}

// CoreToSamples converts the samples of a trajectory report, in order.
func CoreToSamples(sessionRecordID uint, tr core.TrajectoryReport) ([]model.TrajectorySample, error) {
	out := make([]model.TrajectorySample, len(tr.Samples))
	for i, s := range tr.Samples {
		pt, err := geo.Point(s.Position())
		if err != nil {
			return nil, fmt.Errorf("session %s sample %d: %w", tr.SessionID, i, err)
		}
		row := model.TrajectorySample{
			SessionRecordID: sessionRecordID,
			Seq:             i,
			ElapsedSeconds:  s.Timestamp.Seconds(),
			Position:        pt,
			Latitude:        s.Latitude,
			Longitude:       s.Longitude,
			Depth:           nullFloat(s.Depth),
			Heading:         nullFloat(s.Heading),
			Altitude:        nullFloat(s.Altitude),
			Source:          s.Source.String(),
		}
		if !tr.ClockOrigin.IsZero() {
			row.Time = nullTime(tr.ClockOrigin.Add(s.Timestamp))
		}
		if i < len(tr.CumulativeDistance) {
			row.CumulativeDistance = tr.CumulativeDistance[i]
		}
		if i < len(tr.Speed) {
			row.Speed = nullFloat(tr.Speed[i])
		}
		out[i] = row
	}
	return out, nil
}

// CoreToComparison converts a comparison result stored under key.
func CoreToComparison(runID uint, key string, c core.ComparisonResult) model.Comparison {
	row := model.Comparison{
		RunID:         runID,
		ComparisonKey: key,
		Reference:     c.Reference,
		Candidate:     c.Candidate,
		Basis:         string(c.Basis),
		Matched:       c.Matched,
		Unmatched:     c.Unmatched,
		Rejected:      c.Rejected,
		Coverage:      c.Coverage,
		Error:         CoreToErrorStats(c.Statistics),
		Insufficient:  stringsToJSON(c.Insufficient),
	}
	if c.DepthDifference != nil {
		row.DepthDifference = toJSON(c.DepthDifference)
	}
	if c.AltitudeDifference != nil {
		row.AltitudeDifference = toJSON(c.AltitudeDifference)
	}
	if c.HeadingDifference != nil {
		row.HeadingDifference = toJSON(c.HeadingDifference)
	}
	return row
}

// CoreToPairErrors converts the aligned pairs of a comparison. Errors[i]
// belongs to Pairs[i].
func CoreToPairErrors(comparisonID uint, c core.ComparisonResult) []model.PairError {
	out := make([]model.PairError, len(c.Pairs))
	for i, p := range c.Pairs {
		out[i] = model.PairError{
			ComparisonID:   comparisonID,
			IndexA:         p.IndexA,
			IndexB:         p.IndexB,
			Interpolated:   p.Interpolated,
			TimeGapSeconds: p.TimeGap.Seconds(),
			DistanceGap:    p.DistanceGap,
		}
		if i < len(c.Errors) {
			out[i].Error = c.Errors[i]
		}
	}
	return out
}
