package influx

import (
	"time"

	"github.com/auvmap/analyzer/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementNavigation   = "navigation"
	MeasurementSession      = "session_statistics"
	MeasurementComparison   = "comparison"
	MeasurementPairError    = "comparison_error"
	MeasurementPlanAccuracy = "plan_accuracy"
)

// sampleTime places a sample on the wall clock. Sessions with no clock
// origin are anchored at the report generation time and tagged relative.
func sampleTime(p *core.ReportPayload, tr core.TrajectoryReport, offset time.Duration) (time.Time, string) {
	if tr.ClockOrigin.IsZero() {
		return p.GeneratedAt.Add(offset), "relative"
	}
	return tr.ClockOrigin.Add(offset), "absolute"
}

func addStats(point *influxdb2_write.Point, prefix string, s core.ErrorStatistics) {
	point.AddField(prefix+"count", s.Count)
	for name, v := range map[string]*float64{
		"mean":    s.Mean,
		"median":  s.Median,
		"p95":     s.P95,
		"max":     s.Max,
		"min":     s.Min,
		"rms":     s.RMS,
		"std_dev": s.StdDev,
	} {
		if v != nil {
			point.AddField(prefix+name, *v)
		}
	}
}

// SamplePoints returns one navigation point per sample of tr.
func SamplePoints(p *core.ReportPayload, tr core.TrajectoryReport) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(tr.Samples))
	for i, s := range tr.Samples {
		ts, clock := sampleTime(p, tr, s.Timestamp)
		point := influxdb2.NewPointWithMeasurement(MeasurementNavigation).
			AddTag("run_id", p.RunID).
			AddTag("session", tr.SessionID).
			AddTag("source", s.Source.String()).
			AddTag("clock", clock).
			AddField("elapsed_s", s.Timestamp.Seconds()).
			AddField("lat", s.Latitude).
			AddField("lon", s.Longitude).
			SetTime(ts)
		if s.Depth != nil {
			point.AddField("depth", *s.Depth)
		}
		if s.Heading != nil {
			point.AddField("heading", *s.Heading)
		}
		if s.Altitude != nil {
			point.AddField("altitude", *s.Altitude)
		}
		if i < len(tr.CumulativeDistance) {
			point.AddField("cumulative_distance", tr.CumulativeDistance[i])
		}
		if i < len(tr.Speed) && tr.Speed[i] != nil {
			point.AddField("speed", *tr.Speed[i])
		}
		points = append(points, point)
	}
	return points
}

// SessionPoint summarises tr at the report generation time.
func SessionPoint(p *core.ReportPayload, tr core.TrajectoryReport) *influxdb2_write.Point {
	st := tr.Statistics
	point := influxdb2.NewPointWithMeasurement(MeasurementSession).
		AddTag("run_id", p.RunID).
		AddTag("session", tr.SessionID).
		AddField("samples", st.SampleCount).
		AddField("rejected", st.RejectedCount).
		AddField("gaps", st.GapCount).
		AddField("total_distance", st.TotalDistance).
		AddField("duration_s", st.Duration.Seconds()).
		SetTime(p.GeneratedAt)
	if tr.MissionName != "" {
		point.AddTag("mission", tr.MissionName)
	}
	if st.AverageSpeed != nil {
		point.AddField("average_speed", *st.AverageSpeed)
	}
	if st.MaxSpeed != nil {
		point.AddField("max_speed", *st.MaxSpeed)
	}
	return point
}

// PlanAccuracyPoint returns nil when tr has no plan accuracy.
func PlanAccuracyPoint(p *core.ReportPayload, tr core.TrajectoryReport) *influxdb2_write.Point {
	if tr.PlanAccuracy == nil {
		return nil
	}
	a := tr.PlanAccuracy
	point := influxdb2.NewPointWithMeasurement(MeasurementPlanAccuracy).
		AddTag("run_id", p.RunID).
		AddTag("session", tr.SessionID).
		AddField("planned_distance", a.PlannedDistance).
		AddField("matched", a.Matched).
		AddField("unmatched", a.Unmatched).
		SetTime(p.GeneratedAt)
	addStats(point, "error_", a.Statistics)
	return point
}

// ComparisonPoint returns the summary statistics of c.
func ComparisonPoint(p *core.ReportPayload, key string, c core.ComparisonResult) *influxdb2_write.Point {
	point := influxdb2.NewPointWithMeasurement(MeasurementComparison).
		AddTag("run_id", p.RunID).
		AddTag("comparison", key).
		AddTag("reference", c.Reference).
		AddTag("candidate", c.Candidate).
		AddTag("basis", string(c.Basis)).
		AddField("matched", c.Matched).
		AddField("unmatched", c.Unmatched).
		AddField("rejected", c.Rejected).
		AddField("coverage", c.Coverage).
		SetTime(p.GeneratedAt)
	addStats(point, "error_", c.Statistics)
	if c.DepthDifference != nil {
		addStats(point, "depth_", *c.DepthDifference)
	}
	if c.AltitudeDifference != nil {
		addStats(point, "altitude_", *c.AltitudeDifference)
	}
	if c.HeadingDifference != nil {
		addStats(point, "heading_", *c.HeadingDifference)
	}
	return point
}

// PairErrorPoints returns one point per aligned pair, timed on the
// candidate's clock.
func PairErrorPoints(p *core.ReportPayload, key string, c core.ComparisonResult) []*influxdb2_write.Point {
	candidate, ok := p.Sessions[c.Candidate]
	if !ok {
		return nil
	}
	points := make([]*influxdb2_write.Point, 0, len(c.Pairs))
	for i, pair := range c.Pairs {
		if i >= len(c.Errors) || pair.IndexA >= len(candidate.Samples) {
			break
		}
		ts, clock := sampleTime(p, candidate, candidate.Samples[pair.IndexA].Timestamp)
		points = append(points, influxdb2.NewPointWithMeasurement(MeasurementPairError).
			AddTag("run_id", p.RunID).
			AddTag("comparison", key).
			AddTag("clock", clock).
			AddField("index_a", pair.IndexA).
			AddField("index_b", pair.IndexB).
			AddField("interpolated", pair.Interpolated).
			AddField("error", c.Errors[i]).
			SetTime(ts))
	}
	return points
}

// ReportPoints converts a payload into every point exported for it.
func ReportPoints(p *core.ReportPayload) []*influxdb2_write.Point {
	var points []*influxdb2_write.Point
	for _, id := range p.SessionIDs {
		tr, ok := p.Sessions[id]
		if !ok {
			continue
		}
		points = append(points, SamplePoints(p, tr)...)
		points = append(points, SessionPoint(p, tr))
		if point := PlanAccuracyPoint(p, tr); point != nil {
			points = append(points, point)
		}
	}
	for _, key := range p.ComparisonKeys() {
		c := p.Comparisons[key]
		points = append(points, ComparisonPoint(p, key, c))
		points = append(points, PairErrorPoints(p, key, c)...)
	}
	return points
}
