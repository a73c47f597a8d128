package filestorage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
)

var (
	precisionHeader = []string{
		"Comparison", "Basis", "Matched", "Unmatched", "Coverage",
		"Mean_Distance_m", "Median_Distance_m", "RMS_Distance_m", "Max_Distance_m", "Min_Distance_m",
		"Std_Distance_m", "Percentile_95_m", "Mean_Depth_Diff_m", "Mean_Altitude_Diff_m", "Mean_Heading_Diff_deg",
	}
	accuracyHeader = []string{
		"Session", "Planned_Distance_m", "Matched", "Unmatched",
		"Mean_Error_m", "RMS_Error_m", "Max_Error_m", "Std_Error_m", "Percentile_95_m", "Mean_Depth_Error_m",
	}
	telemetryHeader = []string{
		"elapsed_s", "time", "latitude", "longitude", "depth", "altitude", "heading", "source", "cumulative_distance_m", "speed_mps",
	}
	waypointHeader = []string{
		"waypoint_id", "latitude", "longitude", "depth", "yaw_deg", "control_mode",
	}
)

// formatFloat renders a value for a CSV cell.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional renders nil as an empty cell.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optionalMean(s *core.ErrorStatistics) string {
	if s == nil {
		return ""
	}
	return formatOptional(s.Mean)
}

// exportCSV writes the statistics tables of p into OutputDir/data and
// returns the written paths.
func (b *Backend) exportCSV(p *core.ReportPayload) ([]string, error) {
	dir := filepath.Join(b.cfg.OutputDir, DataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	ts := timestamp(p)
	var written []string

	if keys := p.ComparisonKeys(); len(keys) > 0 {
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			c := p.Comparisons[key]
			s := c.Statistics
			rows = append(rows, []string{
				key,
				string(c.Basis),
				strconv.Itoa(c.Matched),
				strconv.Itoa(c.Unmatched),
				formatFloat(c.Coverage),
				formatOptional(s.Mean),
				formatOptional(s.Median),
				formatOptional(s.RMS),
				formatOptional(s.Max),
				formatOptional(s.Min),
				formatOptional(s.StdDev),
				formatOptional(s.P95),
				optionalMean(c.DepthDifference),
				optionalMean(c.AltitudeDifference),
				optionalMean(c.HeadingDifference),
			})
		}
		path := filepath.Join(dir, fmt.Sprintf("precision_statistics_%s.csv", ts))
		if err := writeCSV(path, precisionHeader, rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	var accuracy [][]string
	for _, id := range p.SessionIDs {
		tr, ok := p.Sessions[id]
		if !ok || tr.PlanAccuracy == nil {
			continue
		}
		a := tr.PlanAccuracy
		accuracy = append(accuracy, []string{
			id,
			formatFloat(a.PlannedDistance),
			strconv.Itoa(a.Matched),
			strconv.Itoa(a.Unmatched),
			formatOptional(a.Statistics.Mean),
			formatOptional(a.Statistics.RMS),
			formatOptional(a.Statistics.Max),
			formatOptional(a.Statistics.StdDev),
			formatOptional(a.Statistics.P95),
			optionalMean(a.DepthError),
		})
	}
	if len(accuracy) > 0 {
		path := filepath.Join(dir, fmt.Sprintf("accuracy_statistics_%s.csv", ts))
		if err := writeCSV(path, accuracyHeader, accuracy); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	for _, id := range p.SessionIDs {
		tr, ok := p.Sessions[id]
		if !ok {
			continue
		}
		name := util.SafeFileName(id)
		path := filepath.Join(dir, fmt.Sprintf("telemetry_%s_%s.csv", name, ts))
		if err := writeCSV(path, telemetryHeader, telemetryRows(tr)); err != nil {
			return written, err
		}
		written = append(written, path)

		if tr.Plan != nil && len(tr.Plan.Waypoints) > 0 {
			path := filepath.Join(dir, fmt.Sprintf("planned_waypoints_%s_%s.csv", name, ts))
			if err := writeCSV(path, waypointHeader, waypointRows(tr.Plan)); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func telemetryRows(tr core.TrajectoryReport) [][]string {
	rows := make([][]string, len(tr.Samples))
	for i, s := range tr.Samples {
		var clock, cumulative, speed string
		if !tr.ClockOrigin.IsZero() {
			clock = tr.ClockOrigin.Add(s.Timestamp).UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
		if i < len(tr.CumulativeDistance) {
			cumulative = formatFloat(tr.CumulativeDistance[i])
		}
		if i < len(tr.Speed) {
			speed = formatOptional(tr.Speed[i])
		}
		rows[i] = []string{
			formatFloat(s.Timestamp.Seconds()),
			clock,
			formatFloat(s.Latitude),
			formatFloat(s.Longitude),
			formatOptional(s.Depth),
			formatOptional(s.Altitude),
			formatOptional(s.Heading),
			s.Source.String(),
			cumulative,
			speed,
		}
	}
	return rows
}

func waypointRows(plan *core.MissionPlan) [][]string {
	rows := make([][]string, len(plan.Waypoints))
	for i, wp := range plan.Waypoints {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			formatFloat(wp.Latitude),
			formatFloat(wp.Longitude),
			formatFloat(wp.Depth),
			formatFloat(wp.Yaw),
			wp.ControlMode,
		}
	}
	return rows
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
