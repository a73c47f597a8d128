package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/model"
	"github.com/auvmap/analyzer/pkg/core"
)

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return core.Float64(v.Float64)
}

// ErrorStatsToCore converts nullable statistic columns back to core form.
func ErrorStatsToCore(s model.ErrorStats) core.ErrorStatistics {
	return core.ErrorStatistics{
		Count:  s.Count,
		Mean:   floatPtr(s.Mean),
		Median: floatPtr(s.Median),
		P95:    floatPtr(s.P95),
		Max:    floatPtr(s.Max),
		Min:    floatPtr(s.Min),
		RMS:    floatPtr(s.RMS),
		StdDev: floatPtr(s.StdDev),
	}
}

// ComparisonToCore rebuilds a comparison result from its row and pair
// errors. Matched positions are not stored and stay zero.
func ComparisonToCore(c model.Comparison, pairs []model.PairError) core.ComparisonResult {
	out := core.ComparisonResult{
		Reference:  c.Reference,
		Candidate:  c.Candidate,
		Basis:      core.AlignmentBasis(c.Basis),
		Statistics: ErrorStatsToCore(c.Error),
		Matched:    c.Matched,
		Unmatched:  c.Unmatched,
		Rejected:   c.Rejected,
		Coverage:   c.Coverage,
		Pairs:      make([]core.AlignedPair, len(pairs)),
		Errors:     make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		out.Pairs[i] = core.AlignedPair{
			IndexA:       p.IndexA,
			IndexB:       p.IndexB,
			Interpolated: p.Interpolated,
			Basis:        out.Basis,
			TimeGap:      time.Duration(p.TimeGapSeconds * float64(time.Second)),
			DistanceGap:  p.DistanceGap,
		}
		out.Errors[i] = p.Error
	}
	out.DepthDifference = statsFromJSON(c.DepthDifference)
	out.AltitudeDifference = statsFromJSON(c.AltitudeDifference)
	out.HeadingDifference = statsFromJSON(c.HeadingDifference)
	_ = json.Unmarshal(c.Insufficient, &out.Insufficient)
	if len(out.Insufficient) == 0 {
		out.Insufficient = nil
	}
	return out
}

// statsFromJSON decodes an optional statistics column. Empty or
// unreadable columns give nil.
func statsFromJSON(data []byte) *core.ErrorStatistics {
	if len(data) == 0 {
		return nil
	}
	var s core.ErrorStatistics
	if json.Unmarshal(data, &s) != nil {
		return nil
	}
	return &s
}

// SessionPath returns the stored path of a session as positions.
func SessionPath(s model.SessionRecord) []core.Position {
	return geo.Positions(s.Path)
}
