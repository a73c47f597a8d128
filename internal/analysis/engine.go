// Package analysis computes comparison, self and plan statistics for
// trajectories.
package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/auvmap/analyzer/internal/align"
	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/stats"
	"github.com/auvmap/analyzer/internal/trajectory"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/sajari/regression"
)

// ErrNoPlan is returned by PlanAccuracy for a plan without waypoints.
var ErrNoPlan = errors.New("mission plan has no waypoints")

// minRegressionPoints is the smallest drift series fitted for a rate.
const minRegressionPoints = 3

// Engine runs the statistics stage of the pipeline.
type Engine struct {
	cfg    align.Config
	logger *slog.Logger
}

// NewEngine returns an Engine using cfg for every alignment. A nil logger
// uses slog.Default().
func NewEngine(cfg align.Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = core.BasisTime
	}
	if cfg.TimeBasis == "" {
		cfg.TimeBasis = align.Elapsed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Config returns the alignment configuration.
func (e *Engine) Config() align.Config { return e.cfg }

// Compare aligns candidate onto reference and summarises the positional
// error of every matched candidate sample. When too few pairs exist the
// partial result is returned together with an error wrapping
// stats.ErrInsufficientData.
func (e *Engine) Compare(reference, candidate *trajectory.Trajectory) (core.ComparisonResult, error) {
	result := core.ComparisonResult{
		Reference: reference.SessionID(),
		Candidate: candidate.SessionID(),
		Basis:     e.cfg.Mode,
		Rejected:  candidate.RejectedCount(),
	}

	al, err := align.Align(candidate, reference, e.cfg)
	if err != nil {
		return result, fmt.Errorf("align %s with %s: %w", candidate.SessionID(), reference.SessionID(), err)
	}
	if unmatched := al.Err(); unmatched != nil {
		e.logger.Warn("samples left unmatched",
			"reference", reference.SessionID(),
			"candidate", candidate.SessionID(),
			"error", unmatched)
	}

	result.Pairs = al.Pairs
	result.Matched = len(al.Pairs)
	result.Unmatched = len(al.Unmatched)
	result.UnmatchedIndices = al.Unmatched
	result.Coverage = al.Coverage()

	result.Errors = make([]float64, len(al.Pairs))
	var depthDiffs, altitudeDiffs, headingDiffs []float64
	for i, p := range al.Pairs {
		a := candidate.Sample(p.IndexA)
		result.Errors[i] = geo.Distance(a.Position(), p.Matched)

		if a.Depth != nil {
			if d, ok := valueAt(reference, p, depthOf); ok {
				depthDiffs = append(depthDiffs, math.Abs(*a.Depth-d))
			}
		}
		if a.Altitude != nil {
			if v, ok := valueAt(reference, p, altitudeOf); ok {
				altitudeDiffs = append(altitudeDiffs, math.Abs(*a.Altitude-v))
			}
		}
		if b := reference.Sample(p.IndexB); a.Heading != nil && b.Heading != nil {
			headingDiffs = append(headingDiffs, geo.HeadingDifference(*a.Heading, *b.Heading))
		}
	}

	result.DepthDifference, result.Insufficient = optionalSummary("depth_difference", depthDiffs, result.Insufficient)
	result.AltitudeDifference, result.Insufficient = optionalSummary("altitude_difference", altitudeDiffs, result.Insufficient)
	result.HeadingDifference, result.Insufficient = optionalSummary("heading_difference", headingDiffs, result.Insufficient)

	summary, err := stats.Summarize(result.Errors)
	result.Statistics = summary
	if err != nil {
		result.Insufficient = append(stats.Insufficient(err), result.Insufficient...)
		return result, fmt.Errorf("compare %s with %s: %w", candidate.SessionID(), reference.SessionID(), err)
	}

	e.logger.Debug("comparison computed",
		"reference", reference.SessionID(),
		"candidate", candidate.SessionID(),
		"matched", result.Matched,
		"unmatched", result.Unmatched)
	return result, nil
}

// optionalSummary summarises an auxiliary series. Empty series give nil
// and missing fields are appended to insufficient with a name prefix.
func optionalSummary(name string, values []float64, insufficient []string) (*core.ErrorStatistics, []string) {
	if len(values) == 0 {
		return nil, insufficient
	}
	s, err := stats.Summarize(values)
	for _, f := range stats.Insufficient(err) {
		insufficient = append(insufficient, name+"."+f)
	}
	return &s, insufficient
}

func depthOf(s core.NavigationSample) *float64    { return s.Depth }
func altitudeOf(s core.NavigationSample) *float64 { return s.Altitude }

// valueAt returns field of b at the matched point of p, interpolated
// along the segment when the pair was interpolated.
func valueAt(b *trajectory.Trajectory, p core.AlignedPair, field func(core.NavigationSample) *float64) (float64, bool) {
	start := field(b.Sample(p.IndexB))
	if start == nil {
		return 0, false
	}
	if !p.Interpolated || p.IndexB+1 >= b.Len() {
		return *start, true
	}
	end := field(b.Sample(p.IndexB + 1))
	if end == nil {
		return *start, true
	}
	f := segmentFraction(b.Position(p.IndexB), b.Position(p.IndexB+1), p.Matched)
	return *start + (*end-*start)*f, true
}

func segmentFraction(a, b, at core.Position) float64 {
	length := geo.Distance(a, b)
	if length == 0 {
		return 0
	}
	return math.Min(1, geo.Distance(a, at)/length)
}

// SelfStatistics describes t on its own. When t carries both fixes and
// dead-reckoned samples, distance and speeds come from one source only (see
// pathOf) and drift is computed by aligning each dead-reckoned sample to the
// nearest fix on the shared clock. The returned error wraps
// stats.ErrInsufficientData when the drift series is too short.
func (e *Engine) SelfStatistics(t *trajectory.Trajectory) (core.SelfStatistics, error) {
	path, src := pathOf(t)
	out := core.SelfStatistics{
		SampleCount:    t.Len(),
		RejectedCount:  t.RejectedCount(),
		TotalDistance:  path.TotalDistance(),
		Duration:       t.Duration(),
		MovingDuration: path.MovingDuration(),
		GapCount:       len(t.Gaps()),
		Bounds:         t.Bounds(),
		PathSource:     src,
	}
	if moving := path.MovingDuration().Seconds(); moving > 0 {
		out.AverageSpeed = core.Float64(path.TotalDistance() / moving)
	}
	for _, s := range path.Speeds() {
		if s != nil && (out.MaxSpeed == nil || *s > *out.MaxSpeed) {
			out.MaxSpeed = core.Float64(*s)
		}
	}

	var depths, altitudes []float64
	for _, s := range t.Samples() {
		if s.Depth != nil {
			depths = append(depths, *s.Depth)
		}
		if s.Altitude != nil {
			altitudes = append(altitudes, *s.Altitude)
		}
	}
	out.Depth, _ = optionalSummary("depth", depths, nil)
	out.Altitude, _ = optionalSummary("altitude", altitudes, nil)

	if !t.Has(core.SourceFix) || !t.Has(core.SourceDeadReckoned) {
		return out, nil
	}
	drift, err := e.drift(t)
	out.Drift = drift
	if err != nil {
		return out, fmt.Errorf("session %s drift: %w", t.SessionID(), err)
	}
	return out, nil
}

// pathOf returns the samples distance is measured along. Interleaved fixes
// and dead-reckoned estimates jump between two position estimates, so a
// mixed trajectory is narrowed to its dead-reckoned samples, or to its fixes
// when fewer than two samples are dead-reckoned.
func pathOf(t *trajectory.Trajectory) (*trajectory.Trajectory, core.Source) {
	if !t.Has(core.SourceFix) || !t.Has(core.SourceDeadReckoned) {
		return t, core.SourceUnknown
	}
	for _, src := range []core.Source{core.SourceDeadReckoned, core.SourceFix} {
		if sub, err := t.BySource(src); err == nil && sub.Len() >= 2 {
			return sub, src
		}
	}
	return t, core.SourceUnknown
}

func (e *Engine) drift(t *trajectory.Trajectory) (*core.DriftReport, error) {
	fixes, err := t.BySource(core.SourceFix)
	if err != nil {
		return nil, err
	}
	reckoned, err := t.BySource(core.SourceDeadReckoned)
	if err != nil {
		return nil, err
	}

	cfg := e.cfg
	cfg.Mode = core.BasisTime
	cfg.TimeBasis = align.Absolute
	al, err := align.Align(reckoned, fixes, cfg)
	if err != nil {
		return nil, err
	}

	report := &core.DriftReport{
		Pairs:     len(al.Pairs),
		Unmatched: len(al.Unmatched),
		Series:    make([]float64, len(al.Pairs)),
		Elapsed:   make([]float64, len(al.Pairs)),
	}
	for i, p := range al.Pairs {
		report.Series[i] = geo.Distance(reckoned.Position(p.IndexA), p.Matched)
		report.Elapsed[i] = (reckoned.Timestamp(p.IndexA) - t.Start()).Seconds()
	}
	if n := len(report.Series); n > 0 {
		report.FinalDrift = core.Float64(report.Series[n-1])
	}
	if rate, r2, ok := e.driftRate(report.Elapsed, report.Series); ok {
		report.DriftRate = core.Float64(rate)
		report.DriftRateR2 = r2
	}

	summary, err := stats.Summarize(report.Series)
	report.Statistics = summary
	report.Insufficient = stats.Insufficient(err)
	return report, err
}

// driftRate fits drift = offset + rate*elapsed and returns the rate in m/s.
func (e *Engine) driftRate(elapsed, drift []float64) (float64, *float64, bool) {
	if len(drift) < minRegressionPoints {
		return 0, nil, false
	}
	r := new(regression.Regression)
	r.SetObserved("drift")
	r.SetVar(0, "elapsed")
	for i := range drift {
		r.Train(regression.DataPoint(drift[i], []float64{elapsed[i]}))
	}
	if err := r.Run(); err != nil {
		e.logger.Debug("drift regression failed", "error", err)
		return 0, nil, false
	}
	rate := r.Coeff(1)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, nil, false
	}
	var r2 *float64
	if !math.IsNaN(r.R2) && !math.IsInf(r.R2, 0) {
		r2 = core.Float64(r.R2)
	}
	return rate, r2, true
}

// PlanAccuracy measures how closely t followed plan: every sample is
// matched to the closest point of the waypoint polyline.
func (e *Engine) PlanAccuracy(t *trajectory.Trajectory, plan core.MissionPlan) (core.PlanAccuracy, error) {
	if len(plan.Waypoints) == 0 {
		return core.PlanAccuracy{}, ErrNoPlan
	}
	samples := make([]core.NavigationSample, len(plan.Waypoints))
	route := make([]core.Position, len(plan.Waypoints))
	for i, w := range plan.Waypoints {
		route[i] = core.Position{Latitude: w.Latitude, Longitude: w.Longitude}
		samples[i] = core.NavigationSample{
			Timestamp: time.Duration(i) * time.Second,
			Latitude:  w.Latitude,
			Longitude: w.Longitude,
			Depth:     core.Float64(w.Depth),
		}
	}
	planned, err := trajectory.New(plan.Name, samples, trajectory.Options{GapThreshold: -1})
	if err != nil {
		return core.PlanAccuracy{}, err
	}

	cfg := e.cfg
	cfg.Mode = core.BasisSpatial
	cfg.Interpolate = true
	al, err := align.Align(t, planned, cfg)
	if err != nil {
		return core.PlanAccuracy{}, err
	}

	out := core.PlanAccuracy{
		PlannedDistance: geo.PathLength(route),
		Matched:         len(al.Pairs),
		Unmatched:       len(al.Unmatched),
		Errors:          make([]float64, len(al.Pairs)),
	}
	var depthErrors []float64
	for i, p := range al.Pairs {
		out.Errors[i] = p.DistanceGap
		if s := t.Sample(p.IndexA); s.Depth != nil {
			if d, ok := valueAt(planned, p, depthOf); ok {
				depthErrors = append(depthErrors, math.Abs(*s.Depth-d))
			}
		}
	}
	out.DepthError, out.Insufficient = optionalSummary("depth_error", depthErrors, nil)

	summary, err := stats.Summarize(out.Errors)
	out.Statistics = summary
	if err != nil {
		out.Insufficient = append(stats.Insufficient(err), out.Insufficient...)
		return out, fmt.Errorf("session %s plan accuracy: %w", t.SessionID(), err)
	}
	return out, nil
}
