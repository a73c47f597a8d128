// Package trajectory holds the immutable in-memory model of one session's
// path together with its derived per-sample and aggregate metrics.
package trajectory

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrEmptyTrajectory is returned when no valid samples remain.
var ErrEmptyTrajectory = errors.New("empty trajectory")

// DefaultGapThreshold is used when Options.GapThreshold is zero.
const DefaultGapThreshold = 10 * time.Second

// Options configures trajectory construction.
type Options struct {
	// GapThreshold is the largest time step that still connects two samples.
	// Negative disables gap detection.
	GapThreshold time.Duration
	// ClockOrigin is the wall-clock time of timestamp zero, if known.
	ClockOrigin time.Time
	// Rejected lists records excluded while loading.
	Rejected []core.RejectedRecord

	// boundaries overrides gap detection for already ordered valid input.
	boundaries []bool
}

// Trajectory is an ordered, immutable sequence of valid samples. Derived
// fields are computed once by New.
type Trajectory struct {
	sessionID   string
	clockOrigin time.Time
	gapAfter    time.Duration
	boundaries  []bool

	samples  []core.NavigationSample
	rejected []core.RejectedRecord

	cumulative     []float64
	speed          []*float64
	headingDelta   []*float64
	gaps           []core.Gap
	totalDistance  float64
	movingDuration time.Duration
	bounds         core.BoundingBox
	path           geom.LineString
}

// New builds a Trajectory from samples. Invalid samples are moved to the
// rejected list; the rest are ordered by timestamp (stable for ties).
func New(sessionID string, samples []core.NavigationSample, opts Options) (*Trajectory, error) {
	threshold := opts.GapThreshold
	if threshold == 0 {
		threshold = DefaultGapThreshold
	}

	t := &Trajectory{
		sessionID:   sessionID,
		clockOrigin: opts.ClockOrigin,
		gapAfter:    threshold,
		rejected:    slices.Clone(opts.Rejected),
	}

	t.samples = make([]core.NavigationSample, 0, len(samples))
	for _, s := range samples {
		if !s.Validity.IsValid() {
			t.rejected = append(t.rejected, core.RejectedRecord{
				Validity: s.Validity,
				Reason:   "sample marked " + s.Validity.String(),
			})
			continue
		}
		s.Validity = core.Valid
		s.Depth = clonePtr(s.Depth)
		s.Heading = clonePtr(s.Heading)
		s.Altitude = clonePtr(s.Altitude)
		t.samples = append(t.samples, s)
	}
	if len(t.samples) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrEmptyTrajectory)
	}
	slices.SortStableFunc(t.samples, func(a, b core.NavigationSample) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	if len(opts.boundaries) == len(t.samples) {
		t.boundaries = opts.boundaries
	}
	if err := t.derive(); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return t, nil
}

// derive fills the per-sample and aggregate metrics. Distances run over
// consecutive samples whatever their source, so a trajectory interleaving
// fixes and dead-reckoned estimates includes the jumps between the two;
// use BySource for single-source path metrics.
func (t *Trajectory) derive() error {
	n := len(t.samples)
	t.cumulative = make([]float64, n)
	t.speed = make([]*float64, n)
	t.headingDelta = make([]*float64, n)

	positions := make([]core.Position, n)
	positions[0] = t.samples[0].Position()
	var bearing *float64

	for i := 1; i < n; i++ {
		prev, cur := t.samples[i-1], t.samples[i]
		positions[i] = cur.Position()
		dt := cur.Timestamp - prev.Timestamp
		d := geo.Distance(prev.Position(), cur.Position())

		isGap := t.gapAfter > 0 && dt > t.gapAfter
		if t.boundaries != nil {
			isGap = t.boundaries[i]
		}
		if isGap {
			t.samples[i].Validity = core.GapBoundary
			t.gaps = append(t.gaps, core.Gap{
				StartIndex: i - 1,
				EndIndex:   i,
				Duration:   dt,
				Distance:   d,
			})
			t.cumulative[i] = t.cumulative[i-1]
			bearing = nil
			continue
		}

		t.cumulative[i] = t.cumulative[i-1] + d
		t.movingDuration += dt
		if dt > 0 {
			t.speed[i] = core.Float64(d / dt.Seconds())
		}

		var segBearing *float64
		if d > 0 {
			segBearing = core.Float64(geo.Bearing(prev.Position(), cur.Position()))
		}
		switch {
		case prev.Heading != nil && cur.Heading != nil:
			t.headingDelta[i] = core.Float64(geo.HeadingDelta(*prev.Heading, *cur.Heading))
		case bearing != nil && segBearing != nil:
			t.headingDelta[i] = core.Float64(geo.HeadingDelta(*bearing, *segBearing))
		}
		if segBearing != nil {
			bearing = segBearing
		}
	}
	t.totalDistance = t.cumulative[n-1]

	var err error
	if t.bounds, err = geo.Bounds(positions); err != nil {
		return err
	}
	t.path, err = geo.LineString(positions)
	return err
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SessionID returns the owning session.
func (t *Trajectory) SessionID() string { return t.sessionID }

// ClockOrigin returns the wall-clock time of timestamp zero, or the zero
// time when the logs carry no date.
func (t *Trajectory) ClockOrigin() time.Time { return t.clockOrigin }

// GapThreshold returns the gap threshold the trajectory was built with.
func (t *Trajectory) GapThreshold() time.Duration { return t.gapAfter }

// Len returns the number of samples.
func (t *Trajectory) Len() int { return len(t.samples) }

// Sample returns sample i.
func (t *Trajectory) Sample(i int) core.NavigationSample {
	s := t.samples[i]
	s.Depth = clonePtr(s.Depth)
	s.Heading = clonePtr(s.Heading)
	s.Altitude = clonePtr(s.Altitude)
	return s
}

// Samples returns a copy of all samples.
func (t *Trajectory) Samples() []core.NavigationSample {
	out := make([]core.NavigationSample, len(t.samples))
	for i := range t.samples {
		out[i] = t.Sample(i)
	}
	return out
}

// Timestamp returns the timestamp of sample i.
func (t *Trajectory) Timestamp(i int) time.Duration { return t.samples[i].Timestamp }

// Position returns the position of sample i.
func (t *Trajectory) Position(i int) core.Position { return t.samples[i].Position() }

// Positions returns the positions of all samples.
func (t *Trajectory) Positions() []core.Position {
	out := make([]core.Position, len(t.samples))
	for i, s := range t.samples {
		out[i] = s.Position()
	}
	return out
}

// Connected reports whether samples i-1 and i are joined by a non-gap
// segment.
func (t *Trajectory) Connected(i int) bool {
	return i > 0 && i < len(t.samples) && t.samples[i].Validity != core.GapBoundary
}

// CumulativeDistance returns the distance travelled up to each sample.
func (t *Trajectory) CumulativeDistance() []float64 { return slices.Clone(t.cumulative) }

// DistanceAt returns the distance travelled up to sample i.
func (t *Trajectory) DistanceAt(i int) float64 { return t.cumulative[i] }

// Speed returns the speed in m/s arriving at sample i, or nil when undefined.
func (t *Trajectory) Speed(i int) *float64 { return clonePtr(t.speed[i]) }

// Speeds returns per-sample speeds.
func (t *Trajectory) Speeds() []*float64 { return clonePtrs(t.speed) }

// HeadingDelta returns the heading change in degrees arriving at sample i,
// or nil when undefined.
func (t *Trajectory) HeadingDelta(i int) *float64 { return clonePtr(t.headingDelta[i]) }

// HeadingDeltas returns per-sample heading changes.
func (t *Trajectory) HeadingDeltas() []*float64 { return clonePtrs(t.headingDelta) }

func clonePtrs(in []*float64) []*float64 {
	out := make([]*float64, len(in))
	for i, p := range in {
		out[i] = clonePtr(p)
	}
	return out
}

// Gaps returns the detected gaps in sample order.
func (t *Trajectory) Gaps() []core.Gap { return slices.Clone(t.gaps) }

// Rejected returns records excluded while loading.
func (t *Trajectory) Rejected() []core.RejectedRecord { return slices.Clone(t.rejected) }

// RejectedCount returns the number of excluded records.
func (t *Trajectory) RejectedCount() int { return len(t.rejected) }

// TotalDistance returns the distance travelled excluding gaps, in meters.
func (t *Trajectory) TotalDistance() float64 { return t.totalDistance }

// Start returns the first timestamp.
func (t *Trajectory) Start() time.Duration { return t.samples[0].Timestamp }

// Duration returns the time between the first and last sample.
func (t *Trajectory) Duration() time.Duration {
	return t.samples[len(t.samples)-1].Timestamp - t.samples[0].Timestamp
}

// MovingDuration returns the duration excluding gaps.
func (t *Trajectory) MovingDuration() time.Duration { return t.movingDuration }

// Bounds returns the bounding box of the path.
func (t *Trajectory) Bounds() core.BoundingBox { return t.bounds }

// Path returns the path as a lon/lat LineString. It is empty when the
// samples hold fewer than two distinct positions.
func (t *Trajectory) Path() geom.LineString { return t.path }

// Has reports whether any sample carries the given source.
func (t *Trajectory) Has(src core.Source) bool {
	for _, s := range t.samples {
		if s.Source == src {
			return true
		}
	}
	return false
}

// BySource returns the sub-trajectory of samples from src.
func (t *Trajectory) BySource(src core.Source) (*Trajectory, error) {
	var picked []core.NavigationSample
	for i, s := range t.samples {
		if s.Source == src {
			picked = append(picked, t.Sample(i))
		}
	}
	return New(t.sessionID, picked, Options{GapThreshold: t.gapAfter, ClockOrigin: t.clockOrigin})
}

// ResampleByDistance returns a trajectory that keeps the first sample, every
// sample at which at least interval meters have accumulated since the last
// kept one, and every sample that ends a gap.
func (t *Trajectory) ResampleByDistance(interval float64) (*Trajectory, error) {
	if interval <= 0 {
		return t, nil
	}
	picked := []core.NavigationSample{t.Sample(0)}
	boundaries := []bool{false}
	var acc float64
	for i := 1; i < len(t.samples); i++ {
		if !t.Connected(i) {
			picked = append(picked, t.Sample(i))
			boundaries = append(boundaries, true)
			acc = 0
			continue
		}
		acc += t.cumulative[i] - t.cumulative[i-1]
		if acc >= interval {
			picked = append(picked, t.Sample(i))
			boundaries = append(boundaries, false)
			acc = 0
		}
	}
	return New(t.sessionID, picked, Options{
		GapThreshold: t.gapAfter,
		ClockOrigin:  t.clockOrigin,
		Rejected:     t.rejected,
		boundaries:   boundaries,
	})
}
