// Package align pairs the samples of one trajectory with points of another.
//
// Three bases are supported. Time alignment pairs each sample of A with the
// nearest-in-time sample of B. Distance alignment pairs samples by distance
// travelled along each path. Spatial alignment pairs each sample of A with
// the geometrically closest point of B. Candidates that are equally good
// resolve to the lowest index of B.
package align

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/trajectory"
	"github.com/auvmap/analyzer/pkg/core"
)

// ErrToleranceExceeded reports samples left unmatched. It is informational.
var ErrToleranceExceeded = errors.New("alignment tolerance exceeded")

// TimeBasis selects the clock used by time alignment.
type TimeBasis string

const (
	// Elapsed compares time since each trajectory's first sample, for
	// repeated runs of a mission recorded at different times.
	Elapsed TimeBasis = "elapsed"
	// Absolute compares timestamps on the shared wall clock.
	Absolute TimeBasis = "absolute"
)

// Config controls alignment.
type Config struct {
	Mode              core.AlignmentBasis
	TimeBasis         TimeBasis
	TimeTolerance     time.Duration
	DistanceTolerance float64
	// SpatialTolerance of zero accepts any distance.
	SpatialTolerance float64
	// Interpolate matches points between samples of B in distance and
	// spatial modes. Segments that span a gap are never used.
	Interpolate bool
}

// DefaultConfig returns the default alignment settings.
func DefaultConfig() Config {
	return Config{
		Mode:              core.BasisTime,
		TimeBasis:         Elapsed,
		TimeTolerance:     5 * time.Second,
		DistanceTolerance: 5,
		Interpolate:       true,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Mode {
	case core.BasisTime, core.BasisDistance, core.BasisSpatial:
	default:
		return fmt.Errorf("unknown alignment mode %q", c.Mode)
	}
	switch c.TimeBasis {
	case Elapsed, Absolute:
	default:
		return fmt.Errorf("unknown time basis %q", c.TimeBasis)
	}
	if c.TimeTolerance < 0 || c.DistanceTolerance < 0 || c.SpatialTolerance < 0 {
		return errors.New("alignment tolerances must not be negative")
	}
	return nil
}

// Alignment is the correspondence from trajectory A to trajectory B.
type Alignment struct {
	Basis     core.AlignmentBasis
	Pairs     []core.AlignedPair
	Unmatched []int
	Total     int
}

// Coverage returns the matched fraction of A's samples.
func (a Alignment) Coverage() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(len(a.Pairs)) / float64(a.Total)
}

// Err returns an error wrapping ErrToleranceExceeded when samples were left
// unmatched, or nil.
func (a Alignment) Err() error {
	if len(a.Unmatched) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d samples unmatched: %w", len(a.Unmatched), a.Total, ErrToleranceExceeded)
}

// Align pairs every sample of a with a point of b. It does not modify its
// inputs.
func Align(a, b *trajectory.Trajectory, cfg Config) (Alignment, error) {
	if cfg.Mode == "" {
		cfg.Mode = core.BasisTime
	}
	if cfg.TimeBasis == "" {
		cfg.TimeBasis = Elapsed
	}
	if err := cfg.Validate(); err != nil {
		return Alignment{}, err
	}

	out := Alignment{Basis: cfg.Mode, Total: a.Len()}
	var match func(i int) (core.AlignedPair, bool)
	switch cfg.Mode {
	case core.BasisTime:
		match = timeMatcher(a, b, cfg)
	case core.BasisDistance:
		match = distanceMatcher(a, b, cfg)
	case core.BasisSpatial:
		match = spatialMatcher(a, b, cfg)
	}

	for i := 0; i < a.Len(); i++ {
		pair, ok := match(i)
		if !ok {
			out.Unmatched = append(out.Unmatched, i)
			continue
		}
		pair.IndexA = i
		pair.Basis = cfg.Mode
		out.Pairs = append(out.Pairs, pair)
	}
	return out, nil
}

// nearest returns the index in the non-decreasing keys closest to target.
// Ties and runs of equal keys resolve to the lowest index.
func nearest(keys []float64, target float64) int {
	j := sort.SearchFloat64s(keys, target)
	if j == len(keys) {
		j--
		for j > 0 && keys[j-1] == keys[j] {
			j--
		}
		return j
	}
	if j == 0 {
		return 0
	}
	lo := j - 1
	for lo > 0 && keys[lo-1] == keys[lo] {
		lo--
	}
	if target-keys[lo] <= keys[j]-target {
		return lo
	}
	return j
}

func timeMatcher(a, b *trajectory.Trajectory, cfg Config) func(int) (core.AlignedPair, bool) {
	keys := make([]float64, b.Len())
	for j := range keys {
		keys[j] = float64(b.Timestamp(j))
	}

	var shift time.Duration
	switch cfg.TimeBasis {
	case Elapsed:
		shift = b.Start() - a.Start()
	case Absolute:
		if !a.ClockOrigin().IsZero() && !b.ClockOrigin().IsZero() {
			shift = a.ClockOrigin().Sub(b.ClockOrigin())
		}
	}

	return func(i int) (core.AlignedPair, bool) {
		target := a.Timestamp(i) + shift
		j := nearest(keys, float64(target))
		gap := b.Timestamp(j) - target
		if gap.Abs() > cfg.TimeTolerance {
			return core.AlignedPair{}, false
		}
		return core.AlignedPair{
			IndexB:      j,
			Matched:     b.Position(j),
			TimeGap:     gap,
			DistanceGap: b.DistanceAt(j) - a.DistanceAt(i),
		}, true
	}
}

func distanceMatcher(a, b *trajectory.Trajectory, cfg Config) func(int) (core.AlignedPair, bool) {
	keys := b.CumulativeDistance()
	total := keys[len(keys)-1]

	return func(i int) (core.AlignedPair, bool) {
		s := a.DistanceAt(i)
		elapsedA := a.Timestamp(i) - a.Start()

		if cfg.Interpolate && s > 0 && s < total {
			j := sort.SearchFloat64s(keys, s)
			if keys[j] > s && keys[j-1] < s && b.Connected(j) {
				f := (s - keys[j-1]) / (keys[j] - keys[j-1])
				tB := b.Timestamp(j-1) + time.Duration(f*float64(b.Timestamp(j)-b.Timestamp(j-1)))
				return core.AlignedPair{
					IndexB:       j - 1,
					Interpolated: true,
					Matched:      geo.Interpolate(b.Position(j-1), b.Position(j), f),
					TimeGap:      (tB - b.Start()) - elapsedA,
				}, true
			}
		}

		j := nearest(keys, s)
		residual := keys[j] - s
		if math.Abs(residual) > cfg.DistanceTolerance {
			return core.AlignedPair{}, false
		}
		return core.AlignedPair{
			IndexB:      j,
			Matched:     b.Position(j),
			TimeGap:     (b.Timestamp(j) - b.Start()) - elapsedA,
			DistanceGap: residual,
		}, true
	}
}

func spatialMatcher(a, b *trajectory.Trajectory, cfg Config) func(int) (core.AlignedPair, bool) {
	positions := b.Positions()

	return func(i int) (core.AlignedPair, bool) {
		p := a.Position(i)
		best := core.AlignedPair{IndexB: -1}
		bestDist := 0.0
		consider := func(pair core.AlignedPair) {
			d := geo.Distance(p, pair.Matched)
			if best.IndexB < 0 || d < bestDist {
				best, bestDist = pair, d
			}
		}

		for k, pos := range positions {
			consider(core.AlignedPair{IndexB: k, Matched: pos})
			if cfg.Interpolate && b.Connected(k+1) {
				f := geo.ProjectOntoSegment(p, pos, positions[k+1])
				if f > 0 && f < 1 {
					consider(core.AlignedPair{
						IndexB:       k,
						Interpolated: true,
						Matched:      geo.Interpolate(pos, positions[k+1], f),
					})
				}
			}
		}

		if cfg.SpatialTolerance > 0 && bestDist > cfg.SpatialTolerance {
			return core.AlignedPair{}, false
		}
		best.DistanceGap = bestDist
		if !best.Interpolated {
			best.TimeGap = (b.Timestamp(best.IndexB) - b.Start()) - (a.Timestamp(i) - a.Start())
		}
		return best, true
	}
}
