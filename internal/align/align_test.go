package align

import (
	"math/rand"
	"testing"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/internal/trajectory"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t time.Duration, lat, lon float64) core.NavigationSample {
	return core.NavigationSample{Timestamp: t, Latitude: lat, Longitude: lon}
}

func build(t *testing.T, id string, samples ...core.NavigationSample) *trajectory.Trajectory {
	t.Helper()
	tr, err := trajectory.New(id, samples, trajectory.Options{GapThreshold: time.Minute})
	require.NoError(t, err)
	return tr
}

func timeConfig(tol time.Duration) Config {
	cfg := DefaultConfig()
	cfg.TimeTolerance = tol
	return cfg
}

func TestAlign_TimeShiftedCopy(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(10*time.Second, 0, 0.001))
	b := build(t, "b", sample(5*time.Second, 0, 0), sample(15*time.Second, 0, 0.001))

	al, err := Align(a, b, timeConfig(10*time.Second))
	require.NoError(t, err)

	require.Len(t, al.Pairs, 2)
	assert.Empty(t, al.Unmatched)
	assert.Equal(t, 1.0, al.Coverage())
	assert.NoError(t, al.Err())
	for i, p := range al.Pairs {
		assert.Equal(t, i, p.IndexA)
		assert.Equal(t, i, p.IndexB)
		assert.Equal(t, core.BasisTime, p.Basis)
		assert.Equal(t, time.Duration(0), p.TimeGap)
		assert.InDelta(t, 0, geo.Distance(a.Position(i), p.Matched), 1e-9)
	}
}

func TestAlign_AbsoluteBasisUsesClockOrigins(t *testing.T) {
	origin := time.Date(2025, 9, 11, 20, 0, 0, 0, time.UTC)
	a, err := trajectory.New("a", []core.NavigationSample{sample(0, 0, 0), sample(10*time.Second, 0, 0.001)},
		trajectory.Options{ClockOrigin: origin})
	require.NoError(t, err)
	b, err := trajectory.New("b", []core.NavigationSample{sample(0, 1, 1), sample(10*time.Second, 2, 2)},
		trajectory.Options{ClockOrigin: origin.Add(10 * time.Second)})
	require.NoError(t, err)

	cfg := timeConfig(time.Second)
	cfg.TimeBasis = Absolute
	al, err := Align(a, b, cfg)
	require.NoError(t, err)

	// a's t=10s is b's t=0s on the wall clock
	require.Len(t, al.Pairs, 1)
	assert.Equal(t, 1, al.Pairs[0].IndexA)
	assert.Equal(t, 0, al.Pairs[0].IndexB)
	assert.Equal(t, []int{0}, al.Unmatched)
}

func TestAlign_TimeTolerance(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(10*time.Second, 0, 0), sample(40*time.Second, 0, 0))
	b := build(t, "b", sample(0, 0, 0), sample(12*time.Second, 0, 0), sample(13*time.Second, 0, 0))

	al, err := Align(a, b, timeConfig(2*time.Second))
	require.NoError(t, err)

	require.Len(t, al.Pairs, 2)
	assert.Equal(t, []int{2}, al.Unmatched)
	assert.Equal(t, 3, al.Total)
	assert.InDelta(t, 2.0/3.0, al.Coverage(), 1e-12)
	assert.ErrorIs(t, al.Err(), ErrToleranceExceeded)
	assert.Equal(t, 2*time.Second, al.Pairs[1].TimeGap)
}

func TestAlign_TimeGapNeverExceedsTolerance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	mk := func(id string) *trajectory.Trajectory {
		var s []core.NavigationSample
		ts := time.Duration(0)
		for i := 0; i < 300; i++ {
			ts += time.Duration(rng.Intn(8000)) * time.Millisecond
			s = append(s, sample(ts, rng.Float64(), rng.Float64()))
		}
		return build(t, id, s...)
	}
	a, b := mk("a"), mk("b")

	for _, tol := range []time.Duration{0, 500 * time.Millisecond, 2 * time.Second, 10 * time.Second} {
		al, err := Align(a, b, timeConfig(tol))
		require.NoError(t, err)
		assert.Equal(t, a.Len(), len(al.Pairs)+len(al.Unmatched))
		for _, p := range al.Pairs {
			assert.LessOrEqual(t, p.TimeGap.Abs(), tol)
		}
	}
}

func TestAlign_TimeTieBreaksToEarlierIndex(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(5*time.Second, 0, 0))
	// a's second sample is 5s after start; b has candidates at 4s and 6s
	b := build(t, "b", sample(0, 0, 0), sample(4*time.Second, 1, 1), sample(6*time.Second, 2, 2))

	al, err := Align(a, b, timeConfig(time.Second))
	require.NoError(t, err)
	require.Len(t, al.Pairs, 2)
	assert.Equal(t, 1, al.Pairs[1].IndexB)
}

func TestAlign_TimeDuplicateTimestampsPickFirst(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(3*time.Second, 0, 0))
	b := build(t, "b", sample(0, 0, 0), sample(3*time.Second, 1, 1), sample(3*time.Second, 2, 2))

	al, err := Align(a, b, timeConfig(time.Second))
	require.NoError(t, err)
	require.Len(t, al.Pairs, 2)
	assert.Equal(t, 1, al.Pairs[1].IndexB)
	assert.Equal(t, 1.0, al.Pairs[1].Matched.Latitude)
}

func TestAlign_DistanceInterpolates(t *testing.T) {
	step := 0.001
	// clocks unrelated; only distance travelled matters
	a := build(t, "a", sample(0, 0, 0), sample(time.Second, 0, step/4), sample(2*time.Second, 0, 1.25*step))
	b := build(t, "b", sample(100*time.Second, 0, 0), sample(120*time.Second, 0, step), sample(140*time.Second, 0, 2*step))

	cfg := DefaultConfig()
	cfg.Mode = core.BasisDistance
	cfg.DistanceTolerance = 1
	al, err := Align(a, b, cfg)
	require.NoError(t, err)

	require.Len(t, al.Pairs, 3)
	assert.False(t, al.Pairs[0].Interpolated)
	assert.Equal(t, 0, al.Pairs[0].IndexB)
	assert.True(t, al.Pairs[1].Interpolated)
	assert.Equal(t, 0, al.Pairs[1].IndexB)
	assert.True(t, al.Pairs[2].Interpolated)
	assert.Equal(t, 1, al.Pairs[2].IndexB)

	for _, p := range al.Pairs {
		assert.Equal(t, core.BasisDistance, p.Basis)
		assert.InDelta(t, 0, geo.Distance(a.Position(p.IndexA), p.Matched), 1e-3)
	}
}

func TestAlign_DistanceSnapsWithoutInterpolation(t *testing.T) {
	step := 0.001
	a := build(t, "a", sample(0, 0, 0), sample(time.Second, 0, step*0.4), sample(2*time.Second, 0, step*0.7))
	b := build(t, "b", sample(0, 0, 0), sample(time.Second, 0, step))

	cfg := DefaultConfig()
	cfg.Mode = core.BasisDistance
	cfg.Interpolate = false
	cfg.DistanceTolerance = 100
	al, err := Align(a, b, cfg)
	require.NoError(t, err)

	require.Len(t, al.Pairs, 3)
	for _, p := range al.Pairs {
		assert.False(t, p.Interpolated)
	}
	assert.Equal(t, 0, al.Pairs[1].IndexB, "0.4 of a step snaps back")
	assert.InDelta(t, -geo.Haversine(0, 0, 0, step*0.4), al.Pairs[1].DistanceGap, 1e-6)
	assert.Equal(t, 1, al.Pairs[2].IndexB, "0.7 of a step snaps forward")
	assert.InDelta(t, geo.Haversine(0, 0, 0, step*0.3), al.Pairs[2].DistanceGap, 1e-6)
}

func TestAlign_DistanceBeyondEndIsUnmatched(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(time.Second, 0, 0.001), sample(2*time.Second, 0, 0.01))
	b := build(t, "b", sample(0, 0, 0), sample(time.Second, 0, 0.001))

	cfg := DefaultConfig()
	cfg.Mode = core.BasisDistance
	cfg.DistanceTolerance = 5
	al, err := Align(a, b, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, al.Unmatched)
}

func TestAlign_DistanceNeverInterpolatesAcrossGap(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(time.Second, 0, 0.0015))
	// b's 0.001→0.002 step spans a gap, so it adds no distance
	b := build(t, "b", sample(0, 0, 0), sample(time.Second, 0, 0.001), sample(2*time.Hour, 0, 0.002), sample(2*time.Hour+time.Second, 0, 0.003))

	cfg := DefaultConfig()
	cfg.Mode = core.BasisDistance
	cfg.DistanceTolerance = 1000
	al, err := Align(a, b, cfg)
	require.NoError(t, err)
	require.Len(t, al.Pairs, 2)
	p := al.Pairs[1]
	if p.Interpolated {
		assert.True(t, b.Connected(p.IndexB+1))
	}
}

func TestAlign_Spatial(t *testing.T) {
	// a runs parallel to b, 0.0001° (~11 m) north
	a := build(t, "a", sample(0, 0.0001, 0.0004), sample(time.Second, 0.0001, 0.0016))
	b := build(t, "b", sample(0, 0, 0), sample(time.Second, 0, 0.001), sample(2*time.Second, 0, 0.002))

	cfg := DefaultConfig()
	cfg.Mode = core.BasisSpatial
	al, err := Align(a, b, cfg)
	require.NoError(t, err)
	require.Len(t, al.Pairs, 2)

	want := geo.Haversine(0, 0, 0.0001, 0)
	for _, p := range al.Pairs {
		assert.True(t, p.Interpolated)
		assert.InDelta(t, want, p.DistanceGap, 0.01)
		assert.InDelta(t, want, geo.Distance(a.Position(p.IndexA), p.Matched), 0.01)
	}

	cfg.Interpolate = false
	al, err = Align(a, b, cfg)
	require.NoError(t, err)
	require.Len(t, al.Pairs, 2)
	assert.False(t, al.Pairs[0].Interpolated)
	assert.Equal(t, 0, al.Pairs[0].IndexB)
	assert.Equal(t, 2, al.Pairs[1].IndexB)

	cfg.SpatialTolerance = 1
	al, err = Align(a, b, cfg)
	require.NoError(t, err)
	assert.Empty(t, al.Pairs)
	assert.Equal(t, []int{0, 1}, al.Unmatched)
}

func TestAlign_InvalidConfig(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0))
	_, err := Align(a, a, Config{Mode: "sideways"})
	assert.Error(t, err)

	_, err = Align(a, a, Config{TimeTolerance: -time.Second})
	assert.Error(t, err)
}

func TestAlign_DoesNotMutateInputs(t *testing.T) {
	a := build(t, "a", sample(0, 0, 0), sample(time.Second, 0, 0.001))
	b := build(t, "b", sample(0, 0, 0), sample(time.Second, 0, 0.001))
	before := b.Samples()

	_, err := Align(a, b, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, before, b.Samples())
}

func TestNearest(t *testing.T) {
	keys := []float64{0, 2, 2, 2, 6}
	tests := []struct {
		target float64
		want   int
	}{
		{-1, 0},
		{0, 0},
		{1, 0},
		{1.5, 1},
		{2, 1},
		{3.9, 1},
		{4, 1},
		{4.1, 4},
		{10, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nearest(keys, tt.target), "target %v", tt.target)
	}
	assert.Equal(t, 1, nearest([]float64{0, 5, 5}, 9))
}
