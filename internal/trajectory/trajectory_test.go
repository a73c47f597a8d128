package trajectory

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t time.Duration, lat, lon float64) core.NavigationSample {
	return core.NavigationSample{Timestamp: t, Latitude: lat, Longitude: lon}
}

func TestNew_Empty(t *testing.T) {
	_, err := New("s1", nil, Options{})
	require.ErrorIs(t, err, ErrEmptyTrajectory)

	_, err = New("s1", []core.NavigationSample{{Validity: core.InvalidMalformed}}, Options{})
	require.ErrorIs(t, err, ErrEmptyTrajectory)
	assert.Contains(t, err.Error(), "s1")
}

func TestNew_FiltersInvalidAndCountsThem(t *testing.T) {
	in := []core.NavigationSample{
		sample(0, 0, 0),
		{Timestamp: time.Second, Validity: core.InvalidMissingField},
		sample(2*time.Second, 0, 0.0001),
	}
	tr, err := New("s1", in, Options{Rejected: []core.RejectedRecord{{File: "a.vtt", Line: 3}}})
	require.NoError(t, err)

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 2, tr.RejectedCount())
	rejected := tr.Rejected()
	assert.Equal(t, "a.vtt", rejected[0].File)
	assert.Equal(t, core.InvalidMissingField, rejected[1].Validity)
}

func TestNew_SortsStable(t *testing.T) {
	in := []core.NavigationSample{
		sample(2*time.Second, 0, 0.002),
		sample(0, 0, 0),
		sample(time.Second, 1, 1),
		sample(time.Second, 2, 2),
	}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), tr.Timestamp(0))
	assert.Equal(t, 1.0, tr.Position(1).Latitude)
	assert.Equal(t, 2.0, tr.Position(2).Latitude, "equal timestamps keep input order")
	assert.Equal(t, 2*time.Second, tr.Timestamp(3))
}

func TestCumulativeDistance_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var in []core.NavigationSample
	ts := time.Duration(0)
	for i := 0; i < 200; i++ {
		ts += time.Duration(rng.Intn(15000)) * time.Millisecond
		in = append(in, sample(ts, 42+rng.Float64()*0.01, -8+rng.Float64()*0.01))
	}
	tr, err := New("s1", in, Options{GapThreshold: 10 * time.Second})
	require.NoError(t, err)

	cum := tr.CumulativeDistance()
	require.Len(t, cum, tr.Len())
	assert.Equal(t, 0.0, cum[0])
	for i := 1; i < len(cum); i++ {
		assert.GreaterOrEqual(t, cum[i], cum[i-1], "index %d", i)
		if !tr.Connected(i) {
			assert.Equal(t, cum[i-1], cum[i], "gap segment %d adds no distance", i)
		}
	}
	assert.Equal(t, cum[len(cum)-1], tr.TotalDistance())
}

func TestGapExcludedFromDistance(t *testing.T) {
	in := []core.NavigationSample{
		sample(0, 0, 0),
		sample(time.Second, 0, 0.001),
		sample(60*time.Second, 0, 0.1), // sensor dropout
		sample(61*time.Second, 0, 0.101),
	}
	tr, err := New("s1", in, Options{GapThreshold: 10 * time.Second})
	require.NoError(t, err)

	step := geo.Haversine(0, 0, 0, 0.001)
	assert.InDelta(t, 2*step, tr.TotalDistance(), 1e-6)

	gaps := tr.Gaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, 1, gaps[0].StartIndex)
	assert.Equal(t, 2, gaps[0].EndIndex)
	assert.Equal(t, 59*time.Second, gaps[0].Duration)
	assert.Greater(t, gaps[0].Distance, 10000.0)

	assert.Equal(t, core.GapBoundary, tr.Sample(2).Validity)
	assert.Equal(t, core.Valid, tr.Sample(3).Validity)
	assert.False(t, tr.Connected(2))
	assert.True(t, tr.Connected(3))
	assert.False(t, tr.Connected(0))

	assert.Nil(t, tr.Speed(0))
	assert.NotNil(t, tr.Speed(1))
	assert.Nil(t, tr.Speed(2), "speed is undefined across a gap")
	assert.NotNil(t, tr.Speed(3))

	assert.Equal(t, 61*time.Second, tr.Duration())
	assert.Equal(t, 2*time.Second, tr.MovingDuration())
}

func TestGapDetectionDisabled(t *testing.T) {
	in := []core.NavigationSample{sample(0, 0, 0), sample(time.Hour, 0, 0.001)}
	tr, err := New("s1", in, Options{GapThreshold: -1})
	require.NoError(t, err)
	assert.Empty(t, tr.Gaps())
	assert.Greater(t, tr.TotalDistance(), 0.0)
}

func TestSpeed(t *testing.T) {
	in := []core.NavigationSample{sample(0, 0, 0), sample(10*time.Second, 0, 0.001), sample(10*time.Second, 0, 0.002)}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	require.NotNil(t, tr.Speed(1))
	assert.InDelta(t, geo.Haversine(0, 0, 0, 0.001)/10, *tr.Speed(1), 1e-9)
	assert.Nil(t, tr.Speed(2), "zero time step has no speed")
}

func TestHeadingDelta_FromLoggedHeading(t *testing.T) {
	h := func(v float64) *float64 { return &v }
	in := []core.NavigationSample{
		{Timestamp: 0, Heading: h(350)},
		{Timestamp: time.Second, Longitude: 0.0001, Heading: h(10)},
		{Timestamp: 2 * time.Second, Longitude: 0.0002},
	}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.Nil(t, tr.HeadingDelta(0))
	require.NotNil(t, tr.HeadingDelta(1))
	assert.InDelta(t, 20, *tr.HeadingDelta(1), 1e-9)
	// Heading missing on sample 2; the course over ground has not changed.
	require.NotNil(t, tr.HeadingDelta(2))
	assert.InDelta(t, 0, *tr.HeadingDelta(2), 1e-6)
}

func TestHeadingDelta_FromCourse(t *testing.T) {
	in := []core.NavigationSample{
		sample(0, 0, 0),
		sample(time.Second, 0, 0.001),     // east
		sample(2*time.Second, 0.001, 0.001), // north
	}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.Nil(t, tr.HeadingDelta(1), "no prior course")
	require.NotNil(t, tr.HeadingDelta(2))
	assert.InDelta(t, -90, *tr.HeadingDelta(2), 0.01)
}

func TestImmutableAccessors(t *testing.T) {
	d := 5.0
	in := []core.NavigationSample{{Timestamp: 0, Depth: &d}, sample(time.Second, 0, 0.001)}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	d = 99
	got := tr.Sample(0)
	require.NotNil(t, got.Depth)
	assert.Equal(t, 5.0, *got.Depth, "caller mutation does not leak in")

	*got.Depth = 42
	assert.Equal(t, 5.0, *tr.Sample(0).Depth, "returned copies do not leak out")

	cum := tr.CumulativeDistance()
	cum[1] = -1
	assert.Greater(t, tr.DistanceAt(1), 0.0)
}

func TestBoundsAndPath(t *testing.T) {
	in := []core.NavigationSample{sample(0, 42.1, -8.3), sample(time.Second, 42.2, -8.2), sample(2*time.Second, 42.15, -8.4)}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.Equal(t, core.BoundingBox{MinLatitude: 42.1, MinLongitude: -8.4, MaxLatitude: 42.2, MaxLongitude: -8.2}, tr.Bounds())
	assert.Equal(t, 3, tr.Path().Coordinates().Length())
}

func TestSingleSample(t *testing.T) {
	tr, err := New("s1", []core.NavigationSample{sample(5*time.Second, 1, 2)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.TotalDistance())
	assert.Equal(t, time.Duration(0), tr.Duration())
	assert.True(t, tr.Path().IsEmpty())
	assert.Equal(t, 1.0, tr.Bounds().MinLatitude)
}

func TestHoldingStation(t *testing.T) {
	in := []core.NavigationSample{
		sample(0, 42.1, -8.6),
		sample(time.Second, 42.1, -8.6),
		sample(2*time.Second, 42.1, -8.6),
	}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, 0.0, tr.TotalDistance())
	assert.Equal(t, 2*time.Second, tr.Duration())
	assert.True(t, tr.Path().IsEmpty())
	assert.Equal(t, core.BoundingBox{MinLatitude: 42.1, MinLongitude: -8.6, MaxLatitude: 42.1, MaxLongitude: -8.6}, tr.Bounds())
	require.NotNil(t, tr.Speed(1))
	assert.Equal(t, 0.0, *tr.Speed(1))
}

func TestBySource(t *testing.T) {
	in := []core.NavigationSample{
		{Timestamp: 0, Source: core.SourceFix},
		{Timestamp: time.Second, Source: core.SourceDeadReckoned},
		{Timestamp: 2 * time.Second, Latitude: 0.001, Source: core.SourceFix},
	}
	tr, err := New("s1", in, Options{})
	require.NoError(t, err)

	assert.True(t, tr.Has(core.SourceFix))
	assert.False(t, tr.Has(core.SourceUnknown))

	fixes, err := tr.BySource(core.SourceFix)
	require.NoError(t, err)
	assert.Equal(t, 2, fixes.Len())

	_, err = tr.BySource(core.SourceUnknown)
	assert.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestResampleByDistance(t *testing.T) {
	var in []core.NavigationSample
	// ~0.11 m steps along the equator
	for i := 0; i < 50; i++ {
		in = append(in, sample(time.Duration(i)*time.Second, 0, float64(i)*0.000001))
	}
	tr, err := New("s1", in, Options{GapThreshold: time.Minute})
	require.NoError(t, err)

	rs, err := tr.ResampleByDistance(0.5)
	require.NoError(t, err)
	assert.Less(t, rs.Len(), tr.Len())
	assert.Equal(t, tr.Position(0), rs.Position(0))
	for i := 1; i < rs.Len(); i++ {
		assert.GreaterOrEqual(t, geo.Distance(rs.Position(i-1), rs.Position(i)), 0.5)
	}

	same, err := tr.ResampleByDistance(0)
	require.NoError(t, err)
	assert.Same(t, tr, same)
}

func TestResampleByDistance_KeepsGaps(t *testing.T) {
	in := []core.NavigationSample{
		sample(0, 0, 0),
		sample(time.Second, 0, 0.000001),
		sample(30*time.Second, 0, 0.000002),
		sample(31*time.Second, 0, 0.01),
		// stationary for longer than the gap threshold, but connected
		sample(40*time.Second, 0, 0.01),
		sample(49*time.Second, 0, 0.01),
		sample(50*time.Second, 0, 0.02),
	}
	tr, err := New("s1", in, Options{GapThreshold: 10 * time.Second})
	require.NoError(t, err)
	require.Len(t, tr.Gaps(), 1)

	rs, err := tr.ResampleByDistance(100)
	require.NoError(t, err)
	// first sample, the gap end, and the two long steps
	require.Equal(t, 4, rs.Len())
	assert.Len(t, rs.Gaps(), 1, "no spurious gap from dropped stationary samples")
	assert.Equal(t, 30*time.Second, rs.Timestamp(1))
	assert.False(t, math.IsNaN(rs.TotalDistance()))
}
