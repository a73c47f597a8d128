package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/auvmap/analyzer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

1
00:00:00.000 --> 00:00:01.000
Survey Alpha
Thu Sep 11 20:03:06 2025 UTC
Heading: 90.0°
Latitude: 42.123456
Longitude: -8.654321
Depth: 2.5 m
Altitude: 10.1 m

2
00:00:01.500 --> 00:00:02.000
Survey Alpha
Thu Sep 11 20:03:07 2025 UTC
Heading: 91.0°
Latitude: abc
Longitude: -8.654300
Depth: 2.6 m

3
00:00:02.250 --> 00:00:03.000
Survey Alpha
Thu Sep 11 20:03:08 2025 UTC
Heading: 92.0°
Latitude: 42.123500
Longitude: -8.654200
Depth: n/a
Source: DVL

NOTE this block is ignored
`

func TestParseVTT(t *testing.T) {
	p := newTestParser()

	records, err := p.ParseVTT(strings.NewReader(sampleVTT), "videos/a.vtt")
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.True(t, first.Valid())
	assert.Equal(t, "videos/a.vtt", first.File)
	assert.Equal(t, 4, first.Line)
	assert.Equal(t, "Survey Alpha", first.Mission)
	assert.Equal(t, time.Duration(0), first.Elapsed)
	assert.Equal(t, time.Date(2025, 9, 11, 20, 3, 6, 0, time.UTC), first.Absolute)
	assert.InDelta(t, 42.123456, first.Sample.Latitude, 1e-9)
	assert.InDelta(t, -8.654321, first.Sample.Longitude, 1e-9)
	require.NotNil(t, first.Sample.Depth)
	assert.InDelta(t, 2.5, *first.Sample.Depth, 1e-9)
	require.NotNil(t, first.Sample.Heading)
	assert.InDelta(t, 90.0, *first.Sample.Heading, 1e-9)
	require.NotNil(t, first.Sample.Altitude)
	assert.Equal(t, core.SourceUnknown, first.Sample.Source)

	second := records[1]
	assert.False(t, second.Valid())
	assert.Equal(t, core.InvalidMalformed, second.Sample.Validity)
	assert.Contains(t, second.Reason, "latitude")

	third := records[2]
	assert.True(t, third.Valid())
	assert.Equal(t, 2250*time.Millisecond, third.Elapsed)
	assert.Equal(t, time.Date(2025, 9, 11, 20, 3, 8, 250_000_000, time.UTC), third.Absolute)
	assert.Nil(t, third.Sample.Depth, "unparseable optional field is absent")
	assert.Equal(t, core.SourceDeadReckoned, third.Sample.Source)
}

func TestParseVTT_MissingLongitude(t *testing.T) {
	p := newTestParser()
	in := "00:00:01.000 --> 00:00:02.000\nMission\nLatitude: 1.0\n"

	records, err := p.ParseVTT(strings.NewReader(in), "x.vtt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.InvalidMissingField, records[0].Sample.Validity)
	assert.True(t, records[0].HasTime)
}

func TestParseVTT_OutOfRange(t *testing.T) {
	p := newTestParser()
	in := "00:00:01.000 --> 00:00:02.000\nLatitude: 95\nLongitude: 1\n"

	records, err := p.ParseVTT(strings.NewReader(in), "x.vtt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.InvalidOutOfRange, records[0].Sample.Validity)
}

func TestParseVTT_WithoutDate(t *testing.T) {
	p := newTestParser()
	in := "00:01.000 --> 00:02.000\nLatitude: 1\nLongitude: 2\n\n00:03.500 --> 00:04.000\nLatitude: 1.1\nLongitude: 2.1\n"

	records, err := p.ParseVTT(strings.NewReader(in), "x.vtt")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Absolute.IsZero())
	assert.Equal(t, time.Second, records[0].Elapsed)
	assert.Equal(t, 3500*time.Millisecond, records[1].Elapsed)
}

func TestParseVTT_CRLFAndBOM(t *testing.T) {
	p := newTestParser()
	in := "\ufeffWEBVTT\r\n\r\n00:00:00.000 --> 00:00:01.000\r\nLatitude: 1\r\nLongitude: 2\r\n"

	records, err := p.ParseVTT(strings.NewReader(in), "x.vtt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Valid())
}

func TestParseVTT_BadTiming(t *testing.T) {
	p := newTestParser()
	in := "1\nxx:yy --> 00:00:01.000\nLatitude: 1\nLongitude: 2\n"

	records, err := p.ParseVTT(strings.NewReader(in), "x.vtt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasTime)
	assert.False(t, records[0].Valid())
	assert.Equal(t, core.InvalidMalformed, records[0].Rejected().Validity)
}

func TestParseCueOffset(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"hours", "01:02:03.004 --> 01:02:04.000", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, false},
		{"no hours", "02:03.004 --> 02:04.000", 2*time.Minute + 3*time.Second + 4*time.Millisecond, false},
		{"bad seconds", "00:00:75.000 --> 00:01:00.000", 0, true},
		{"garbage", "not a timing line", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCueOffset(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
