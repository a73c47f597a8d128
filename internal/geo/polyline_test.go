package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/auvmap/analyzer/pkg/core"
)

func TestLineString_RoundTrip(t *testing.T) {
	in := []core.Position{
		{Latitude: 42.1, Longitude: -8.1},
		{Latitude: 42.2, Longitude: -8.2},
		{Latitude: 42.3, Longitude: -8.15},
	}

	ls, err := LineString(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.IsEmpty() {
		t.Fatal("expected non-empty linestring")
	}
	seq := ls.Coordinates()
	if seq.Length() != 3 {
		t.Fatalf("expected 3 points, got %d", seq.Length())
	}
	if seq.GetXY(0).X != -8.1 || seq.GetXY(0).Y != 42.1 {
		t.Errorf("expected first vertex lon/lat (-8.1,42.1), got %v", seq.GetXY(0))
	}

	out := Positions(ls)
	if len(out) != len(in) {
		t.Fatalf("expected %d positions, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("position %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestLineString_FewerThanTwoDistinct(t *testing.T) {
	tests := []struct {
		name      string
		positions []core.Position
	}{
		{"none", nil},
		{"single", []core.Position{{Latitude: 1, Longitude: 1}}},
		{"holding station", []core.Position{
			{Latitude: 42.1, Longitude: -8.6},
			{Latitude: 42.1, Longitude: -8.6},
			{Latitude: 42.1, Longitude: -8.6},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, err := LineString(tt.positions)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ls.IsEmpty() {
				t.Error("expected empty linestring")
			}
			if got := Positions(ls); len(got) != 0 {
				t.Errorf("expected no positions, got %d", len(got))
			}
		})
	}
}

func TestLineString_RepeatedVertices(t *testing.T) {
	ls, err := LineString([]core.Position{
		{Latitude: 42.1, Longitude: -8.6},
		{Latitude: 42.1, Longitude: -8.6},
		{Latitude: 42.2, Longitude: -8.6},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.Coordinates().Length() != 3 {
		t.Errorf("expected 3 vertices, got %d", ls.Coordinates().Length())
	}
}

func TestPoint(t *testing.T) {
	pt, err := Point(core.Position{Latitude: 42.1, Longitude: -8.6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xy, ok := pt.XY()
	if !ok || xy.X != -8.6 || xy.Y != 42.1 {
		t.Errorf("expected lon/lat (-8.6,42.1), got %v (ok=%v)", xy, ok)
	}

	if _, err := Point(core.Position{Latitude: math.NaN()}); err == nil {
		t.Error("expected error for NaN latitude")
	}
}

func TestBounds(t *testing.T) {
	box, err := Bounds([]core.Position{
		{Latitude: 42.1, Longitude: -8.3},
		{Latitude: 42.4, Longitude: -8.1},
		{Latitude: 42.2, Longitude: -8.5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.BoundingBox{MinLatitude: 42.1, MinLongitude: -8.5, MaxLatitude: 42.4, MaxLongitude: -8.1}
	if box != want {
		t.Errorf("expected %+v, got %+v", want, box)
	}
}

func TestBounds_SinglePoint(t *testing.T) {
	box, err := Bounds([]core.Position{{Latitude: 1, Longitude: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if box.MinLatitude != 1 || box.MaxLatitude != 1 || box.MinLongitude != 2 || box.MaxLongitude != 2 {
		t.Errorf("expected degenerate box at (1,2), got %+v", box)
	}
}

func TestBounds_Empty(t *testing.T) {
	if _, err := Bounds(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestBounds_NaN(t *testing.T) {
	_, err := Bounds([]core.Position{{Latitude: 1, Longitude: 1}, {Latitude: math.NaN(), Longitude: 1}})
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestPathLength(t *testing.T) {
	got := PathLength([]core.Position{{}, {Longitude: 0.001}, {Longitude: 0.002}})
	want := 2 * Haversine(0, 0, 0, 0.001)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("expected %f, got %f", want, got)
	}
}
