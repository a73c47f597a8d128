// pkg/core/sample.go
package core

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies how a position was obtained.
type Source uint8

const (
	SourceUnknown Source = iota
	SourceFix
	SourceDeadReckoned
)

func (s Source) String() string {
	switch s {
	case SourceFix:
		return "fix"
	case SourceDeadReckoned:
		return "dead_reckoned"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	*s = ParseSource(string(b))
	return nil
}

// ParseSource maps a log label to a Source. Unrecognised labels are SourceUnknown.
func ParseSource(label string) Source {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "fix", "gps", "usbl", "gnss":
		return SourceFix
	case "dr", "dvl", "ins", "dead_reckoned", "deadreckoned", "dead-reckoned":
		return SourceDeadReckoned
	default:
		return SourceUnknown
	}
}

// Validity is the tagged state of a navigation record.
type Validity uint8

const (
	Valid Validity = iota
	// GapBoundary marks a valid sample whose predecessor is further away in
	// time than the gap threshold.
	GapBoundary
	InvalidMissingField
	InvalidMalformed
	InvalidOutOfRange
)

// IsValid reports whether the sample carries a usable position.
func (v Validity) IsValid() bool {
	return v == Valid || v == GapBoundary
}

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case GapBoundary:
		return "gap_boundary"
	case InvalidMissingField:
		return "invalid_missing_field"
	case InvalidMalformed:
		return "invalid_malformed"
	case InvalidOutOfRange:
		return "invalid_out_of_range"
	default:
		return fmt.Sprintf("validity(%d)", uint8(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Validity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Validity) UnmarshalText(b []byte) error {
	for _, c := range []Validity{Valid, GapBoundary, InvalidMissingField, InvalidMalformed, InvalidOutOfRange} {
		if c.String() == string(b) {
			*v = c
			return nil
		}
	}
	return fmt.Errorf("unknown validity %q", string(b))
}

// Position is a WGS84 latitude/longitude pair in degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NavigationSample is one timestamped navigation record.
// Timestamp is the offset from the owning session's clock origin.
type NavigationSample struct {
	Timestamp time.Duration `json:"timestamp"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Depth     *float64      `json:"depth,omitempty"`
	Heading   *float64      `json:"heading,omitempty"`
	Altitude  *float64      `json:"altitude,omitempty"`
	Source    Source        `json:"source"`
	Validity  Validity      `json:"validity"`
}

// Position returns the sample's latitude/longitude.
func (s NavigationSample) Position() Position {
	return Position{Latitude: s.Latitude, Longitude: s.Longitude}
}

// RejectedRecord describes a record excluded from a trajectory.
type RejectedRecord struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Validity Validity `json:"validity"`
	Reason   string   `json:"reason"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
