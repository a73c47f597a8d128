// pkg/core/comparison.go
package core

import "time"

// AlignmentBasis names how an AlignedPair was matched.
type AlignmentBasis string

const (
	BasisTime     AlignmentBasis = "time"
	BasisDistance AlignmentBasis = "distance"
	BasisSpatial  AlignmentBasis = "spatial"
)

// AlignedPair maps sample IndexA of trajectory A to a point of trajectory B.
// When Interpolated is set, IndexB is the start of the segment of B that
// Matched lies on.
type AlignedPair struct {
	IndexA       int            `json:"index_a"`
	IndexB       int            `json:"index_b"`
	Interpolated bool           `json:"interpolated,omitempty"`
	Matched      Position       `json:"matched"`
	Basis        AlignmentBasis `json:"basis"`
	TimeGap      time.Duration  `json:"time_gap"`
	DistanceGap  float64        `json:"distance_gap"`
}

// ErrorStatistics summarises a series of values. A nil field could not be
// computed from the available data.
type ErrorStatistics struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	P95    *float64 `json:"p95,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	RMS    *float64 `json:"rms,omitempty"`
	StdDev *float64 `json:"std_dev,omitempty"`
}

// ComparisonResult is the outcome of comparing a candidate trajectory
// against a reference.
type ComparisonResult struct {
	Reference          string           `json:"reference"`
	Candidate          string           `json:"candidate"`
	Basis              AlignmentBasis   `json:"basis"`
	Pairs              []AlignedPair    `json:"pairs"`
	Errors             []float64        `json:"errors"`
	Statistics         ErrorStatistics  `json:"statistics"`
	// Depth and altitude differences are absolute, in meters.
	DepthDifference    *ErrorStatistics `json:"depth_difference,omitempty"`
	AltitudeDifference *ErrorStatistics `json:"altitude_difference,omitempty"`
	HeadingDifference  *ErrorStatistics `json:"heading_difference,omitempty"`
	Matched            int              `json:"matched"`
	Unmatched          int              `json:"unmatched"`
	UnmatchedIndices   []int            `json:"unmatched_indices,omitempty"`
	Rejected           int              `json:"rejected"`
	Coverage           float64          `json:"coverage"`
	Insufficient       []string         `json:"insufficient,omitempty"`
}

// ComparisonKey returns the payload key for a reference/candidate pair.
func ComparisonKey(reference, candidate string) string {
	return reference + "_vs_" + candidate
}
