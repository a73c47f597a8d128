// Package stats summarises error series.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/auvmap/analyzer/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a statistic needs more values than
// were available.
var ErrInsufficientData = errors.New("insufficient data")

// Statistic names reported in InsufficientDataError.Fields.
const (
	FieldMean   = "mean"
	FieldMedian = "median"
	FieldP95    = "p95"
	FieldMax    = "max"
	FieldMin    = "min"
	FieldRMS    = "rms"
	FieldStdDev = "std_dev"
)

// InsufficientDataError lists the statistics that could not be computed.
type InsufficientDataError struct {
	Count  int
	Fields []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d value(s), cannot compute %s", e.Count, strings.Join(e.Fields, ", "))
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// Summarize computes count, mean, min, max and rms (one value or more) and
// median, p95 and sample standard deviation (two values or more). Fields
// that cannot be computed are nil and listed in the returned
// *InsufficientDataError; the partial result is always returned.
func Summarize(values []float64) (core.ErrorStatistics, error) {
	out := core.ErrorStatistics{Count: len(values)}
	var missing []string

	if len(values) == 0 {
		missing = append(missing, FieldMean, FieldMin, FieldMax, FieldRMS)
	} else {
		out.Mean = core.Float64(stat.Mean(values, nil))
		out.Min = core.Float64(floats.Min(values))
		out.Max = core.Float64(floats.Max(values))
		out.RMS = core.Float64(math.Sqrt(floats.Dot(values, values) / float64(len(values))))
	}

	if len(values) < 2 {
		missing = append(missing, FieldMedian, FieldP95, FieldStdDev)
	} else {
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		out.Median = core.Float64(percentileSorted(sorted, 0.5))
		out.P95 = core.Float64(percentileSorted(sorted, 0.95))
		out.StdDev = core.Float64(stat.StdDev(values, nil))
	}

	if len(missing) > 0 {
		return out, &InsufficientDataError{Count: len(values), Fields: missing}
	}
	return out, nil
}

// Percentile returns the p-quantile (0 <= p <= 1) of values by linear
// interpolation between closest ranks, rank = p*(n-1). Input order does not
// matter. It fails with ErrInsufficientData for fewer than two values.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) < 2 {
		return 0, &InsufficientDataError{Count: len(values), Fields: []string{fmt.Sprintf("p%g", p*100)}}
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("percentile %v out of range [0, 1]", p)
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentileSorted(sorted, p), nil
}

func percentileSorted(sorted []float64, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Insufficient returns the field names of an InsufficientDataError, or nil.
func Insufficient(err error) []string {
	var ide *InsufficientDataError
	if errors.As(err, &ide) {
		return slices.Clone(ide.Fields)
	}
	return nil
}
